/*
store.go - Persistence interfaces per entity cluster

PURPOSE:
  Defines the boundary between domain logic and the database. One
  interface per aggregate cluster; implementations may back several
  interfaces with one connection (store/sqlite does).

UNIQUENESS CONTRACT:
  Every insert that participates in a uniqueness invariant returns
  ErrConflict (wrapped in a ConflictError) when the key already exists:
  - InsertAttendance:  (student_id, date)
  - InsertTicket:      (student_id, menu_id, date)
  - InsertInvoice:     (student_id, period, kind)
  Implementations enforce these with storage-level unique constraints so
  they survive concurrent callers; check-then-insert alone is not enough.

DELETION CONTRACT:
  DeleteUnconsumedTickets must never touch consumed tickets. Attendance
  records are deleted only by explicit staff action (DeleteAttendance),
  never by derived logic.

IMPLEMENTATIONS:
  - store/sqlite: production store, unique indexes + WAL

SEE ALSO:
  - errors.go: Error values returned by these interfaces
*/
package kinder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROSTER STORE - Classes, students, staff users
// =============================================================================

type RosterStore interface {
	SaveClass(ctx context.Context, c Class) error
	GetClass(ctx context.Context, id ClassID) (*Class, error)
	ListClasses(ctx context.Context) ([]Class, error)

	SaveStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, id StudentID) (*Student, error)
	ListStudentsInClass(ctx context.Context, classID ClassID) ([]Student, error)

	SaveStaffUser(ctx context.Context, u StaffUser) error
	GetStaffUser(ctx context.Context, id UserID) (*StaffUser, error)
}

// =============================================================================
// MENU STORE - Menu templates
// =============================================================================

type MenuStore interface {
	SaveMenu(ctx context.Context, m Menu) error
	GetMenu(ctx context.Context, id MenuID) (*Menu, error)
	ListMenus(ctx context.Context) ([]Menu, error)

	// ListMenusByWeekday returns every menu template whose day-of-week
	// matches, regardless of meal type. Meal-type filtering is the
	// catalog's job.
	ListMenusByWeekday(ctx context.Context, weekday time.Weekday) ([]Menu, error)

	AssignDish(ctx context.Context, menuID MenuID, dishID DishID) error
	ListMenuDishes(ctx context.Context, menuID MenuID) ([]DishID, error)
}

// =============================================================================
// DISH STORE - Dishes, ingredients, composition
// =============================================================================

type DishStore interface {
	SaveDish(ctx context.Context, d Dish) error
	GetDish(ctx context.Context, id DishID) (*Dish, error)
	ListDishes(ctx context.Context) ([]Dish, error)

	// UpdateDishTotals persists recomputed derived totals without touching
	// the rest of the dish record.
	UpdateDishTotals(ctx context.Context, id DishID, totalCalories, totalCost decimal.Decimal) error

	SaveIngredient(ctx context.Context, i Ingredient) error
	GetIngredient(ctx context.Context, id IngredientID) (*Ingredient, error)
	ListIngredients(ctx context.Context) ([]Ingredient, error)

	// Composition. Upsert semantics: setting a quantity for an existing
	// pair replaces it.
	UpsertDishIngredient(ctx context.Context, dishID DishID, di DishIngredient) error
	RemoveDishIngredient(ctx context.Context, dishID DishID, ingredientID IngredientID) error
	ListDishIngredients(ctx context.Context, dishID DishID) ([]DishIngredient, error)
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

type AttendanceStore interface {
	// InsertAttendance fails with ErrConflict if a record already exists
	// for (student, date).
	InsertAttendance(ctx context.Context, rec AttendanceRecord) error

	UpdateAttendance(ctx context.Context, rec AttendanceRecord) error

	GetAttendance(ctx context.Context, id string) (*AttendanceRecord, error)
	GetAttendanceByStudentDate(ctx context.Context, studentID StudentID, date Date) (*AttendanceRecord, error)
	ListAttendanceByClassDate(ctx context.Context, classID ClassID, date Date) ([]AttendanceRecord, error)

	// ListExcusedAbsences returns records in [from, to] with the
	// excused-absence flag set, for refund aggregation.
	ListExcusedAbsences(ctx context.Context, studentID StudentID, from, to Date) ([]AttendanceRecord, error)

	// DeleteAttendance is an explicit staff action, never called by
	// derived logic.
	DeleteAttendance(ctx context.Context, id string) error
}

// =============================================================================
// TICKET STORE - Meal tickets
// =============================================================================

type TicketStore interface {
	// InsertTicket fails with ErrConflict if a ticket already exists for
	// (student, menu, date).
	InsertTicket(ctx context.Context, t MealTicket) error

	TicketExists(ctx context.Context, studentID StudentID, menuID MenuID, date Date) (bool, error)
	ListTicketsByStudentDate(ctx context.Context, studentID StudentID, date Date) ([]MealTicket, error)

	// DeleteUnconsumedTickets removes every unconsumed ticket for the
	// student on the date and returns how many were removed. Consumed
	// tickets are never touched.
	DeleteUnconsumedTickets(ctx context.Context, studentID StudentID, date Date) (int, error)

	MarkTicketConsumed(ctx context.Context, id string) error
}

// =============================================================================
// INVOICE STORE
// =============================================================================

type InvoiceStore interface {
	// InsertInvoice fails with ErrConflict if an invoice already exists
	// for (student, period, kind).
	InsertInvoice(ctx context.Context, inv TuitionInvoice) error

	InvoiceExists(ctx context.Context, studentID StudentID, period Period, kind InvoiceKind) (bool, error)
	ListInvoicesByPeriod(ctx context.Context, period Period) ([]TuitionInvoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) error
}

// =============================================================================
// LEAVE STORE
// =============================================================================

type LeaveStore interface {
	InsertLeave(ctx context.Context, r StaffLeaveRequest) error
	UpdateLeave(ctx context.Context, r StaffLeaveRequest) error
	DeleteLeave(ctx context.Context, id string) error

	GetLeave(ctx context.Context, id string) (*StaffLeaveRequest, error)
	ListLeaveByUser(ctx context.Context, userID UserID) ([]StaffLeaveRequest, error)
	ListLeaveByStatus(ctx context.Context, status LeaveStatus) ([]StaffLeaveRequest, error)

	// CountOverlapping counts the user's pending/approved requests whose
	// closed range overlaps [start, end], excluding excludeID (pass ""
	// when creating). The workflow runs this as a check-then-write; the
	// store serializes writers so the pair is atomic.
	CountOverlapping(ctx context.Context, userID UserID, start, end Date, excludeID string) (int, error)
}
