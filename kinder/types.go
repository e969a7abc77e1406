/*
Package kinder contains the core domain model for the kindergarten
operations engine.

PURPOSE:
  Defines the entities and value types shared by every subsystem:
  roster records (classes, students, staff), daily attendance, the menu
  catalog (menus, dishes, ingredients), meal tickets, tuition invoices,
  and staff leave requests.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entities as plain records keyed by id. Relationships are expressed as
    id references (Student.ClassID, MealTicket.MenuID), never as embedded
    object graphs. Each subsystem loads what it needs through a store.
  - Status enums: AttendanceStatus, MealType, InvoiceStatus, LeaveStatus.
  - Money and calories use decimal.Decimal to avoid floating-point errors.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for everything billed or summed
  2. Type Safety: Strong typing for ids prevents mixing student/class ids
  3. Flat records: persistence owns relationships, entities carry keys

SEE ALSO:
  - date.go: Date and Period value types
  - errors.go: Error taxonomy
  - store.go: Persistence interfaces
*/
package kinder

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ClassID      string
	StudentID    string
	MenuID       string
	DishID       string
	IngredientID string
	UserID       string
)

// =============================================================================
// ROSTER - Classes, students, staff
// =============================================================================

// Class groups students and carries the monthly fee configuration used by
// invoice generation.
type Class struct {
	ID         ClassID
	Name       string
	Capacity   int
	TuitionFee decimal.Decimal // monthly
	MealFee    decimal.Decimal // monthly
	CreatedAt  time.Time
}

type Student struct {
	ID        StudentID
	ClassID   ClassID
	Name      string
	CreatedAt time.Time
}

// StaffUser is the minimal staff record the leave workflow needs.
// Authentication and roles live outside this subsystem.
type StaffUser struct {
	ID   UserID
	Name string
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceStatus string

const (
	// StatusNone marks the absence of a record. Used as the "old status"
	// when a record is first created.
	StatusNone AttendanceStatus = ""

	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Valid reports whether s is one of the four assignable statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// AttendanceRecord is the primary record of a student's day. At most one
// exists per (student, date). Meal tickets are derived from it, never the
// other way around.
type AttendanceRecord struct {
	ID        string
	StudentID StudentID
	ClassID   ClassID
	Date      Date
	Status    AttendanceStatus

	// ExcusedAbsence entitles the family to a meal-fee refund for the day.
	ExcusedAbsence  bool
	DailyMealRefund decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// MENU CATALOG - Menus, dishes, ingredients
// =============================================================================

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealSnack     MealType = "snack"
	MealDinner    MealType = "dinner"
)

// AllMealTypes lists every meal type in serving order.
var AllMealTypes = []MealType{MealBreakfast, MealLunch, MealSnack, MealDinner}

func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealSnack, MealDinner:
		return true
	}
	return false
}

// Menu is a reusable template keyed by (day-of-week, meal type), not a
// calendar instance. The same Monday breakfast menu applies every Monday.
type Menu struct {
	ID        MenuID
	Name      string
	DayOfWeek time.Weekday
	MealType  MealType
	CreatedAt time.Time
}

// Dish is a named recipe. TotalCalories and TotalCost are derived from the
// ingredient composition and must be recomputed after every composition
// change (see catalog.DishCostEngine). SellingPrice is set independently.
type Dish struct {
	ID            DishID
	Name          string
	Category      string
	TotalCalories decimal.Decimal
	TotalCost     decimal.Decimal
	SellingPrice  decimal.Decimal
	CreatedAt     time.Time
}

// DishIngredient links a dish to an ingredient with a quantity in grams.
type DishIngredient struct {
	IngredientID  IngredientID
	QuantityGrams decimal.Decimal
}

// Ingredient carries the nutrition and pricing basis for dish totals.
// UnitPrice is per 1000 quantity-units (per kg / per liter).
type Ingredient struct {
	ID              IngredientID
	Name            string
	CaloriesPer100g decimal.Decimal
	UnitPrice       decimal.Decimal
	CreatedAt       time.Time
}

// =============================================================================
// MEAL TICKETS - Derived from attendance
// =============================================================================

// MealTicket entitles a student to a specific menu's meal on a specific
// date. At most one exists per (student, menu, date). Tickets are created
// only for students present on the date, and a consumed ticket is never
// deleted by automated logic.
type MealTicket struct {
	ID        string
	StudentID StudentID
	MenuID    MenuID
	Date      Date
	Consumed  bool
	CreatedAt time.Time
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// InvoiceKind distinguishes invoice categories. Uniqueness per
// (student, period) is scoped to a kind.
type InvoiceKind string

const InvoiceTuition InvoiceKind = "tuition"

// TuitionInvoice is one student's bill for one billing period. The three
// breakdown fields always satisfy:
//
//	Amount = max(0, BaseTuition - MealRefundApplied - CarriedBalance)
type TuitionInvoice struct {
	ID        string
	StudentID StudentID
	Period    Period
	Kind      InvoiceKind
	Amount    decimal.Decimal
	Status    InvoiceStatus

	// Breakdown
	BaseTuition       decimal.Decimal // class tuition fee + meal fee
	MealRefundApplied decimal.Decimal // excused-absence refunds this period
	CarriedBalance    decimal.Decimal // unresolved refunds from the previous period

	CreatedAt time.Time
}

// =============================================================================
// STAFF LEAVE
// =============================================================================

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// StaffLeaveRequest is a staff member's request for a closed date range
// [StartDate, EndDate]. For a given user, no two requests with status
// pending or approved may overlap.
type StaffLeaveRequest struct {
	ID        string
	UserID    UserID
	StartDate Date
	EndDate   Date
	Reason    string
	Status    LeaveStatus

	// Approval metadata, set only on the transition out of pending.
	ApproverID UserID
	DecidedAt  *time.Time
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overlaps reports whether the request's range overlaps [start, end],
// closed-interval on both sides.
func (r StaffLeaveRequest) Overlaps(start, end Date) bool {
	return start.BeforeOrEqual(r.EndDate) && end.AfterOrEqual(r.StartDate)
}
