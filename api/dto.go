/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags. Handlers run
  the validator before touching domain logic; tag failures become 400s.
  Domain-level rules (overlap, uniqueness, state transitions) stay in the
  domain packages.

MONEY:
  Monetary and quantity fields travel as decimal strings ("250000.00"),
  never as floats. Handlers parse them with decimal.NewFromString.

SEE ALSO:
  - handlers.go: Uses these types
  - kinder/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/brightsprout/kinder-engine/billing"
	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// ROSTER
// =============================================================================

type ClassDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	TuitionFee string `json:"tuition_fee"`
	MealFee    string `json:"meal_fee"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type CreateClassRequest struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Capacity   int    `json:"capacity" validate:"gte=0"`
	TuitionFee string `json:"tuition_fee" validate:"required"`
	MealFee    string `json:"meal_fee" validate:"required"`
}

type StudentDTO struct {
	ID        string `json:"id"`
	ClassID   string `json:"class_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateStudentRequest struct {
	ID      string `json:"id" validate:"required"`
	ClassID string `json:"class_id" validate:"required"`
	Name    string `json:"name" validate:"required"`
}

type StaffUserDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateStaffUserRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// =============================================================================
// MENU CATALOG
// =============================================================================

type MenuDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DayOfWeek int    `json:"day_of_week"`
	MealType  string `json:"meal_type"`
}

type CreateMenuRequest struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	DayOfWeek int    `json:"day_of_week" validate:"gte=0,lte=6"`
	MealType  string `json:"meal_type" validate:"required,oneof=breakfast lunch snack dinner"`
}

type DishDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	TotalCalories string `json:"total_calories"`
	TotalCost     string `json:"total_cost"`
	SellingPrice  string `json:"selling_price"`
}

type CreateDishRequest struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Category     string `json:"category"`
	SellingPrice string `json:"selling_price"`
}

type IngredientDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CaloriesPer100g string `json:"calories_per_100g"`
	UnitPrice       string `json:"unit_price"`
}

type CreateIngredientRequest struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	CaloriesPer100g string `json:"calories_per_100g" validate:"required"`
	UnitPrice       string `json:"unit_price" validate:"required"`
}

// SetDishIngredientRequest sets the quantity for one (dish, ingredient)
// pair. The dish and ingredient ids come from the URL.
type SetDishIngredientRequest struct {
	QuantityGrams string `json:"quantity_grams" validate:"required"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceDTO struct {
	ID              string `json:"id"`
	StudentID       string `json:"student_id"`
	ClassID         string `json:"class_id"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	ExcusedAbsence  bool   `json:"excused_absence"`
	DailyMealRefund string `json:"daily_meal_refund"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

type CreateAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
}

type UpdateAttendanceRequest struct {
	Status          string `json:"status" validate:"required,oneof=present absent late excused"`
	ExcusedAbsence  bool   `json:"excused_absence"`
	DailyMealRefund string `json:"daily_meal_refund"`
}

// RollCallRequest triggers default-present record creation for a class.
type RollCallRequest struct {
	Date string `json:"date" validate:"required"`
}

// =============================================================================
// MEAL TICKETS
// =============================================================================

type TicketDTO struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	MenuID    string `json:"menu_id"`
	Date      string `json:"date"`
	Consumed  bool   `json:"consumed"`
}

// =============================================================================
// BILLING
// =============================================================================

type InvoiceDTO struct {
	ID                string `json:"id"`
	StudentID         string `json:"student_id"`
	Period            string `json:"period"`
	Kind              string `json:"kind"`
	Amount            string `json:"amount"`
	Status            string `json:"status"`
	BaseTuition       string `json:"base_tuition"`
	MealRefundApplied string `json:"meal_refund_applied"`
	CarriedBalance    string `json:"carried_balance"`
}

type GenerateInvoicesRequest struct {
	Period string `json:"period" validate:"required"`
}

type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid overdue cancelled"`
}

// RunReportDTO summarizes a generator run for the client.
type RunReportDTO struct {
	Period   string   `json:"period"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
}

// =============================================================================
// STAFF LEAVE
// =============================================================================

type LeaveDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason,omitempty"`
	Status     string `json:"status"`
	ApproverID string `json:"approver_id,omitempty"`
	DecidedAt  string `json:"decided_at,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type CreateLeaveRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Reason    string `json:"reason"`
}

type UpdateLeaveRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Reason    string `json:"reason"`
}

type DecideLeaveRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Notes      string `json:"notes"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toClassDTO(c kinder.Class) ClassDTO {
	return ClassDTO{
		ID:         string(c.ID),
		Name:       c.Name,
		Capacity:   c.Capacity,
		TuitionFee: c.TuitionFee.String(),
		MealFee:    c.MealFee.String(),
		CreatedAt:  formatTime(c.CreatedAt),
	}
}

func toStudentDTO(s kinder.Student) StudentDTO {
	return StudentDTO{
		ID:        string(s.ID),
		ClassID:   string(s.ClassID),
		Name:      s.Name,
		CreatedAt: formatTime(s.CreatedAt),
	}
}

func toMenuDTO(m kinder.Menu) MenuDTO {
	return MenuDTO{
		ID:        string(m.ID),
		Name:      m.Name,
		DayOfWeek: int(m.DayOfWeek),
		MealType:  string(m.MealType),
	}
}

func toDishDTO(d kinder.Dish) DishDTO {
	return DishDTO{
		ID:            string(d.ID),
		Name:          d.Name,
		Category:      d.Category,
		TotalCalories: d.TotalCalories.String(),
		TotalCost:     d.TotalCost.String(),
		SellingPrice:  d.SellingPrice.String(),
	}
}

func toIngredientDTO(i kinder.Ingredient) IngredientDTO {
	return IngredientDTO{
		ID:              string(i.ID),
		Name:            i.Name,
		CaloriesPer100g: i.CaloriesPer100g.String(),
		UnitPrice:       i.UnitPrice.String(),
	}
}

func toAttendanceDTO(rec kinder.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		ID:              rec.ID,
		StudentID:       string(rec.StudentID),
		ClassID:         string(rec.ClassID),
		Date:            rec.Date.String(),
		Status:          string(rec.Status),
		ExcusedAbsence:  rec.ExcusedAbsence,
		DailyMealRefund: rec.DailyMealRefund.String(),
		UpdatedAt:       formatTime(rec.UpdatedAt),
	}
}

func toAttendanceDTOs(records []kinder.AttendanceRecord) []AttendanceDTO {
	dtos := make([]AttendanceDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toAttendanceDTO(rec))
	}
	return dtos
}

func toTicketDTO(t kinder.MealTicket) TicketDTO {
	return TicketDTO{
		ID:        t.ID,
		StudentID: string(t.StudentID),
		MenuID:    string(t.MenuID),
		Date:      t.Date.String(),
		Consumed:  t.Consumed,
	}
}

func toInvoiceDTO(inv kinder.TuitionInvoice) InvoiceDTO {
	return InvoiceDTO{
		ID:                inv.ID,
		StudentID:         string(inv.StudentID),
		Period:            inv.Period.String(),
		Kind:              string(inv.Kind),
		Amount:            inv.Amount.String(),
		Status:            string(inv.Status),
		BaseTuition:       inv.BaseTuition.String(),
		MealRefundApplied: inv.MealRefundApplied.String(),
		CarriedBalance:    inv.CarriedBalance.String(),
	}
}

func toLeaveDTO(r kinder.StaffLeaveRequest) LeaveDTO {
	dto := LeaveDTO{
		ID:         r.ID,
		UserID:     string(r.UserID),
		StartDate:  r.StartDate.String(),
		EndDate:    r.EndDate.String(),
		Reason:     r.Reason,
		Status:     string(r.Status),
		ApproverID: string(r.ApproverID),
		Notes:      r.Notes,
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toRunReportDTO(report *billing.RunReport) RunReportDTO {
	dto := RunReportDTO{
		Period:  report.Period.String(),
		Created: report.Created,
		Skipped: report.Skipped,
	}
	for _, f := range report.Failures {
		dto.Failures = append(dto.Failures, string(f.StudentID)+": "+f.Err.Error())
	}
	return dto
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
