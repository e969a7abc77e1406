/*
handlers.go - HTTP API handlers for the kindergarten operations engine

PURPOSE:
  Exposes the attendance, catalog, billing, and leave subsystems via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Roster:
    GET/POST /api/classes, GET /api/classes/{id},
    GET /api/classes/{id}/students, POST /api/classes/{id}/roll-call
    POST /api/students, GET /api/students/{id}
    POST /api/staff, GET /api/staff/{id}/leave

  Catalog:
    GET/POST /api/menus, GET /api/menus/active?date=
    POST /api/menus/{id}/dishes/{dishID}
    GET/POST /api/dishes, PUT/DELETE /api/dishes/{id}/ingredients/{ingID}
    POST /api/dishes/{id}/recompute
    GET/POST /api/ingredients

  Attendance:
    POST /api/attendance, PUT /api/attendance/{id},
    DELETE /api/attendance/{id}, GET /api/attendance?class_id=&date=

  Tickets:
    GET /api/tickets?student_id=&date=, POST /api/tickets/{id}/consume

  Billing:
    POST /api/invoices/generate, GET /api/invoices?period=,
    PUT /api/invoices/{id}/status

  Leave:
    POST /api/leave, PUT /api/leave/{id}, DELETE /api/leave/{id},
    GET /api/leave/pending, POST /api/leave/{id}/approve,
    POST /api/leave/{id}/reject

REQUEST FLOW:
  1. Decode JSON body
  2. Run struct-tag validation (go-playground/validator)
  3. Call domain logic
  4. Map domain errors to HTTP status
  5. Serialize response

ERROR HANDLING:
  Domain error taxonomy maps directly to status codes:
  - ValidationError:   400
  - NotFoundError:     404
  - ConflictError:     409
  - InvalidStateError: 409
  - anything else:     500

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brightsprout/kinder-engine/attendance"
	"github.com/brightsprout/kinder-engine/billing"
	"github.com/brightsprout/kinder-engine/catalog"
	"github.com/brightsprout/kinder-engine/kinder"
	"github.com/brightsprout/kinder-engine/leave"
	"github.com/brightsprout/kinder-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Catalog   *catalog.MenuCatalog
	Costs     *catalog.DishCostEngine
	Lifecycle *attendance.Lifecycle
	Billing   *billing.Generator
	Leave     *leave.Workflow
	Log       *logrus.Logger

	validate *validator.Validate
}

// NewHandler wires the handler from a store and the domain services.
func NewHandler(
	store *sqlite.Store,
	cat *catalog.MenuCatalog,
	costs *catalog.DishCostEngine,
	lifecycle *attendance.Lifecycle,
	gen *billing.Generator,
	workflow *leave.Workflow,
	log *logrus.Logger,
) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:     store,
		Catalog:   cat,
		Costs:     costs,
		Lifecycle: lifecycle,
		Billing:   gen,
		Leave:     workflow,
		Log:       log,
		validate:  validator.New(),
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct-tag
// validation. Writes the error response itself; callers just return on
// false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// ListClasses returns all classes.
// GET /api/classes
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.Store.ListClasses(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ClassDTO, 0, len(classes))
	for _, c := range classes {
		dtos = append(dtos, toClassDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClass creates or updates a class.
// POST /api/classes
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	tuition, err := decimal.NewFromString(req.TuitionFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tuition_fee", err)
		return
	}
	meal, err := decimal.NewFromString(req.MealFee)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid meal_fee", err)
		return
	}

	class := kinder.Class{
		ID:         kinder.ClassID(req.ID),
		Name:       req.Name,
		Capacity:   req.Capacity,
		TuitionFee: tuition,
		MealFee:    meal,
	}
	if err := h.Store.SaveClass(r.Context(), class); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClassDTO(class))
}

// GetClass returns a class by id.
// GET /api/classes/{id}
func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	id := kinder.ClassID(chi.URLParam(r, "id"))
	class, err := h.Store.GetClass(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if class == nil {
		writeError(w, http.StatusNotFound, "class not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClassDTO(*class))
}

// ListClassStudents returns a class's students.
// GET /api/classes/{id}/students
func (h *Handler) ListClassStudents(w http.ResponseWriter, r *http.Request) {
	id := kinder.ClassID(chi.URLParam(r, "id"))
	students, err := h.Store.ListStudentsInClass(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]StudentDTO, 0, len(students))
	for _, s := range students {
		dtos = append(dtos, toStudentDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RollCall creates default-present records for every student in the class
// without one for the date, and returns the full day's records.
// POST /api/classes/{id}/roll-call
func (h *Handler) RollCall(w http.ResponseWriter, r *http.Request) {
	classID := kinder.ClassID(chi.URLParam(r, "id"))

	var req RollCallRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, err := kinder.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	records, err := h.Lifecycle.EnsureClassAttendance(r.Context(), classID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(records))
}

// CreateStudent creates or updates a student.
// POST /api/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	class, err := h.Store.GetClass(r.Context(), kinder.ClassID(req.ClassID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if class == nil {
		writeError(w, http.StatusNotFound, "class not found", nil)
		return
	}

	student := kinder.Student{
		ID:      kinder.StudentID(req.ID),
		ClassID: kinder.ClassID(req.ClassID),
		Name:    req.Name,
	}
	if err := h.Store.SaveStudent(r.Context(), student); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(student))
}

// GetStudent returns a student by id.
// GET /api/students/{id}
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := kinder.StudentID(chi.URLParam(r, "id"))
	student, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "student not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*student))
}

// CreateStaffUser creates or updates a staff user.
// POST /api/staff
func (h *Handler) CreateStaffUser(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user := kinder.StaffUser{ID: kinder.UserID(req.ID), Name: req.Name}
	if err := h.Store.SaveStaffUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, StaffUserDTO{ID: req.ID, Name: req.Name})
}

// ListStaffLeave returns all of a staff user's leave requests.
// GET /api/staff/{id}/leave
func (h *Handler) ListStaffLeave(w http.ResponseWriter, r *http.Request) {
	id := kinder.UserID(chi.URLParam(r, "id"))
	requests, err := h.Store.ListLeaveByUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]LeaveDTO, 0, len(requests))
	for _, req := range requests {
		dtos = append(dtos, toLeaveDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MENU HANDLERS
// =============================================================================

// ListMenus returns all menu templates.
// GET /api/menus
func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.Store.ListMenus(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]MenuDTO, 0, len(menus))
	for _, m := range menus {
		dtos = append(dtos, toMenuDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMenu creates or updates a menu template.
// POST /api/menus
func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var req CreateMenuRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	menu := kinder.Menu{
		ID:        kinder.MenuID(req.ID),
		Name:      req.Name,
		DayOfWeek: time.Weekday(req.DayOfWeek),
		MealType:  kinder.MealType(req.MealType),
	}
	if err := h.Store.SaveMenu(r.Context(), menu); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuDTO(menu))
}

// ActiveMenus returns the menus active on a calendar date after the
// auto-meal settings filter.
// GET /api/menus/active?date=2026-09-07
func (h *Handler) ActiveMenus(w http.ResponseWriter, r *http.Request) {
	date, err := kinder.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date", err)
		return
	}

	menus, err := h.Catalog.ActiveMenus(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]MenuDTO, 0, len(menus))
	for _, m := range menus {
		dtos = append(dtos, toMenuDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AssignMenuDish links a dish to a menu.
// POST /api/menus/{id}/dishes/{dishID}
func (h *Handler) AssignMenuDish(w http.ResponseWriter, r *http.Request) {
	menuID := kinder.MenuID(chi.URLParam(r, "id"))
	dishID := kinder.DishID(chi.URLParam(r, "dishID"))

	if err := h.Store.AssignDish(r.Context(), menuID, dishID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// =============================================================================
// DISH AND INGREDIENT HANDLERS
// =============================================================================

// ListDishes returns all dishes with their derived totals.
// GET /api/dishes
func (h *Handler) ListDishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.Store.ListDishes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]DishDTO, 0, len(dishes))
	for _, d := range dishes {
		dtos = append(dtos, toDishDTO(d))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDish creates or updates a dish. Totals start at zero until the
// first composition change triggers a recompute.
// POST /api/dishes
func (h *Handler) CreateDish(w http.ResponseWriter, r *http.Request) {
	var req CreateDishRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	price := decimal.Zero
	if req.SellingPrice != "" {
		var err error
		price, err = decimal.NewFromString(req.SellingPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid selling_price", err)
			return
		}
	}

	dish := kinder.Dish{
		ID:           kinder.DishID(req.ID),
		Name:         req.Name,
		Category:     req.Category,
		SellingPrice: price,
	}
	if err := h.Store.SaveDish(r.Context(), dish); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDishDTO(dish))
}

// GetDish returns a dish by id.
// GET /api/dishes/{id}
func (h *Handler) GetDish(w http.ResponseWriter, r *http.Request) {
	id := kinder.DishID(chi.URLParam(r, "id"))
	dish, err := h.Store.GetDish(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if dish == nil {
		writeError(w, http.StatusNotFound, "dish not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDishDTO(*dish))
}

// SetDishIngredient sets the quantity for a (dish, ingredient) pair and
// recomputes the dish totals in the same request.
// PUT /api/dishes/{id}/ingredients/{ingredientID}
func (h *Handler) SetDishIngredient(w http.ResponseWriter, r *http.Request) {
	dishID := kinder.DishID(chi.URLParam(r, "id"))
	ingredientID := kinder.IngredientID(chi.URLParam(r, "ingredientID"))

	var req SetDishIngredientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	grams, err := decimal.NewFromString(req.QuantityGrams)
	if err != nil || grams.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid quantity_grams", err)
		return
	}

	di := kinder.DishIngredient{IngredientID: ingredientID, QuantityGrams: grams}
	if err := h.Store.UpsertDishIngredient(r.Context(), dishID, di); err != nil {
		writeDomainError(w, err)
		return
	}

	dish, err := h.Costs.Recompute(r.Context(), dishID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDishDTO(*dish))
}

// RemoveDishIngredient removes an ingredient from a dish and recomputes
// the dish totals.
// DELETE /api/dishes/{id}/ingredients/{ingredientID}
func (h *Handler) RemoveDishIngredient(w http.ResponseWriter, r *http.Request) {
	dishID := kinder.DishID(chi.URLParam(r, "id"))
	ingredientID := kinder.IngredientID(chi.URLParam(r, "ingredientID"))

	if err := h.Store.RemoveDishIngredient(r.Context(), dishID, ingredientID); err != nil {
		writeDomainError(w, err)
		return
	}

	dish, err := h.Costs.Recompute(r.Context(), dishID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDishDTO(*dish))
}

// RecomputeDish forces a totals recompute, for repair after out-of-band
// ingredient price changes.
// POST /api/dishes/{id}/recompute
func (h *Handler) RecomputeDish(w http.ResponseWriter, r *http.Request) {
	id := kinder.DishID(chi.URLParam(r, "id"))
	dish, err := h.Costs.Recompute(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDishDTO(*dish))
}

// ListIngredients returns all ingredients.
// GET /api/ingredients
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.Store.ListIngredients(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]IngredientDTO, 0, len(ingredients))
	for _, i := range ingredients {
		dtos = append(dtos, toIngredientDTO(i))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateIngredient creates or updates an ingredient.
// POST /api/ingredients
func (h *Handler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req CreateIngredientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	calories, err := decimal.NewFromString(req.CaloriesPer100g)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calories_per_100g", err)
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_price", err)
		return
	}

	ingredient := kinder.Ingredient{
		ID:              kinder.IngredientID(req.ID),
		Name:            req.Name,
		CaloriesPer100g: calories,
		UnitPrice:       price,
	}
	if err := h.Store.SaveIngredient(r.Context(), ingredient); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIngredientDTO(ingredient))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// CreateAttendance records a student's status for a date.
// POST /api/attendance
func (h *Handler) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req CreateAttendanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, err := kinder.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	rec, err := h.Lifecycle.Create(r.Context(),
		kinder.StudentID(req.StudentID),
		kinder.ClassID(req.ClassID),
		date,
		kinder.AttendanceStatus(req.Status),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(*rec))
}

// UpdateAttendance corrects a record's status, excused flag, or refund.
// PUT /api/attendance/{id}
func (h *Handler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAttendanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	refund := decimal.Zero
	if req.DailyMealRefund != "" {
		var err error
		refund, err = decimal.NewFromString(req.DailyMealRefund)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid daily_meal_refund", err)
			return
		}
	}

	rec, err := h.Lifecycle.Update(r.Context(), kinder.AttendanceRecord{
		ID:              id,
		Status:          kinder.AttendanceStatus(req.Status),
		ExcusedAbsence:  req.ExcusedAbsence,
		DailyMealRefund: refund,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// DeleteAttendance removes a record by explicit staff action.
// DELETE /api/attendance/{id}
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Lifecycle.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListAttendance returns a class's records for a date.
// GET /api/attendance?class_id=kiga-a&date=2026-09-07
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	classID := kinder.ClassID(r.URL.Query().Get("class_id"))
	if classID == "" {
		writeError(w, http.StatusBadRequest, "class_id is required", nil)
		return
	}
	date, err := kinder.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date", err)
		return
	}

	records, err := h.Store.ListAttendanceByClassDate(r.Context(), classID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(records))
}

// =============================================================================
// TICKET HANDLERS
// =============================================================================

// ListTickets returns a student's tickets for a date.
// GET /api/tickets?student_id=s1&date=2026-09-07
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	studentID := kinder.StudentID(r.URL.Query().Get("student_id"))
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}
	date, err := kinder.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing date", err)
		return
	}

	tickets, err := h.Store.ListTicketsByStudentDate(r.Context(), studentID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TicketDTO, 0, len(tickets))
	for _, t := range tickets {
		dtos = append(dtos, toTicketDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ConsumeTicket marks a ticket as served. A consumed ticket survives any
// later attendance change.
// POST /api/tickets/{id}/consume
func (h *Handler) ConsumeTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.MarkTicketConsumed(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// GenerateInvoices runs the tuition batch for a period.
// POST /api/invoices/generate
func (h *Handler) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoicesRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	period, err := kinder.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period, want YYYY-MM", err)
		return
	}

	report, err := h.Billing.GenerateTuitionInvoices(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(report))
}

// ListInvoices returns all invoices for a period.
// GET /api/invoices?period=2026-09
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	period, err := kinder.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing period", err)
		return
	}

	invoices, err := h.Store.ListInvoicesByPeriod(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dtos = append(dtos, toInvoiceDTO(inv))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateInvoiceStatus moves an invoice through its payment lifecycle.
// PUT /api/invoices/{id}/status
func (h *Handler) UpdateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateInvoiceStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.Store.UpdateInvoiceStatus(r.Context(), id, kinder.InvoiceStatus(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// CreateLeave submits a new pending leave request.
// POST /api/leave
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	start, err := kinder.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	end, err := kinder.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date", err)
		return
	}

	created, err := h.Leave.Create(r.Context(), kinder.UserID(req.UserID), start, end, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(*created))
}

// UpdateLeave edits a pending request's range and reason.
// PUT /api/leave/{id}
func (h *Handler) UpdateLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateLeaveRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	start, err := kinder.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	end, err := kinder.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date", err)
		return
	}

	updated, err := h.Leave.Update(r.Context(), id, start, end, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*updated))
}

// DeleteLeave withdraws a pending request.
// DELETE /api/leave/{id}
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Leave.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListPendingLeave returns every pending request, for the approval queue.
// GET /api/leave/pending
func (h *Handler) ListPendingLeave(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.ListLeaveByStatus(r.Context(), kinder.LeavePending)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]LeaveDTO, 0, len(requests))
	for _, req := range requests {
		dtos = append(dtos, toLeaveDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveLeave decides a pending request in the affirmative.
// POST /api/leave/{id}/approve
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, true)
}

// RejectLeave decides a pending request in the negative.
// POST /api/leave/{id}/reject
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, false)
}

func (h *Handler) decideLeave(w http.ResponseWriter, r *http.Request, approve bool) {
	id := chi.URLParam(r, "id")

	var req DecideLeaveRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var (
		decided *kinder.StaffLeaveRequest
		err     error
	)
	if approve {
		decided, err = h.Leave.Approve(r.Context(), id, kinder.UserID(req.ApproverID), req.Notes)
	} else {
		decided, err = h.Leave.Reject(r.Context(), id, kinder.UserID(req.ApproverID), req.Notes)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*decided))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case kinder.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	case kinder.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case kinder.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)
	case kinder.IsInvalidState(err):
		writeError(w, http.StatusConflict, "invalid state", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
