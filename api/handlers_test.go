/*
handlers_test.go - HTTP-level tests for the REST API

Exercises the router end to end against an in-memory store: status codes,
error mapping, and a few full flows (roll call, invoice generation, leave
decisions).
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsprout/kinder-engine/attendance"
	"github.com/brightsprout/kinder-engine/billing"
	"github.com/brightsprout/kinder-engine/catalog"
	"github.com/brightsprout/kinder-engine/leave"
	"github.com/brightsprout/kinder-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cat := catalog.NewMenuCatalog(store, nil, log)
	costs := catalog.NewDishCostEngine(store)
	ledger := attendance.NewTicketLedger(cat, store)
	lifecycle := attendance.NewLifecycle(store, store, ledger, log)
	generator := billing.NewGenerator(store, store, store, log)
	workflow := leave.NewWorkflow(store, store)

	h := NewHandler(store, cat, costs, lifecycle, generator, workflow, log)
	return NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func createClass(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/classes", map[string]any{
		"id": id, "name": "Sunflower", "capacity": 25,
		"tuition_fee": "2000000", "meal_fee": "500000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func createStudent(t *testing.T, router http.Handler, id, classID string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/students", map[string]any{
		"id": id, "class_id": classID, "name": "Student " + id,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// CLASSES AND STUDENTS
// =============================================================================

func TestCreateClass_ThenGet(t *testing.T) {
	router := newTestRouter(t)
	createClass(t, router, "sunflower")

	rec := do(t, router, http.MethodGet, "/api/classes/sunflower", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto map[string]any
	decodeBody(t, rec, &dto)
	assert.Equal(t, "Sunflower", dto["name"])
	assert.Equal(t, "2000000", dto["tuition_fee"])
}

func TestCreateClass_MissingName_400(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/classes", map[string]any{
		"id": "c1", "tuition_fee": "1", "meal_fee": "1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClass_Unknown_404(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/classes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListClassStudents(t *testing.T) {
	router := newTestRouter(t)
	createClass(t, router, "sunflower")
	createStudent(t, router, "mia", "sunflower")
	createStudent(t, router, "ben", "sunflower")

	rec := do(t, router, http.MethodGet, "/api/classes/sunflower/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var students []map[string]any
	decodeBody(t, rec, &students)
	assert.Len(t, students, 2)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestCreateAttendance_DuplicateDate_409(t *testing.T) {
	router := newTestRouter(t)
	createClass(t, router, "sunflower")
	createStudent(t, router, "mia", "sunflower")

	body := map[string]any{
		"student_id": "mia", "class_id": "sunflower",
		"date": "2026-09-07", "status": "present",
	}
	rec := do(t, router, http.MethodPost, "/api/attendance", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/attendance", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateAttendance_BadStatus_400(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/attendance", map[string]any{
		"student_id": "mia", "class_id": "sunflower",
		"date": "2026-09-07", "status": "vacationing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRollCall_CreatesRecordsAndTickets(t *testing.T) {
	// GIVEN: A Monday lunch menu and a class of two
	// WHEN: Roll call runs for that Monday
	// THEN: Both students are present and each holds a lunch ticket

	router := newTestRouter(t)
	createClass(t, router, "sunflower")
	createStudent(t, router, "mia", "sunflower")
	createStudent(t, router, "ben", "sunflower")

	rec := do(t, router, http.MethodPost, "/api/menus", map[string]any{
		"id": "mon-lunch", "name": "Monday Lunch", "day_of_week": 1, "meal_type": "lunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/classes/sunflower/roll-call", map[string]any{
		"date": "2026-09-07",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var records []map[string]any
	decodeBody(t, rec, &records)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "present", r["status"])
	}

	rec = do(t, router, http.MethodGet, "/api/tickets?student_id=mia&date=2026-09-07", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets []map[string]any
	decodeBody(t, rec, &tickets)
	assert.Len(t, tickets, 1)
}

// =============================================================================
// DISHES AND COSTS
// =============================================================================

func TestSetDishIngredient_RecomputesTotals(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/ingredients", map[string]any{
		"id": "chicken", "name": "Chicken",
		"calories_per_100g": "165", "unit_price": "85000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/dishes", map[string]any{
		"id": "stew", "name": "Stew", "selling_price": "15000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPut, "/api/dishes/stew/ingredients/chicken", map[string]any{
		"quantity_grams": "100",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/dishes/stew", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dish map[string]any
	decodeBody(t, rec, &dish)
	assert.Equal(t, "165", dish["total_calories"])
	assert.Equal(t, "8500", dish["total_cost"])
}

// =============================================================================
// INVOICES
// =============================================================================

func TestGenerateInvoices_IdempotentAcrossCalls(t *testing.T) {
	router := newTestRouter(t)
	createClass(t, router, "sunflower")
	createStudent(t, router, "mia", "sunflower")

	first := do(t, router, http.MethodPost, "/api/invoices/generate", map[string]any{"period": "2026-10"})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	var report map[string]any
	decodeBody(t, first, &report)
	assert.Equal(t, float64(1), report["created"])

	second := do(t, router, http.MethodPost, "/api/invoices/generate", map[string]any{"period": "2026-10"})
	require.Equal(t, http.StatusOK, second.Code)
	decodeBody(t, second, &report)
	assert.Equal(t, float64(0), report["created"])
	assert.Equal(t, float64(1), report["skipped"])

	list := do(t, router, http.MethodGet, "/api/invoices?period=2026-10", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var invoices []map[string]any
	decodeBody(t, list, &invoices)
	require.Len(t, invoices, 1)
	assert.Equal(t, "2500000", invoices[0]["amount"])
}

func TestGenerateInvoices_BadPeriod_400(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/invoices/generate", map[string]any{"period": "October"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeave_ApproveFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/staff", map[string]any{"id": "amara", "name": "Amara"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/staff", map[string]any{"id": "director", "name": "Director"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Dates far in the future so the not-in-the-past rule never trips.
	rec = do(t, router, http.MethodPost, "/api/leave", map[string]any{
		"user_id": "amara", "start_date": "2030-10-10", "end_date": "2030-10-15",
		"reason": "family visit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	decodeBody(t, rec, &created)
	id := created["id"].(string)

	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/leave/%s/approve", id), map[string]any{
		"approver_id": "director", "notes": "coverage arranged",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var decided map[string]any
	decodeBody(t, rec, &decided)
	assert.Equal(t, "approved", decided["status"])
	assert.Equal(t, "director", decided["approver_id"])

	// A second decision hits a terminal state.
	rec = do(t, router, http.MethodPost, fmt.Sprintf("/api/leave/%s/reject", id), map[string]any{
		"approver_id": "director",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeave_OverlappingRange_409(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/staff", map[string]any{"id": "amara", "name": "Amara"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/leave", map[string]any{
		"user_id": "amara", "start_date": "2030-10-10", "end_date": "2030-10-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/leave", map[string]any{
		"user_id": "amara", "start_date": "2030-10-12", "end_date": "2030-10-20",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
