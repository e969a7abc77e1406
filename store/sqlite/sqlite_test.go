package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsprout/kinder-engine/kinder"
	"github.com/brightsprout/kinder-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

var (
	day     = kinder.NewDate(2026, time.October, 5)
	nextDay = kinder.NewDate(2026, time.October, 6)
)

// =============================================================================
// ROSTER
// =============================================================================

func TestClass_DecimalFeesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := kinder.Class{
		ID:         "sunflower",
		Name:       "Sunflower",
		Capacity:   25,
		TuitionFee: mustDec(t, "2000000"),
		MealFee:    mustDec(t, "500000.50"),
	}
	require.NoError(t, store.SaveClass(ctx, in))

	out, err := store.GetClass(ctx, "sunflower")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.TuitionFee.Equal(out.TuitionFee), "tuition was %s", out.TuitionFee)
	assert.True(t, in.MealFee.Equal(out.MealFee), "meal fee was %s", out.MealFee)
	assert.Equal(t, 25, out.Capacity)
}

func TestGetClass_Absent_ReturnsNilNil(t *testing.T) {
	store := newTestStore(t)

	out, err := store.GetClass(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestSaveClass_UpsertsByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveClass(ctx, kinder.Class{ID: "c1", Name: "Old"}))
	require.NoError(t, store.SaveClass(ctx, kinder.Class{ID: "c1", Name: "New", Capacity: 30}))

	out, err := store.GetClass(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "New", out.Name)
	assert.Equal(t, 30, out.Capacity)

	all, err := store.ListClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// ATTENDANCE UNIQUENESS AND RANGE QUERIES
// =============================================================================

// seedStudents satisfies the attendance foreign key on students.
func seedStudents(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveClass(ctx, kinder.Class{ID: "sunflower", Name: "Sunflower"}))
	require.NoError(t, store.SaveStudent(ctx, kinder.Student{ID: "mia", ClassID: "sunflower", Name: "Mia"}))
	require.NoError(t, store.SaveStudent(ctx, kinder.Student{ID: "ben", ClassID: "sunflower", Name: "Ben"}))
}

func attendanceRecord(id string, studentID kinder.StudentID, d kinder.Date) kinder.AttendanceRecord {
	return kinder.AttendanceRecord{
		ID:        id,
		StudentID: studentID,
		ClassID:   "sunflower",
		Date:      d,
		Status:    kinder.StatusPresent,
	}
}

func TestInsertAttendance_DuplicateStudentDate_Conflict(t *testing.T) {
	store := newTestStore(t)
	seedStudents(t, store)
	ctx := context.Background()

	require.NoError(t, store.InsertAttendance(ctx, attendanceRecord("a1", "mia", day)))

	err := store.InsertAttendance(ctx, attendanceRecord("a2", "mia", day))
	assert.True(t, kinder.IsConflict(err), "got %v", err)

	// Same student, different date is fine.
	assert.NoError(t, store.InsertAttendance(ctx, attendanceRecord("a3", "mia", nextDay)))
	// Different student, same date is fine.
	assert.NoError(t, store.InsertAttendance(ctx, attendanceRecord("a4", "ben", day)))
}

func TestUpdateAttendance_Unknown_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateAttendance(context.Background(), attendanceRecord("nope", "mia", day))
	assert.True(t, kinder.IsNotFound(err), "got %v", err)
}

func TestListExcusedAbsences_FiltersByFlagAndRange(t *testing.T) {
	// GIVEN: Excused records inside and outside October, plus a plain
	//        absence inside it
	// THEN: Only the in-range excused record is returned

	store := newTestStore(t)
	seedStudents(t, store)
	ctx := context.Background()

	excused := attendanceRecord("e1", "mia", day)
	excused.Status = kinder.StatusExcused
	excused.ExcusedAbsence = true
	excused.DailyMealRefund = mustDec(t, "50000")
	require.NoError(t, store.InsertAttendance(ctx, excused))

	outside := attendanceRecord("e2", "mia", kinder.NewDate(2026, time.September, 10))
	outside.Status = kinder.StatusExcused
	outside.ExcusedAbsence = true
	require.NoError(t, store.InsertAttendance(ctx, outside))

	plain := attendanceRecord("p1", "mia", nextDay)
	plain.Status = kinder.StatusAbsent
	require.NoError(t, store.InsertAttendance(ctx, plain))

	from, to := kinder.Period{Year: 2026, Month: time.October}.Bounds()
	records, err := store.ListExcusedAbsences(ctx, "mia", from, to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e1", records[0].ID)
	assert.True(t, mustDec(t, "50000").Equal(records[0].DailyMealRefund))
}

// =============================================================================
// MEAL TICKETS
// =============================================================================

func ticket(id string, menuID kinder.MenuID, d kinder.Date) kinder.MealTicket {
	return kinder.MealTicket{ID: id, StudentID: "mia", MenuID: menuID, Date: d}
}

func TestInsertTicket_DuplicateTriple_Conflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTicket(ctx, ticket("t1", "mon-lunch", day)))

	err := store.InsertTicket(ctx, ticket("t2", "mon-lunch", day))
	assert.True(t, kinder.IsConflict(err), "got %v", err)

	assert.NoError(t, store.InsertTicket(ctx, ticket("t3", "mon-breakfast", day)))
}

func TestDeleteUnconsumedTickets_SparesConsumed(t *testing.T) {
	// GIVEN: Two tickets for the day, one already consumed
	// WHEN: Unconsumed tickets are deleted
	// THEN: Count is 1 and the consumed ticket survives

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTicket(ctx, ticket("t1", "mon-breakfast", day)))
	require.NoError(t, store.InsertTicket(ctx, ticket("t2", "mon-lunch", day)))
	require.NoError(t, store.MarkTicketConsumed(ctx, "t2"))

	deleted, err := store.DeleteUnconsumedTickets(ctx, "mia", day)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := store.ListTicketsByStudentDate(ctx, "mia", day)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "t2", remaining[0].ID)
	assert.True(t, remaining[0].Consumed)
}

func TestDeleteUnconsumedTickets_OtherDatesUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTicket(ctx, ticket("t1", "mon-lunch", day)))
	require.NoError(t, store.InsertTicket(ctx, ticket("t2", "tue-lunch", nextDay)))

	deleted, err := store.DeleteUnconsumedTickets(ctx, "mia", day)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	other, err := store.ListTicketsByStudentDate(ctx, "mia", nextDay)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestMarkTicketConsumed_Unknown_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.MarkTicketConsumed(context.Background(), "nope")
	assert.True(t, kinder.IsNotFound(err), "got %v", err)
}

func TestTicketExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTicket(ctx, ticket("t1", "mon-lunch", day)))

	exists, err := store.TicketExists(ctx, "mia", "mon-lunch", day)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.TicketExists(ctx, "mia", "mon-lunch", nextDay)
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInsertInvoice_DuplicateStudentPeriod_Conflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	october := kinder.Period{Year: 2026, Month: time.October}

	inv := kinder.TuitionInvoice{
		ID:        "i1",
		StudentID: "mia",
		Period:    october,
		Kind:      kinder.InvoiceTuition,
		Amount:    mustDec(t, "2420000"),
		Status:    kinder.InvoicePending,
	}
	require.NoError(t, store.InsertInvoice(ctx, inv))

	inv.ID = "i2"
	err := store.InsertInvoice(ctx, inv)
	assert.True(t, kinder.IsConflict(err), "got %v", err)

	inv.ID = "i3"
	inv.Period = october.Next()
	assert.NoError(t, store.InsertInvoice(ctx, inv))
}

func TestUpdateInvoiceStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	october := kinder.Period{Year: 2026, Month: time.October}

	require.NoError(t, store.InsertInvoice(ctx, kinder.TuitionInvoice{
		ID:        "i1",
		StudentID: "mia",
		Period:    october,
		Kind:      kinder.InvoiceTuition,
		Amount:    mustDec(t, "100"),
		Status:    kinder.InvoicePending,
	}))

	require.NoError(t, store.UpdateInvoiceStatus(ctx, "i1", kinder.InvoicePaid))

	invoices, err := store.ListInvoicesByPeriod(ctx, october)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, kinder.InvoicePaid, invoices[0].Status)

	err = store.UpdateInvoiceStatus(ctx, "nope", kinder.InvoicePaid)
	assert.True(t, kinder.IsNotFound(err), "got %v", err)
}

// =============================================================================
// LEAVE OVERLAP COUNTING
// =============================================================================

func leaveRequest(id string, status kinder.LeaveStatus, startDay, endDay int) kinder.StaffLeaveRequest {
	return kinder.StaffLeaveRequest{
		ID:        id,
		UserID:    "amara",
		StartDate: kinder.NewDate(2026, time.October, startDay),
		EndDate:   kinder.NewDate(2026, time.October, endDay),
		Status:    status,
	}
}

func TestCountOverlapping_ClosedIntervalPerStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertLeave(ctx, leaveRequest("l1", kinder.LeavePending, 10, 15)))
	require.NoError(t, store.InsertLeave(ctx, leaveRequest("l2", kinder.LeaveRejected, 20, 25)))

	cases := []struct {
		name               string
		startDay, endDay   int
		want               int
	}{
		{"inside pending", 11, 14, 1},
		{"touches pending end", 15, 18, 1},
		{"after pending", 16, 18, 0},
		{"inside rejected only", 21, 24, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := store.CountOverlapping(ctx, "amara",
				kinder.NewDate(2026, time.October, tc.startDay),
				kinder.NewDate(2026, time.October, tc.endDay), "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestCountOverlapping_ExcludesGivenID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertLeave(ctx, leaveRequest("l1", kinder.LeavePending, 10, 15)))

	n, err := store.CountOverlapping(ctx, "amara", kinder.NewDate(2026, time.October, 11), kinder.NewDate(2026, time.October, 14), "l1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountOverlapping_PerUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertLeave(ctx, leaveRequest("l1", kinder.LeavePending, 10, 15)))

	n, err := store.CountOverlapping(ctx, "bao", kinder.NewDate(2026, time.October, 10), kinder.NewDate(2026, time.October, 15), "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// DISH COMPOSITION
// =============================================================================

func TestDishIngredients_UpsertAndRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveIngredient(ctx, kinder.Ingredient{ID: "chicken", Name: "Chicken"}))
	require.NoError(t, store.SaveDish(ctx, kinder.Dish{ID: "stew", Name: "Stew"}))

	require.NoError(t, store.UpsertDishIngredient(ctx, "stew", kinder.DishIngredient{
		IngredientID: "chicken", QuantityGrams: mustDec(t, "100"),
	}))
	// Requantify the same ingredient.
	require.NoError(t, store.UpsertDishIngredient(ctx, "stew", kinder.DishIngredient{
		IngredientID: "chicken", QuantityGrams: mustDec(t, "250"),
	}))

	rows, err := store.ListDishIngredients(ctx, "stew")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, mustDec(t, "250").Equal(rows[0].QuantityGrams))

	require.NoError(t, store.RemoveDishIngredient(ctx, "stew", "chicken"))
	rows, err = store.ListDishIngredients(ctx, "stew")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdateDishTotals_OwnsDerivedColumns(t *testing.T) {
	// SaveDish must not clobber totals written by UpdateDishTotals.

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDish(ctx, kinder.Dish{ID: "stew", Name: "Stew"}))
	require.NoError(t, store.UpdateDishTotals(ctx, "stew", mustDec(t, "165"), mustDec(t, "8500")))

	// Re-saving descriptive fields keeps the derived totals.
	require.NoError(t, store.SaveDish(ctx, kinder.Dish{ID: "stew", Name: "Hearty Stew"}))

	dish, err := store.GetDish(ctx, "stew")
	require.NoError(t, err)
	require.NotNil(t, dish)
	assert.Equal(t, "Hearty Stew", dish.Name)
	assert.True(t, mustDec(t, "165").Equal(dish.TotalCalories), "calories were %s", dish.TotalCalories)
	assert.True(t, mustDec(t, "8500").Equal(dish.TotalCost), "cost was %s", dish.TotalCost)
}

// =============================================================================
// MENUS
// =============================================================================

func TestListMenusByWeekday(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMenu(ctx, kinder.Menu{ID: "m1", Name: "Mon Lunch", DayOfWeek: time.Monday, MealType: kinder.MealLunch}))
	require.NoError(t, store.SaveMenu(ctx, kinder.Menu{ID: "m2", Name: "Tue Lunch", DayOfWeek: time.Tuesday, MealType: kinder.MealLunch}))

	monday, err := store.ListMenusByWeekday(ctx, time.Monday)
	require.NoError(t, err)
	require.Len(t, monday, 1)
	assert.Equal(t, kinder.MenuID("m1"), monday[0].ID)
}

func TestAssignDish_ListsInOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMenu(ctx, kinder.Menu{ID: "m1", Name: "Lunch", DayOfWeek: time.Monday, MealType: kinder.MealLunch}))
	require.NoError(t, store.SaveDish(ctx, kinder.Dish{ID: "stew", Name: "Stew"}))
	require.NoError(t, store.SaveDish(ctx, kinder.Dish{ID: "rice", Name: "Rice"}))

	require.NoError(t, store.AssignDish(ctx, "m1", "stew"))
	require.NoError(t, store.AssignDish(ctx, "m1", "rice"))

	dishes, err := store.ListMenuDishes(ctx, "m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []kinder.DishID{"stew", "rice"}, dishes)
}
