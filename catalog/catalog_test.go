package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsprout/kinder-engine/catalog"
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

func saveMenu(t *testing.T, store *sqlite.Store, id string, day time.Weekday, meal kinder.MealType) {
	t.Helper()
	err := store.SaveMenu(context.Background(), kinder.Menu{
		ID:        kinder.MenuID(id),
		Name:      id,
		DayOfWeek: day,
		MealType:  meal,
	})
	require.NoError(t, err)
}

// failingSettings always errors, to exercise the fail-open path.
type failingSettings struct{}

func (failingSettings) Current(context.Context) (catalog.AutoMealSettings, error) {
	return catalog.AutoMealSettings{}, errors.New("settings backend down")
}

// =============================================================================
// ACTIVE MENU RESOLUTION
// =============================================================================

func TestActiveMenus_FiltersByWeekday(t *testing.T) {
	// GIVEN: Menus on Monday and Tuesday
	// WHEN: Resolving a Monday date
	// THEN: Only Monday menus are returned

	store := newTestStore(t)
	saveMenu(t, store, "mon-breakfast", time.Monday, kinder.MealBreakfast)
	saveMenu(t, store, "mon-lunch", time.Monday, kinder.MealLunch)
	saveMenu(t, store, "tue-lunch", time.Tuesday, kinder.MealLunch)

	cat := catalog.NewMenuCatalog(store, nil, nil)

	monday := kinder.NewDate(2026, time.September, 7) // a Monday
	menus, err := cat.ActiveMenus(context.Background(), monday)
	require.NoError(t, err)

	require.Len(t, menus, 2)
	ids := []string{string(menus[0].ID), string(menus[1].ID)}
	assert.Contains(t, ids, "mon-breakfast")
	assert.Contains(t, ids, "mon-lunch")
}

func TestActiveMenus_FiltersByMealTypeSettings(t *testing.T) {
	// GIVEN: Monday breakfast, lunch, and snack menus; snack disabled
	// WHEN: Resolving a Monday date
	// THEN: The snack menu is excluded

	store := newTestStore(t)
	saveMenu(t, store, "mon-breakfast", time.Monday, kinder.MealBreakfast)
	saveMenu(t, store, "mon-lunch", time.Monday, kinder.MealLunch)
	saveMenu(t, store, "mon-snack", time.Monday, kinder.MealSnack)

	settings := catalog.StaticSettings(catalog.AutoMealSettings{
		Breakfast: true, Lunch: true, Snack: false, Dinner: true,
	})
	cat := catalog.NewMenuCatalog(store, settings, nil)

	monday := kinder.NewDate(2026, time.September, 7)
	menus, err := cat.ActiveMenus(context.Background(), monday)
	require.NoError(t, err)

	require.Len(t, menus, 2)
	for _, m := range menus {
		assert.NotEqual(t, kinder.MealSnack, m.MealType)
	}
}

func TestActiveMenus_SettingsFailure_FailsOpen(t *testing.T) {
	// GIVEN: A settings source that always errors
	// WHEN: Resolving menus
	// THEN: All meal types are treated as enabled; no error surfaces

	store := newTestStore(t)
	saveMenu(t, store, "mon-breakfast", time.Monday, kinder.MealBreakfast)
	saveMenu(t, store, "mon-dinner", time.Monday, kinder.MealDinner)

	cat := catalog.NewMenuCatalog(store, failingSettings{}, nil)

	monday := kinder.NewDate(2026, time.September, 7)
	menus, err := cat.ActiveMenus(context.Background(), monday)
	require.NoError(t, err)
	assert.Len(t, menus, 2, "fail-open should enable every meal type")
}

func TestActiveMenus_NoMenusForDay(t *testing.T) {
	store := newTestStore(t)
	saveMenu(t, store, "mon-lunch", time.Monday, kinder.MealLunch)

	cat := catalog.NewMenuCatalog(store, nil, nil)

	sunday := kinder.NewDate(2026, time.September, 6)
	menus, err := cat.ActiveMenus(context.Background(), sunday)
	require.NoError(t, err)
	assert.Empty(t, menus)
}

// =============================================================================
// FILE SETTINGS
// =============================================================================

func TestFileSettings_MissingFile_ReturnsDefaultAndError(t *testing.T) {
	// GIVEN: A settings path that does not exist
	// WHEN: Reading it
	// THEN: The fail-open default comes back along with the error

	fs := catalog.NewFileSettings(t.TempDir() + "/absent.yaml")

	settings, err := fs.Current(context.Background())
	assert.Error(t, err)
	assert.Equal(t, catalog.DefaultAutoMealSettings(), settings)
}

func TestDefaultAutoMealSettings_AllEnabled(t *testing.T) {
	s := catalog.DefaultAutoMealSettings()
	for _, m := range kinder.AllMealTypes {
		assert.True(t, s.IsEnabled(m), "meal type %s", m)
	}
}

func TestAutoMealSettings_UnknownMealTypeDisabled(t *testing.T) {
	s := catalog.DefaultAutoMealSettings()
	assert.False(t, s.IsEnabled(kinder.MealType("brunch")))
}
