package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsprout/kinder-engine/catalog"
	"github.com/brightsprout/kinder-engine/kinder"
	"github.com/brightsprout/kinder-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func saveIngredient(t *testing.T, store *sqlite.Store, id, caloriesPer100g, unitPrice string) {
	t.Helper()
	err := store.SaveIngredient(context.Background(), kinder.Ingredient{
		ID:              kinder.IngredientID(id),
		Name:            id,
		CaloriesPer100g: dec(caloriesPer100g),
		UnitPrice:       dec(unitPrice),
	})
	require.NoError(t, err)
}

func saveDish(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()
	err := store.SaveDish(context.Background(), kinder.Dish{
		ID:   kinder.DishID(id),
		Name: id,
	})
	require.NoError(t, err)
}

func addIngredient(t *testing.T, store *sqlite.Store, dishID, ingredientID, grams string) {
	t.Helper()
	err := store.UpsertDishIngredient(context.Background(), kinder.DishID(dishID), kinder.DishIngredient{
		IngredientID:  kinder.IngredientID(ingredientID),
		QuantityGrams: dec(grams),
	})
	require.NoError(t, err)
}

// =============================================================================
// DERIVED TOTALS
// =============================================================================

func TestRecompute_SingleIngredient(t *testing.T) {
	// GIVEN: Chicken at 165 cal/100g, 85000 per kg; 100g in the dish
	// WHEN: Recomputing
	// THEN: 165 calories, cost 8500

	store := newTestStore(t)
	saveIngredient(t, store, "chicken", "165", "85000")
	saveDish(t, store, "grilled-chicken")
	addIngredient(t, store, "grilled-chicken", "chicken", "100")

	engine := catalog.NewDishCostEngine(store)
	dish, err := engine.Recompute(context.Background(), "grilled-chicken")
	require.NoError(t, err)

	assert.True(t, dish.TotalCalories.Equal(dec("165")), "got %s", dish.TotalCalories)
	assert.True(t, dish.TotalCost.Equal(dec("8500")), "got %s", dish.TotalCost)
}

func TestRecompute_IngredientsCombineAdditively(t *testing.T) {
	// GIVEN: Chicken 100g plus rice 50g (130 cal/100g, 20000 per kg)
	// THEN: Totals are the sum of both contributions

	store := newTestStore(t)
	saveIngredient(t, store, "chicken", "165", "85000")
	saveIngredient(t, store, "rice", "130", "20000")
	saveDish(t, store, "chicken-rice")
	addIngredient(t, store, "chicken-rice", "chicken", "100")
	addIngredient(t, store, "chicken-rice", "rice", "50")

	engine := catalog.NewDishCostEngine(store)
	dish, err := engine.Recompute(context.Background(), "chicken-rice")
	require.NoError(t, err)

	// 165 + 130*50/100 = 230; 8500 + 20000*50/1000 = 9500
	assert.True(t, dish.TotalCalories.Equal(dec("230")), "got %s", dish.TotalCalories)
	assert.True(t, dish.TotalCost.Equal(dec("9500")), "got %s", dish.TotalCost)
}

func TestRecompute_RoundsAfterSummation(t *testing.T) {
	// GIVEN: Quantities that produce sub-cent contributions
	// THEN: Rounding to 2 decimals happens once, on the sums

	store := newTestStore(t)
	saveIngredient(t, store, "spice", "333.333", "99999")
	saveDish(t, store, "spiced")
	addIngredient(t, store, "spiced", "spice", "1")

	engine := catalog.NewDishCostEngine(store)
	dish, err := engine.Recompute(context.Background(), "spiced")
	require.NoError(t, err)

	// 333.333 * 1 / 100 = 3.33333 -> 3.33
	assert.True(t, dish.TotalCalories.Equal(dec("3.33")), "got %s", dish.TotalCalories)
	// 99999 * 1 / 1000 = 99.999 -> 100.00
	assert.True(t, dish.TotalCost.Equal(dec("100")), "got %s", dish.TotalCost)
}

func TestRecompute_RequantifyingReplacesContribution(t *testing.T) {
	// GIVEN: A recomputed dish
	// WHEN: The ingredient quantity changes and recompute runs again
	// THEN: Totals reflect only the new quantity

	store := newTestStore(t)
	saveIngredient(t, store, "chicken", "165", "85000")
	saveDish(t, store, "grilled-chicken")
	addIngredient(t, store, "grilled-chicken", "chicken", "100")

	engine := catalog.NewDishCostEngine(store)
	_, err := engine.Recompute(context.Background(), "grilled-chicken")
	require.NoError(t, err)

	addIngredient(t, store, "grilled-chicken", "chicken", "200")
	dish, err := engine.Recompute(context.Background(), "grilled-chicken")
	require.NoError(t, err)

	assert.True(t, dish.TotalCalories.Equal(dec("330")), "got %s", dish.TotalCalories)
	assert.True(t, dish.TotalCost.Equal(dec("17000")), "got %s", dish.TotalCost)
}

func TestRecompute_EmptyCompositionZeroesTotals(t *testing.T) {
	store := newTestStore(t)
	saveIngredient(t, store, "chicken", "165", "85000")
	saveDish(t, store, "emptied")
	addIngredient(t, store, "emptied", "chicken", "100")

	engine := catalog.NewDishCostEngine(store)
	_, err := engine.Recompute(context.Background(), "emptied")
	require.NoError(t, err)

	require.NoError(t, store.RemoveDishIngredient(context.Background(), "emptied", "chicken"))

	dish, err := engine.Recompute(context.Background(), "emptied")
	require.NoError(t, err)
	assert.True(t, dish.TotalCalories.IsZero())
	assert.True(t, dish.TotalCost.IsZero())
}

func TestRecompute_UnknownDish(t *testing.T) {
	store := newTestStore(t)
	engine := catalog.NewDishCostEngine(store)

	_, err := engine.Recompute(context.Background(), "ghost")
	assert.True(t, kinder.IsNotFound(err))
}
