package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// DISH COST ENGINE - Derived nutrition and cost totals
// =============================================================================

var (
	gramsPerHundred  = decimal.NewFromInt(100)
	gramsPerThousand = decimal.NewFromInt(1000)
)

// DishCostEngine recomputes a dish's TotalCalories and TotalCost from its
// current ingredient composition.
//
// INVARIANT: dish totals are never stale. Every composition change
// (ingredient added, removed, or re-quantified) must be followed by
// Recompute. The engine does not recompute lazily on read.
type DishCostEngine struct {
	Dishes kinder.DishStore
}

func NewDishCostEngine(dishes kinder.DishStore) *DishCostEngine {
	return &DishCostEngine{Dishes: dishes}
}

// Recompute sums the dish's ingredient list and persists the totals:
//
//	totalCalories = round(Σ caloriesPer100g × grams / 100, 2)
//	totalCost     = round(Σ unitPrice × grams / 1000, 2)
//
// Summation happens before rounding, so ingredients combine additively.
// Returns the updated dish, or NotFound if the dish or one of its
// referenced ingredients no longer exists.
func (e *DishCostEngine) Recompute(ctx context.Context, dishID kinder.DishID) (*kinder.Dish, error) {
	dish, err := e.Dishes.GetDish(ctx, dishID)
	if err != nil {
		return nil, fmt.Errorf("load dish %s: %w", dishID, err)
	}
	if dish == nil {
		return nil, &kinder.NotFoundError{Entity: "dish", ID: string(dishID)}
	}

	composition, err := e.Dishes.ListDishIngredients(ctx, dishID)
	if err != nil {
		return nil, fmt.Errorf("load composition for dish %s: %w", dishID, err)
	}

	totalCalories := decimal.Zero
	totalCost := decimal.Zero

	for _, di := range composition {
		ing, err := e.Dishes.GetIngredient(ctx, di.IngredientID)
		if err != nil {
			return nil, fmt.Errorf("load ingredient %s: %w", di.IngredientID, err)
		}
		if ing == nil {
			return nil, &kinder.NotFoundError{Entity: "ingredient", ID: string(di.IngredientID)}
		}

		totalCalories = totalCalories.Add(ing.CaloriesPer100g.Mul(di.QuantityGrams).Div(gramsPerHundred))
		totalCost = totalCost.Add(ing.UnitPrice.Mul(di.QuantityGrams).Div(gramsPerThousand))
	}

	totalCalories = totalCalories.Round(2)
	totalCost = totalCost.Round(2)

	if err := e.Dishes.UpdateDishTotals(ctx, dishID, totalCalories, totalCost); err != nil {
		return nil, fmt.Errorf("persist totals for dish %s: %w", dishID, err)
	}

	dish.TotalCalories = totalCalories
	dish.TotalCost = totalCost
	return dish, nil
}
