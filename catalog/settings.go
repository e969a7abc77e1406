/*
Package catalog resolves which menus apply on a date and keeps dish
nutrition/cost totals in sync with their ingredient composition.

PURPOSE:
  Two concerns live here:
  - MenuCatalog: day-of-week menu resolution filtered by the per-meal-type
    auto-generation settings (settings.go, catalog.go)
  - DishCostEngine: derived dish totals (cost.go)

SETTINGS:
  AutoMealSettings is one enable flag per meal type. It is file-backed
  (viper, yaml) and FAIL-OPEN: if the file is missing or unreadable, every
  meal type is treated as enabled. Blocking meal-ticket generation is
  worse than over-generating; tickets for a disabled meal can be deleted,
  a missed meal cannot be served retroactively.

  Settings are an explicit injected value, not process-wide state. The
  catalog reads them through the SettingsSource interface so tests can
  substitute fixed values or failures.

SEE ALSO:
  - catalog.go: ActiveMenus
  - cost.go: DishCostEngine
*/
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// AUTO MEAL SETTINGS - Per-meal-type enable flags
// =============================================================================

// AutoMealSettings controls which meal types participate in automatic
// meal-ticket generation.
type AutoMealSettings struct {
	Breakfast bool `mapstructure:"breakfast"`
	Lunch     bool `mapstructure:"lunch"`
	Snack     bool `mapstructure:"snack"`
	Dinner    bool `mapstructure:"dinner"`
}

// DefaultAutoMealSettings returns the fail-open default: all enabled.
func DefaultAutoMealSettings() AutoMealSettings {
	return AutoMealSettings{Breakfast: true, Lunch: true, Snack: true, Dinner: true}
}

// IsEnabled reports whether ticket generation considers the meal type.
// Unknown meal types are disabled.
func (s AutoMealSettings) IsEnabled(m kinder.MealType) bool {
	switch m {
	case kinder.MealBreakfast:
		return s.Breakfast
	case kinder.MealLunch:
		return s.Lunch
	case kinder.MealSnack:
		return s.Snack
	case kinder.MealDinner:
		return s.Dinner
	}
	return false
}

// =============================================================================
// SETTINGS SOURCE
// =============================================================================

// SettingsSource provides the current settings. Current may fail; callers
// that cannot tolerate failure fall back to DefaultAutoMealSettings.
type SettingsSource interface {
	Current(ctx context.Context) (AutoMealSettings, error)
}

// StaticSettings is a fixed-value source, used in tests and as a
// no-config default.
type StaticSettings AutoMealSettings

func (s StaticSettings) Current(context.Context) (AutoMealSettings, error) {
	return AutoMealSettings(s), nil
}

// =============================================================================
// FILE SETTINGS - viper-backed, lazily loaded
// =============================================================================

// FileSettings reads AutoMealSettings from a yaml file via viper. The file
// is read once on first use and cached; Reload picks up edits.
//
// Expected file shape:
//
//	breakfast: true
//	lunch: true
//	snack: false
//	dinner: false
type FileSettings struct {
	path string

	mu     sync.Mutex
	loaded bool
	cached AutoMealSettings
	err    error
}

func NewFileSettings(path string) *FileSettings {
	return &FileSettings{path: path}
}

// Current returns the cached settings, loading the file on first call.
// On load failure it returns the error along with the fail-open default;
// the caller decides whether to surface or swallow it.
func (f *FileSettings) Current(ctx context.Context) (AutoMealSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		f.cached, f.err = f.read()
		f.loaded = true
	}
	return f.cached, f.err
}

// Reload re-reads the file, replacing the cache.
func (f *FileSettings) Reload(ctx context.Context) (AutoMealSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cached, f.err = f.read()
	f.loaded = true
	return f.cached, f.err
}

func (f *FileSettings) read() (AutoMealSettings, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	// Absent keys default to enabled, same as an absent file.
	for _, m := range kinder.AllMealTypes {
		v.SetDefault(string(m), true)
	}

	if err := v.ReadInConfig(); err != nil {
		return DefaultAutoMealSettings(), fmt.Errorf("read meal settings %s: %w", f.path, err)
	}

	var s AutoMealSettings
	if err := v.Unmarshal(&s); err != nil {
		return DefaultAutoMealSettings(), fmt.Errorf("parse meal settings %s: %w", f.path, err)
	}
	return s, nil
}
