package catalog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// MENU CATALOG - Day-of-week menu resolution
// =============================================================================

// MenuCatalog resolves which menu templates are active on a calendar date:
// templates whose day-of-week matches, filtered to meal types enabled in
// the auto-meal settings.
//
// Settings failures are FAIL-OPEN: an unreadable settings source degrades
// to all meal types enabled. A storage failure listing menus still
// propagates; there is nothing sensible to serve without the catalog.
type MenuCatalog struct {
	Menus    kinder.MenuStore
	Settings SettingsSource
	Log      *logrus.Logger
}

func NewMenuCatalog(menus kinder.MenuStore, settings SettingsSource, log *logrus.Logger) *MenuCatalog {
	if settings == nil {
		settings = StaticSettings(DefaultAutoMealSettings())
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MenuCatalog{Menus: menus, Settings: settings, Log: log}
}

// ActiveMenus returns the menus that apply on the date. Pure read, no side
// effects.
func (c *MenuCatalog) ActiveMenus(ctx context.Context, date kinder.Date) ([]kinder.Menu, error) {
	menus, err := c.Menus.ListMenusByWeekday(ctx, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("list menus for %s: %w", date, err)
	}

	settings, err := c.Settings.Current(ctx)
	if err != nil {
		// Fail open: over-generating tickets beats blocking generation.
		c.Log.WithError(err).Warn("meal settings unreadable, defaulting all meal types to enabled")
		settings = DefaultAutoMealSettings()
	}

	var active []kinder.Menu
	for _, m := range menus {
		if settings.IsEnabled(m.MealType) {
			active = append(active, m)
		}
	}
	return active, nil
}
