/*
Package attendance owns the daily attendance lifecycle and the meal-ticket
records derived from it.

PURPOSE:
  Attendance is the source of truth for a student's day. Meal tickets are
  DERIVED records: created when a student becomes present, removed (while
  unconsumed) when presence is retracted. The derivation is best-effort
  relative to the attendance write — a ticket failure is logged and
  reported, but never blocks or rolls back attendance.

INVARIANTS:
  1. At most one attendance record per (student, date)
  2. At most one ticket per (student, menu, date)
  3. A consumed ticket is never deleted by automated logic
  4. Ticket existence implies the student was present at creation time

TRANSITION RULES (tickets.go):
  old != present, new == present  -> create one ticket per active menu
  old == present, new != present  -> delete the student's unconsumed
                                     tickets for the whole day
  anything else                   -> no-op

  Deletion is scoped to (student, date), not to particular menus. If a
  ticket from a still-valid menu sits alongside ones invalidated by the
  status change, it is deleted too while unconsumed. This matches how the
  product behaves; narrowing the scope would need a product decision.

SEE ALSO:
  - lifecycle.go: Create / Update / EnsureClassAttendance
  - catalog/catalog.go: ActiveMenus
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsprout/kinder-engine/catalog"
	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// SYNC REPORT - Isolated failure channel for the derived effect
// =============================================================================

// SyncReport is the outcome of one ticket synchronization. Failures are
// collected here instead of being returned as an error: the attendance
// write that triggered the sync has already happened and must stand.
type SyncReport struct {
	StudentID kinder.StudentID
	Date      kinder.Date
	Created   int
	Deleted   int
	Failures  []error
}

// Failed reports whether any step of the sync failed.
func (r SyncReport) Failed() bool { return len(r.Failures) > 0 }

// NoOp reports whether the transition required no ticket changes.
func (r SyncReport) NoOp() bool {
	return r.Created == 0 && r.Deleted == 0 && len(r.Failures) == 0
}

// =============================================================================
// TICKET LEDGER - Derived meal-ticket records
// =============================================================================

// TicketLedger creates and deletes meal tickets in response to attendance
// status transitions.
type TicketLedger struct {
	Catalog *catalog.MenuCatalog
	Tickets kinder.TicketStore
}

func NewTicketLedger(cat *catalog.MenuCatalog, tickets kinder.TicketStore) *TicketLedger {
	return &TicketLedger{Catalog: cat, Tickets: tickets}
}

// SyncForAttendance applies the transition rules for one student and date.
// Re-entrant: repeating a call creates no duplicate tickets and deletes
// nothing it should not. Never returns an error; inspect the report.
func (l *TicketLedger) SyncForAttendance(
	ctx context.Context,
	studentID kinder.StudentID,
	date kinder.Date,
	oldStatus, newStatus kinder.AttendanceStatus,
) SyncReport {
	report := SyncReport{StudentID: studentID, Date: date}

	becamePresent := oldStatus != kinder.StatusPresent && newStatus == kinder.StatusPresent
	leftPresent := oldStatus == kinder.StatusPresent && newStatus != kinder.StatusPresent

	switch {
	case becamePresent:
		l.createTickets(ctx, &report)
	case leftPresent:
		l.deleteUnconsumed(ctx, &report)
	}
	return report
}

func (l *TicketLedger) createTickets(ctx context.Context, report *SyncReport) {
	menus, err := l.Catalog.ActiveMenus(ctx, report.Date)
	if err != nil {
		report.Failures = append(report.Failures,
			fmt.Errorf("resolve active menus for %s: %w", report.Date, err))
		return
	}

	for _, menu := range menus {
		exists, err := l.Tickets.TicketExists(ctx, report.StudentID, menu.ID, report.Date)
		if err != nil {
			report.Failures = append(report.Failures,
				fmt.Errorf("check ticket for menu %s: %w", menu.ID, err))
			continue
		}
		if exists {
			continue
		}

		ticket := kinder.MealTicket{
			ID:        uuid.NewString(),
			StudentID: report.StudentID,
			MenuID:    menu.ID,
			Date:      report.Date,
			Consumed:  false,
			CreatedAt: time.Now().UTC(),
		}
		if err := l.Tickets.InsertTicket(ctx, ticket); err != nil {
			// A concurrent sync beat us to the triple. Fine either way.
			if kinder.IsConflict(err) {
				continue
			}
			report.Failures = append(report.Failures,
				fmt.Errorf("create ticket for menu %s: %w", menu.ID, err))
			continue
		}
		report.Created++
	}
}

func (l *TicketLedger) deleteUnconsumed(ctx context.Context, report *SyncReport) {
	deleted, err := l.Tickets.DeleteUnconsumedTickets(ctx, report.StudentID, report.Date)
	if err != nil {
		report.Failures = append(report.Failures,
			fmt.Errorf("delete unconsumed tickets: %w", err))
		return
	}
	report.Deleted = deleted
}
