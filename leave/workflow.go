/*
Package leave implements the staff leave request workflow.

PURPOSE:
  A leave request moves Pending -> Approved | Rejected, both terminal.
  While pending it can be edited or withdrawn; once decided it is frozen
  with the approver, timestamp, and notes recorded.

OVERLAP INVARIANT:
  For a given user, no two requests with status pending or approved may
  have overlapping [startDate, endDate] ranges. The test is closed on both
  ends: newStart <= existingEnd AND newEnd >= existingStart. Rejected
  requests do not block new ones.

SEE ALSO:
  - kinder/store.go: LeaveStore.CountOverlapping
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// WORKFLOW
// =============================================================================

// Workflow validates and transitions staff leave requests.
//
// Now is injectable so the "start date must not be in the past" rule can
// be tested against fixed dates. It defaults to time.Now.
type Workflow struct {
	Leave  kinder.LeaveStore
	Roster kinder.RosterStore
	Now    func() time.Time
}

func NewWorkflow(leave kinder.LeaveStore, roster kinder.RosterStore) *Workflow {
	return &Workflow{Leave: leave, Roster: roster, Now: time.Now}
}

func (w *Workflow) today() kinder.Date { return kinder.DateOf(w.Now()) }

// Create validates and stores a new pending request.
func (w *Workflow) Create(ctx context.Context, userID kinder.UserID, start, end kinder.Date, reason string) (*kinder.StaffLeaveRequest, error) {
	if err := w.validateRange(start, end); err != nil {
		return nil, err
	}

	user, err := w.Roster.GetStaffUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load staff user %s: %w", userID, err)
	}
	if user == nil {
		return nil, &kinder.NotFoundError{Entity: "staff user", ID: string(userID)}
	}

	if err := w.checkOverlap(ctx, userID, start, end, ""); err != nil {
		return nil, err
	}

	now := w.Now().UTC()
	req := kinder.StaffLeaveRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
		Status:    kinder.LeavePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.Leave.InsertLeave(ctx, req); err != nil {
		return nil, fmt.Errorf("insert leave request: %w", err)
	}
	return &req, nil
}

// Approve decides a pending request in the affirmative.
func (w *Workflow) Approve(ctx context.Context, id string, approverID kinder.UserID, notes string) (*kinder.StaffLeaveRequest, error) {
	return w.decide(ctx, id, approverID, notes, kinder.LeaveApproved)
}

// Reject decides a pending request in the negative.
func (w *Workflow) Reject(ctx context.Context, id string, approverID kinder.UserID, notes string) (*kinder.StaffLeaveRequest, error) {
	return w.decide(ctx, id, approverID, notes, kinder.LeaveRejected)
}

func (w *Workflow) decide(ctx context.Context, id string, approverID kinder.UserID, notes string, terminal kinder.LeaveStatus) (*kinder.StaffLeaveRequest, error) {
	req, err := w.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	decidedAt := w.Now().UTC()
	req.Status = terminal
	req.ApproverID = approverID
	req.DecidedAt = &decidedAt
	req.Notes = notes
	req.UpdatedAt = decidedAt

	if err := w.Leave.UpdateLeave(ctx, *req); err != nil {
		return nil, fmt.Errorf("update leave request %s: %w", id, err)
	}
	return req, nil
}

// Update edits a pending request's range and reason, re-running range
// validation and the overlap check (excluding the request itself).
func (w *Workflow) Update(ctx context.Context, id string, start, end kinder.Date, reason string) (*kinder.StaffLeaveRequest, error) {
	req, err := w.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := w.validateRange(start, end); err != nil {
		return nil, err
	}
	if err := w.checkOverlap(ctx, req.UserID, start, end, req.ID); err != nil {
		return nil, err
	}

	req.StartDate = start
	req.EndDate = end
	req.Reason = reason
	req.UpdatedAt = w.Now().UTC()

	if err := w.Leave.UpdateLeave(ctx, *req); err != nil {
		return nil, fmt.Errorf("update leave request %s: %w", id, err)
	}
	return req, nil
}

// Delete withdraws a pending request.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if _, err := w.loadPending(ctx, id); err != nil {
		return err
	}
	if err := w.Leave.DeleteLeave(ctx, id); err != nil {
		return fmt.Errorf("delete leave request %s: %w", id, err)
	}
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (w *Workflow) loadPending(ctx context.Context, id string) (*kinder.StaffLeaveRequest, error) {
	req, err := w.Leave.GetLeave(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load leave request %s: %w", id, err)
	}
	if req == nil {
		return nil, &kinder.NotFoundError{Entity: "leave request", ID: id}
	}
	if req.Status != kinder.LeavePending {
		return nil, &kinder.InvalidStateError{
			Entity:  "leave request",
			ID:      id,
			Current: string(req.Status),
			Want:    string(kinder.LeavePending),
		}
	}
	return req, nil
}

func (w *Workflow) validateRange(start, end kinder.Date) error {
	if start.IsZero() || end.IsZero() {
		return &kinder.ValidationError{Field: "dates", Reason: "start and end are required"}
	}
	if !start.Before(end) {
		return &kinder.ValidationError{Field: "endDate", Reason: "must be after start date"}
	}
	if start.Before(w.today()) {
		return &kinder.ValidationError{Field: "startDate", Reason: "must not be in the past"}
	}
	return nil
}

func (w *Workflow) checkOverlap(ctx context.Context, userID kinder.UserID, start, end kinder.Date, excludeID string) error {
	overlapping, err := w.Leave.CountOverlapping(ctx, userID, start, end, excludeID)
	if err != nil {
		return fmt.Errorf("check overlapping leave: %w", err)
	}
	if overlapping > 0 {
		return &kinder.ConflictError{
			Entity: "leave request",
			Key:    fmt.Sprintf("user=%s range=[%s, %s]", userID, start, end),
		}
	}
	return nil
}
