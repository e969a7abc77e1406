package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// LIFECYCLE - Attendance record state transitions
// =============================================================================

// Lifecycle owns attendance records and triggers ticket synchronization on
// Present transitions. All four statuses transition freely among each
// other; the interesting edges are into and out of present.
//
// Ticket sync is best-effort: its failures are logged through Log, but an
// attendance write never fails because of them.
type Lifecycle struct {
	Attendance kinder.AttendanceStore
	Roster     kinder.RosterStore
	Tickets    *TicketLedger
	Log        *logrus.Logger
}

func NewLifecycle(att kinder.AttendanceStore, roster kinder.RosterStore, tickets *TicketLedger, log *logrus.Logger) *Lifecycle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Lifecycle{Attendance: att, Roster: roster, Tickets: tickets, Log: log}
}

// Create records a student's status for a date. Fails with Conflict if a
// record already exists for (student, date). A present status triggers
// ticket creation with old status "none".
func (lc *Lifecycle) Create(
	ctx context.Context,
	studentID kinder.StudentID,
	classID kinder.ClassID,
	date kinder.Date,
	status kinder.AttendanceStatus,
) (*kinder.AttendanceRecord, error) {
	if !status.Valid() {
		return nil, &kinder.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if date.IsZero() {
		return nil, &kinder.ValidationError{Field: "date", Reason: "required"}
	}

	student, err := lc.Roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load student %s: %w", studentID, err)
	}
	if student == nil {
		return nil, &kinder.NotFoundError{Entity: "student", ID: string(studentID)}
	}

	now := time.Now().UTC()
	rec := kinder.AttendanceRecord{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		ClassID:        classID,
		Date:           date,
		Status:         status,
		ExcusedAbsence: status == kinder.StatusExcused,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := lc.Attendance.InsertAttendance(ctx, rec); err != nil {
		return nil, err
	}

	lc.syncTickets(ctx, studentID, date, kinder.StatusNone, status)
	return &rec, nil
}

// Update applies status and refund corrections. The previous status is
// read from storage, not from the caller's copy, so ticket sync always
// acts on the true transition even if the caller held stale data.
func (lc *Lifecycle) Update(ctx context.Context, rec kinder.AttendanceRecord) (*kinder.AttendanceRecord, error) {
	if !rec.Status.Valid() {
		return nil, &kinder.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", rec.Status)}
	}
	if rec.DailyMealRefund.IsNegative() {
		return nil, &kinder.ValidationError{Field: "dailyMealRefund", Reason: "must not be negative"}
	}

	prev, err := lc.Attendance.GetAttendance(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load attendance %s: %w", rec.ID, err)
	}
	if prev == nil {
		return nil, &kinder.NotFoundError{Entity: "attendance record", ID: rec.ID}
	}

	// Identity fields are immutable; a correction changes what happened
	// that day, not which day or whose.
	updated := *prev
	updated.Status = rec.Status
	updated.ExcusedAbsence = rec.ExcusedAbsence
	updated.DailyMealRefund = rec.DailyMealRefund
	updated.UpdatedAt = time.Now().UTC()

	if err := lc.Attendance.UpdateAttendance(ctx, updated); err != nil {
		return nil, fmt.Errorf("update attendance %s: %w", rec.ID, err)
	}

	lc.syncTickets(ctx, updated.StudentID, updated.Date, prev.Status, updated.Status)
	return &updated, nil
}

// Delete removes a record by explicit staff action. Derived logic never
// calls this.
func (lc *Lifecycle) Delete(ctx context.Context, id string) error {
	prev, err := lc.Attendance.GetAttendance(ctx, id)
	if err != nil {
		return fmt.Errorf("load attendance %s: %w", id, err)
	}
	if prev == nil {
		return &kinder.NotFoundError{Entity: "attendance record", ID: id}
	}

	if err := lc.Attendance.DeleteAttendance(ctx, id); err != nil {
		return fmt.Errorf("delete attendance %s: %w", id, err)
	}

	// Removing the record retracts presence for the day.
	if prev.Status == kinder.StatusPresent {
		lc.syncTickets(ctx, prev.StudentID, prev.Date, kinder.StatusPresent, kinder.StatusNone)
	}
	return nil
}

// EnsureClassAttendance creates a default-present record for every student
// in the class who has none for the date, and returns the union of
// pre-existing and newly created records. Idempotent: repeat calls create
// nothing and never overwrite manual corrections.
func (lc *Lifecycle) EnsureClassAttendance(ctx context.Context, classID kinder.ClassID, date kinder.Date) ([]kinder.AttendanceRecord, error) {
	class, err := lc.Roster.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", classID, err)
	}
	if class == nil {
		return nil, &kinder.NotFoundError{Entity: "class", ID: string(classID)}
	}

	students, err := lc.Roster.ListStudentsInClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students in class %s: %w", classID, err)
	}

	records := make([]kinder.AttendanceRecord, 0, len(students))
	for _, student := range students {
		existing, err := lc.Attendance.GetAttendanceByStudentDate(ctx, student.ID, date)
		if err != nil {
			return nil, fmt.Errorf("load attendance for student %s: %w", student.ID, err)
		}
		if existing != nil {
			records = append(records, *existing)
			continue
		}

		now := time.Now().UTC()
		rec := kinder.AttendanceRecord{
			ID:        uuid.NewString(),
			StudentID: student.ID,
			ClassID:   classID,
			Date:      date,
			Status:    kinder.StatusPresent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := lc.Attendance.InsertAttendance(ctx, rec); err != nil {
			// A concurrent roll-call created it between our check and
			// insert; keep theirs.
			if kinder.IsConflict(err) {
				existing, err := lc.Attendance.GetAttendanceByStudentDate(ctx, student.ID, date)
				if err != nil {
					return nil, fmt.Errorf("reload attendance for student %s: %w", student.ID, err)
				}
				if existing != nil {
					records = append(records, *existing)
				}
				continue
			}
			return nil, fmt.Errorf("create attendance for student %s: %w", student.ID, err)
		}

		lc.syncTickets(ctx, student.ID, date, kinder.StatusNone, kinder.StatusPresent)
		records = append(records, rec)
	}
	return records, nil
}

// syncTickets runs the derived effect and logs failures. It never returns
// an error: attendance is the source of truth and must not be blocked by
// a downstream derivation failure.
func (lc *Lifecycle) syncTickets(ctx context.Context, studentID kinder.StudentID, date kinder.Date, oldStatus, newStatus kinder.AttendanceStatus) {
	if lc.Tickets == nil {
		return
	}
	report := lc.Tickets.SyncForAttendance(ctx, studentID, date, oldStatus, newStatus)
	if report.Failed() {
		for _, failure := range report.Failures {
			lc.Log.WithFields(logrus.Fields{
				"student": studentID,
				"date":    date.String(),
				"from":    string(oldStatus),
				"to":      string(newStatus),
			}).WithError(failure).Error("meal ticket sync failed")
		}
	}
}
