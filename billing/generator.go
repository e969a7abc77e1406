/*
Package billing generates monthly tuition invoices net of meal refunds.

PURPOSE:
  For a billing period (one calendar month), produce one pending tuition
  invoice per student:

    amount = max(0, tuitionFee + mealFee
                    - refunds(period)
                    - refunds(period - 1))

  where refunds(p) is the sum of dailyMealRefund over the student's
  excused-absence records inside p.

IDEMPOTENCE:
  At most one invoice exists per (student, period). Running the generator
  twice for the same period creates zero new rows and never deducts a
  refund twice; the second run counts every student as skipped.

CARRY-OVER:
  The carried balance reaches exactly ONE period back. Refunds two or more
  periods old are not chained forward. That one-period depth is the
  product's billing rule, not an accident of implementation.

FAILURE ISOLATION:
  One student's failure (storage hiccup, bad fee data) does not abort the
  batch. Failures are collected on the RunReport and logged; the remaining
  students are still processed.

SEE ALSO:
  - attendance: produces the excused-absence records aggregated here
  - api/scheduler.go: runs the generator monthly
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brightsprout/kinder-engine/kinder"
)

// =============================================================================
// RUN REPORT
// =============================================================================

// StudentFailure records one student the batch could not invoice.
type StudentFailure struct {
	StudentID kinder.StudentID
	Err       error
}

// RunReport summarizes one generator run.
type RunReport struct {
	Period   kinder.Period
	Created  int
	Skipped  int // invoice already existed
	Failures []StudentFailure
}

func (r RunReport) Failed() bool { return len(r.Failures) > 0 }

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces tuition invoices for a billing period.
type Generator struct {
	Roster     kinder.RosterStore
	Attendance kinder.AttendanceStore
	Invoices   kinder.InvoiceStore
	Log        *logrus.Logger
}

func NewGenerator(roster kinder.RosterStore, att kinder.AttendanceStore, inv kinder.InvoiceStore, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{Roster: roster, Attendance: att, Invoices: inv, Log: log}
}

// GenerateTuitionInvoices runs the batch for every class and student.
// Returns an error only for infrastructure failures that prevent the
// batch from running at all; per-student failures land on the report.
func (g *Generator) GenerateTuitionInvoices(ctx context.Context, period kinder.Period) (*RunReport, error) {
	if period.IsZero() {
		return nil, &kinder.ValidationError{Field: "period", Reason: "required"}
	}

	classes, err := g.Roster.ListClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	report := &RunReport{Period: period}
	for _, class := range classes {
		students, err := g.Roster.ListStudentsInClass(ctx, class.ID)
		if err != nil {
			return nil, fmt.Errorf("list students in class %s: %w", class.ID, err)
		}

		for _, student := range students {
			if err := g.invoiceStudent(ctx, class, student, period, report); err != nil {
				report.Failures = append(report.Failures, StudentFailure{StudentID: student.ID, Err: err})
				g.Log.WithFields(logrus.Fields{
					"student": student.ID,
					"period":  period.String(),
				}).WithError(err).Error("tuition invoice generation failed for student")
			}
		}
	}
	return report, nil
}

func (g *Generator) invoiceStudent(
	ctx context.Context,
	class kinder.Class,
	student kinder.Student,
	period kinder.Period,
	report *RunReport,
) error {
	exists, err := g.Invoices.InvoiceExists(ctx, student.ID, period, kinder.InvoiceTuition)
	if err != nil {
		return fmt.Errorf("check existing invoice: %w", err)
	}
	if exists {
		report.Skipped++
		return nil
	}

	refundThisPeriod, err := g.sumRefunds(ctx, student.ID, period)
	if err != nil {
		return fmt.Errorf("sum refunds for %s: %w", period, err)
	}

	// One period back only. Older unresolved refunds are not chained.
	carried, err := g.sumRefunds(ctx, student.ID, period.Previous())
	if err != nil {
		return fmt.Errorf("sum carry-over for %s: %w", period.Previous(), err)
	}

	base := class.TuitionFee.Add(class.MealFee)
	amount := base.Sub(refundThisPeriod).Sub(carried)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	invoice := kinder.TuitionInvoice{
		ID:                uuid.NewString(),
		StudentID:         student.ID,
		Period:            period,
		Kind:              kinder.InvoiceTuition,
		Amount:            amount,
		Status:            kinder.InvoicePending,
		BaseTuition:       base,
		MealRefundApplied: refundThisPeriod,
		CarriedBalance:    carried,
		CreatedAt:         time.Now().UTC(),
	}

	if err := g.Invoices.InsertInvoice(ctx, invoice); err != nil {
		// A concurrent run inserted it after our existence check. The
		// unique index held the invariant; count it as skipped.
		if kinder.IsConflict(err) {
			report.Skipped++
			return nil
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	report.Created++
	return nil
}

// sumRefunds totals dailyMealRefund over the student's excused-absence
// records in the period.
func (g *Generator) sumRefunds(ctx context.Context, studentID kinder.StudentID, period kinder.Period) (decimal.Decimal, error) {
	from, to := period.Bounds()
	records, err := g.Attendance.ListExcusedAbsences(ctx, studentID, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.DailyMealRefund)
	}
	return total, nil
}
