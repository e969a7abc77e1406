/*
scheduler.go - Automated monthly billing scheduler

PURPOSE:
  Periodically runs the tuition invoice generator for the previous
  calendar month so invoices appear without an operator remembering to
  trigger them.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick targets the PREVIOUS month: billing for a period only
    makes sense once the period has fully elapsed
  - Generator idempotence makes repeated ticks within the same month
    harmless; every student is counted as skipped after the first run

CONFIGURATION:
  - CheckInterval: How often to run (default: 6 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(generator, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateInvoices endpoint (manual trigger)
  - billing/generator.go: The batch itself
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightsprout/kinder-engine/billing"
	"github.com/brightsprout/kinder-engine/kinder"
)

// BillingScheduler runs the tuition generator on a timer.
type BillingScheduler struct {
	Generator     *billing.Generator
	CheckInterval time.Duration
	Enabled       bool
	Log           *logrus.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(gen *billing.Generator, log *logrus.Logger) *BillingScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BillingScheduler{
		Generator:     gen,
		CheckInterval: 6 * time.Hour,
		Enabled:       true,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.Log.Info("billing scheduler disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	bs.Log.WithField("interval", bs.CheckInterval.String()).Info("billing scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.Log.Info("billing scheduler stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.generate()

	for {
		select {
		case <-bs.ticker.C:
			bs.generate()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) generate() {
	ctx := context.Background()
	period := kinder.PeriodOf(kinder.Today()).Previous()

	report, err := bs.Generator.GenerateTuitionInvoices(ctx, period)
	if err != nil {
		bs.Log.WithError(err).WithField("period", period.String()).Error("scheduled invoice run failed")
		return
	}

	bs.Log.WithFields(logrus.Fields{
		"period":   period.String(),
		"created":  report.Created,
		"skipped":  report.Skipped,
		"failures": len(report.Failures),
	}).Info("scheduled invoice run complete")
}
