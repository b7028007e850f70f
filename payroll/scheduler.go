/*
scheduler.go - Automated monthly payroll processing

PURPOSE:
  Periodically processes the previous month for every organization and
  records a payroll run per employee.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Processes the month before the current one
  - Skips employees whose run for that month already completed
  - Disabled unless configured; nothing runs in-process by default

USAGE:
  scheduler := payroll.NewScheduler(engine, store, store, logger)
  scheduler.Enabled = true
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - run.go: ProcessMonth
  - api/handlers.go: ProcessPayrollRuns endpoint (manual trigger)
*/
package payroll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// Scheduler handles automated monthly payroll processing.
type Scheduler struct {
	Engine        *Engine
	Runs          RunStore
	Directory     Directory
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	// Now is the clock used to pick the month to process.
	Now func() time.Time

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(engine *Engine, runs RunStore, directory Directory, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Engine:        engine,
		Runs:          runs,
		Directory:     directory,
		CheckInterval: time.Hour,
		Logger:        logger,
		Now:           time.Now,
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("payroll scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.ticker = time.NewTicker(s.CheckInterval)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, s.ticker)

	s.Logger.Info("payroll scheduler started", "interval", s.CheckInterval.String())
}

// Stop cancels a pass in progress and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.cancel = nil
	s.Logger.Info("payroll scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow processes the previous month for every organization.
func (s *Scheduler) RunNow(ctx context.Context) []ProcessSummary {
	month := generic.FromTime(s.Now()).YearMonth().Previous()

	orgs, err := s.Directory.ListOrganizations(ctx)
	if err != nil {
		s.Logger.Error("payroll scheduler: listing organizations", "error", err)
		return nil
	}

	var summaries []ProcessSummary
	for _, org := range orgs {
		if ctx.Err() != nil {
			s.Logger.Info("payroll scheduler: pass cancelled", "month", month.String())
			break
		}
		summary, err := s.Engine.ProcessMonth(ctx, s.Runs, org, month.String())
		if err != nil {
			s.Logger.Error("payroll scheduler: processing organization",
				"organization_id", org, "month", month.String(), "error", err)
			continue
		}
		summaries = append(summaries, *summary)
		if summary.Processed > 0 || summary.Failed > 0 {
			s.Logger.Info("payroll scheduler: month processed",
				"organization_id", org,
				"month", month.String(),
				"processed", summary.Processed,
				"skipped", summary.Skipped,
				"failed", summary.Failed)
		}
	}
	return summaries
}
