package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// PAYROLL RUNS - Persisted monthly results
// =============================================================================

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run records one employee's payroll for one month. (EmployeeID, Month) is unique.
type Run struct {
	ID          string
	EmployeeID  generic.EmployeeID
	Month       generic.YearMonth
	Status      RunStatus
	NetSalary   decimal.Decimal
	ResultJSON  string
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

type RunStore interface {
	// SaveRun inserts or replaces the run for (EmployeeID, Month).
	SaveRun(ctx context.Context, run Run) error
	// GetRun returns generic.ErrRunNotFound when nothing was recorded.
	GetRun(ctx context.Context, employeeID generic.EmployeeID, month generic.YearMonth) (*Run, error)
	// ListRuns returns runs newest first; an empty status lists all.
	ListRuns(ctx context.Context, status RunStatus) ([]Run, error)
}

// ProcessSummary counts what ProcessMonth did.
type ProcessSummary struct {
	Month     generic.YearMonth
	Processed int
	Skipped   int
	Failed    int
}

// ProcessMonth computes an organization's month and records a run per
// employee. Employees whose run for the month already completed are skipped.
func (e *Engine) ProcessMonth(ctx context.Context, runs RunStore, orgID generic.OrganizationID, month string) (*ProcessSummary, error) {
	items, err := e.ComputeOrganizationPayroll(ctx, orgID, month)
	if err != nil {
		return nil, err
	}
	ym, _ := generic.ParseYearMonth(month)
	summary := &ProcessSummary{Month: ym}

	for _, item := range items {
		existing, err := runs.GetRun(ctx, item.Employee.ID, ym)
		switch {
		case err == nil && existing.Status == RunCompleted:
			summary.Skipped++
			continue
		case err != nil && !errors.Is(err, generic.ErrRunNotFound):
			return summary, err
		}

		now := time.Now().UTC()
		run := Run{
			ID:         uuid.NewString(),
			EmployeeID: item.Employee.ID,
			Month:      ym,
			StartedAt:  &now,
			CreatedAt:  now,
		}
		if existing != nil {
			run.ID = existing.ID
			run.CreatedAt = existing.CreatedAt
		}

		if item.Err != nil {
			run.Status = RunFailed
			run.Error = item.Err.Error()
			summary.Failed++
		} else {
			payload, err := json.Marshal(item.Result)
			if err != nil {
				return summary, fmt.Errorf("encode result for %s: %w", item.Employee.ID, err)
			}
			run.Status = RunCompleted
			run.NetSalary = item.Result.Salary.Net
			run.ResultJSON = string(payload)
			run.CompletedAt = &now
			summary.Processed++
		}
		if err := runs.SaveRun(ctx, run); err != nil {
			return summary, err
		}
	}
	return summary, nil
}
