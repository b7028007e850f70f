package payroll

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/warp/payroll-engine/generic"
)

// BatchItem is one employee's outcome in an organization batch.
type BatchItem struct {
	Employee Employee
	Result   *Result
	Err      error
}

// ComputeOrganizationPayroll computes the month for every employee of orgID.
// Per-employee failures are reported on the item; only a bad month or a
// failure to list employees fails the batch.
func (e *Engine) ComputeOrganizationPayroll(ctx context.Context, orgID generic.OrganizationID, month string) ([]BatchItem, error) {
	if orgID == "" {
		return nil, generic.Invalid("organization_id", "required")
	}
	ym, err := generic.ParseYearMonth(month)
	if err != nil {
		return nil, err
	}

	employees, err := e.source.ListEmployees(ctx, orgID)
	if err != nil {
		return nil, err
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	items := make([]BatchItem, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchConcurrency)
	for i, emp := range employees {
		g.Go(func() error {
			result, err := e.compute(gctx, emp, ym)
			items[i] = BatchItem{Employee: emp, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
