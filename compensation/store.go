package compensation

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Reader loads compensation state.
type Reader interface {
	// CurrentRecord returns nil, nil when the employee has no structure.
	CurrentRecord(ctx context.Context, employeeID generic.EmployeeID) (*Record, error)

	// History returns every snapshot ordered by RecordedAt ascending.
	History(ctx context.Context, employeeID generic.EmployeeID) ([]HistoryEntry, error)
}

// Writer is the view of the store inside a transaction.
type Writer interface {
	Reader

	InsertHistory(ctx context.Context, entry HistoryEntry) error
	UpsertRecord(ctx context.Context, record Record) error

	// UpdateHistoryIncrement patches the increment amount of one entry.
	// Returns ErrHistoryEntryNotFound unless the entry belongs to employeeID.
	UpdateHistoryIncrement(ctx context.Context, employeeID generic.EmployeeID, entryID string, amount decimal.Decimal) error
}

// Store provides transactional access to compensation state.
type Store interface {
	Reader

	// WithEmployeeTx runs fn atomically. Calls for the same employee are
	// serialized; if fn returns an error nothing it wrote becomes visible.
	// A lost race surfaces as generic.ErrConcurrentModification.
	WithEmployeeTx(ctx context.Context, employeeID generic.EmployeeID, fn func(Writer) error) error
}
