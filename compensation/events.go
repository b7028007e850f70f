package compensation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// EventType names the compensation change being announced.
type EventType string

const (
	EventIncrementApplied    EventType = "increment.applied"
	EventIncrementEdited     EventType = "increment.edited"
	EventStructureConfigured EventType = "structure.configured"
)

// Event is published after a compensation change commits.
type Event struct {
	Type            EventType          `json:"type"`
	EmployeeID      generic.EmployeeID `json:"employee_id"`
	HistoryEntryID  string             `json:"history_entry_id,omitempty"`
	IncrementAmount decimal.Decimal    `json:"increment_amount"`
	EffectiveFrom   *generic.TimePoint `json:"effective_from,omitempty"`
	TotalSalary     decimal.Decimal    `json:"total_salary"`
	OccurredAt      time.Time          `json:"occurred_at"`
}

// Publisher delivers events to downstream consumers (payslips, notifications).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
