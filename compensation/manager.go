package compensation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MANAGER - Increment transactions
// =============================================================================

// Manager applies salary changes. Every write goes through
// Store.WithEmployeeTx, so a history entry and the record it snapshots are
// committed together or not at all.
type Manager struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Manager)

func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now for RecordedAt / UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		publisher: noopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// APPLY INCREMENT
// =============================================================================

type IncrementRequest struct {
	EmployeeID      generic.EmployeeID
	Components      Components
	IncrementAmount decimal.Decimal
	IncrementDate   generic.TimePoint
}

func (r IncrementRequest) Validate() error {
	if r.EmployeeID == "" {
		return generic.Invalid("employee_id", "required")
	}
	if r.IncrementDate.IsZero() {
		return generic.Invalid("increment_date", "required")
	}
	return r.Components.Validate()
}

// ApplyIncrement replaces the current structure. The replaced structure is
// kept as a history entry spanning [its EffectiveFrom, IncrementDate).
func (m *Manager) ApplyIncrement(ctx context.Context, req IncrementRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		updated Record
		entryID string
	)
	err := m.store.WithEmployeeTx(ctx, req.EmployeeID, func(w Writer) error {
		current, err := w.CurrentRecord(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		now := m.now().UTC()

		if current != nil {
			if current.EffectiveFrom != nil && req.IncrementDate.Before(*current.EffectiveFrom) {
				return generic.Invalid("increment_date", "%s is before the current structure's effective date %s",
					req.IncrementDate, current.EffectiveFrom)
			}
			entry := HistoryEntry{
				ID:               m.newID(),
				EmployeeID:       req.EmployeeID,
				Components:       current.Components,
				Total:            current.Total(),
				IncrementAmount:  req.IncrementAmount,
				AppliedIncrement: current.IncrementAmount,
				EffectiveFrom:    current.EffectiveFrom,
				SupersededOn:     req.IncrementDate,
				RecordedAt:       now,
			}
			if err := w.InsertHistory(ctx, entry); err != nil {
				return fmt.Errorf("snapshot current structure: %w", err)
			}
			entryID = entry.ID
		}

		date := req.IncrementDate
		updated = Record{
			EmployeeID:      req.EmployeeID,
			Components:      req.Components,
			IncrementAmount: req.IncrementAmount,
			EffectiveFrom:   &date,
			UpdatedAt:       now,
		}
		if err := w.UpsertRecord(ctx, updated); err != nil {
			return fmt.Errorf("write new structure: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("increment applied",
		"employee_id", req.EmployeeID,
		"increment_amount", req.IncrementAmount.String(),
		"effective_from", req.IncrementDate.String(),
		"history_entry_id", entryID)
	m.publish(ctx, Event{
		Type:            EventIncrementApplied,
		EmployeeID:      req.EmployeeID,
		HistoryEntryID:  entryID,
		IncrementAmount: req.IncrementAmount,
		EffectiveFrom:   updated.EffectiveFrom,
		TotalSalary:     updated.Total(),
		OccurredAt:      updated.UpdatedAt,
	})
	return &updated, nil
}

// =============================================================================
// EDIT INCREMENT
// =============================================================================

type EditIncrementRequest struct {
	EmployeeID      generic.EmployeeID
	HistoryEntryID  string
	Components      Components
	IncrementAmount decimal.Decimal
}

func (r EditIncrementRequest) Validate() error {
	if r.EmployeeID == "" {
		return generic.Invalid("employee_id", "required")
	}
	if r.HistoryEntryID == "" {
		return generic.Invalid("history_entry_id", "required")
	}
	return r.Components.Validate()
}

// EditIncrement corrects the most recent increment. The current structure's
// components and increment amount are overwritten in place and the latest
// history entry gets the corrected amount. Effective dates do not move.
func (m *Manager) EditIncrement(ctx context.Context, req EditIncrementRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated Record
	err := m.store.WithEmployeeTx(ctx, req.EmployeeID, func(w Writer) error {
		current, err := w.CurrentRecord(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("no structure to correct: %w", generic.ErrHistoryEntryNotFound)
		}

		history, err := w.History(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		latest := latestEntry(history)
		if latest == nil || latest.ID != req.HistoryEntryID {
			if !containsEntry(history, req.HistoryEntryID) {
				return generic.ErrHistoryEntryNotFound
			}
			return generic.Invalid("history_entry_id", "only the most recent increment can be corrected")
		}

		updated = *current
		updated.Components = req.Components
		updated.IncrementAmount = req.IncrementAmount
		updated.UpdatedAt = m.now().UTC()
		if err := w.UpsertRecord(ctx, updated); err != nil {
			return fmt.Errorf("correct structure: %w", err)
		}
		if err := w.UpdateHistoryIncrement(ctx, req.EmployeeID, req.HistoryEntryID, req.IncrementAmount); err != nil {
			return fmt.Errorf("correct history entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("increment corrected",
		"employee_id", req.EmployeeID,
		"history_entry_id", req.HistoryEntryID,
		"increment_amount", req.IncrementAmount.String())
	m.publish(ctx, Event{
		Type:            EventIncrementEdited,
		EmployeeID:      req.EmployeeID,
		HistoryEntryID:  req.HistoryEntryID,
		IncrementAmount: req.IncrementAmount,
		EffectiveFrom:   updated.EffectiveFrom,
		TotalSalary:     updated.Total(),
		OccurredAt:      updated.UpdatedAt,
	})
	return &updated, nil
}

// latestEntry is the entry superseded last. History is append-only, so that is
// the most recently recorded one.
func latestEntry(history []HistoryEntry) *HistoryEntry {
	var latest *HistoryEntry
	for i := range history {
		if latest == nil || !history[i].RecordedAt.Before(latest.RecordedAt) {
			latest = &history[i]
		}
	}
	return latest
}

func containsEntry(history []HistoryEntry, id string) bool {
	for _, h := range history {
		if h.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// STRUCTURE MAINTENANCE
// =============================================================================

// SetStructure creates or overwrites the current components without writing
// history. It is how the first, pre-increment structure is configured.
func (m *Manager) SetStructure(ctx context.Context, employeeID generic.EmployeeID, components Components) (*Record, error) {
	if employeeID == "" {
		return nil, generic.Invalid("employee_id", "required")
	}
	if err := components.Validate(); err != nil {
		return nil, err
	}

	var updated Record
	err := m.store.WithEmployeeTx(ctx, employeeID, func(w Writer) error {
		current, err := w.CurrentRecord(ctx, employeeID)
		if err != nil {
			return err
		}
		if current != nil {
			updated = *current
		} else {
			updated = Record{EmployeeID: employeeID}
		}
		updated.Components = components
		updated.UpdatedAt = m.now().UTC()
		return w.UpsertRecord(ctx, updated)
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, Event{
		Type:            EventStructureConfigured,
		EmployeeID:      employeeID,
		IncrementAmount: updated.IncrementAmount,
		EffectiveFrom:   updated.EffectiveFrom,
		TotalSalary:     updated.Total(),
		OccurredAt:      updated.UpdatedAt,
	})
	return &updated, nil
}

// =============================================================================
// OVERVIEW - Current structure plus history with the span each applied
// =============================================================================

type Overview struct {
	EmployeeID generic.EmployeeID
	Current    *Record
	History    []HistoryEntry
	Timeline   Timeline
}

func (m *Manager) Overview(ctx context.Context, employeeID generic.EmployeeID) (*Overview, error) {
	if employeeID == "" {
		return nil, generic.Invalid("employee_id", "required")
	}
	current, err := m.store.CurrentRecord(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	history, err := m.store.History(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return &Overview{
		EmployeeID: employeeID,
		Current:    current,
		History:    history,
		Timeline:   BuildTimeline(current, history),
	}, nil
}

// Publish failures never undo a committed change; they are logged for replay.
func (m *Manager) publish(ctx context.Context, event Event) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("compensation event not published",
			"type", string(event.Type),
			"employee_id", event.EmployeeID,
			"error", err)
	}
}
