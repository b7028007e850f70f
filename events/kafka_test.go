package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
)

type stubWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_MessageShape(t *testing.T) {
	// GIVEN: An applied increment event
	// WHEN: It is published
	// THEN: One message keyed by employee with the JSON event as value

	writer := &stubWriter{}
	publisher := NewKafkaPublisher(writer, "payroll.compensation")

	effective := generic.NewTimePoint(2024, time.April, 10)
	occurred := time.Date(2024, time.April, 9, 12, 0, 0, 0, time.UTC)
	err := publisher.Publish(context.Background(), compensation.Event{
		Type:            compensation.EventIncrementApplied,
		EmployeeID:      "emp-1",
		HistoryEntryID:  "h-1",
		IncrementAmount: decimal.NewFromInt(5000),
		EffectiveFrom:   &effective,
		TotalSalary:     decimal.NewFromInt(35000),
		OccurredAt:      occurred,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "payroll.compensation", msg.Topic)
	assert.Equal(t, "emp-1", string(msg.Key))
	assert.Equal(t, occurred, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "increment.applied", string(msg.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "increment.applied", body["type"])
	assert.Equal(t, "2024-04-10", body["effective_from"])
	assert.Equal(t, "5000", body["increment_amount"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker unavailable")
	publisher := NewKafkaPublisher(&stubWriter{err: boom}, "t")

	err := publisher.Publish(context.Background(), compensation.Event{Type: compensation.EventIncrementEdited, EmployeeID: "emp-1"})
	assert.ErrorIs(t, err, boom)
}

func TestKafkaPublisher_Close(t *testing.T) {
	writer := &stubWriter{}
	require.NoError(t, NewKafkaPublisher(writer, "t").Close())
	assert.True(t, writer.closed)
}

func TestNoop(t *testing.T) {
	var p compensation.Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), compensation.Event{}))
}
