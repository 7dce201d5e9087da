package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// JSONLRecorder appends events to a local JSON Lines file, one event
// per line. Appends are serialized; the file is created on first use.
type JSONLRecorder struct {
	mu   sync.Mutex
	path string
}

func NewJSONLRecorder(path string) *JSONLRecorder {
	return &JSONLRecorder{path: path}
}

func (r *JSONLRecorder) Record(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// QueueRecorder publishes events to an AMQP queue for the audit worker.
type QueueRecorder struct {
	ch    *amqp091.Channel
	queue string
}

func NewQueueRecorder(ch *amqp091.Channel, queue string) *QueueRecorder {
	return &QueueRecorder{ch: ch, queue: queue}
}

func (r *QueueRecorder) Record(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	err = r.ch.PublishWithContext(ctx,
		"",
		r.queue,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// MultiRecorder fans an event out to every recorder. All recorders are
// attempted; errors are joined.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, event *Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordOrLog records the event and downgrades failures to a log line.
// Answering must not fail because the audit trail is briefly unavailable.
func RecordOrLog(ctx context.Context, r Recorder, event *Event) {
	if r == nil || event == nil {
		return
	}
	if err := r.Record(ctx, event); err != nil {
		logger.Error("[Audit] Failed to record event", "event_id", event.ID, "err", err)
	}
}
