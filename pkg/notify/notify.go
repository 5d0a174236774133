// Package notify decouples outbound notification delivery from the core state
// transitions. Services emit events after a transition commits; delivery is
// asynchronous and fire-and-forget, so sink failures are logged but never
// block or fail the command path.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types emitted by the engine.
const (
	TypeRelationshipRequest  = "relationship_request"
	TypeRelationshipAccepted = "relationship_accepted"
	TypeRelationshipDeclined = "relationship_declined"
	TypeRelationshipEnded    = "relationship_ended"
	TypeTestCompleted        = "test_completed"
)

// Event is one outbound notification keyed by recipient.
type Event struct {
	RecipientID    uuid.UUID
	Message        string
	Type           string
	RelationshipID *uuid.UUID
}

// Sink delivers a single event. Implementations must be safe for concurrent use.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Dispatcher fans events out to a sink on background goroutines.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil sink drops all events.
func NewDispatcher(sink Sink, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sink:    sink,
		timeout: timeout,
		logger:  logger.Named("notify"),
	}
}

// Dispatch delivers the event asynchronously. It never blocks the caller and
// never returns an error; delivery failures are logged.
func (d *Dispatcher) Dispatch(events ...Event) {
	if d.sink == nil {
		return
	}
	for _, event := range events {
		d.wg.Add(1)
		go func(ev Event) {
			defer d.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := d.sink.Deliver(ctx, ev); err != nil {
				d.logger.Warn("notification delivery failed",
					zap.String("recipient_id", ev.RecipientID.String()),
					zap.String("type", ev.Type),
					zap.Error(err))
			}
		}(event)
	}
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
