package events

import (
	"context"
	"log/slog"
	"time"
)

// Sink delivers a single event to a downstream transport.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Publisher buffers lifecycle events onto a channel drained by Worker. Emit
// never blocks the state machine: when the buffer is full the event is dropped
// and logged, because notification delivery must not slow domain transitions.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher creates a publisher with the given buffer capacity.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit enqueues the event, stamping the time if the caller did not.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		// Dropping is preferable to backpressuring a state transition.
		p.logger.WarnContext(ctx, "event buffer full, dropping lifecycle event",
			"event_type", event.Type,
			"domain_id", event.DomainID,
		)
	}
	return nil
}

// Inbox exposes the channel for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Worker drains the publisher inbox into a sink. Delivery failures are logged
// and swallowed; the event stream is best-effort by contract.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Deliver(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "lifecycle event delivery failed",
					"event_type", event.Type,
					"domain_id", event.DomainID,
					"error", err,
				)
			}
		}
	}
}

// LogSink is the development sink: it writes events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, event Event) error {
	s.Logger.InfoContext(ctx, "domain lifecycle event",
		"event_type", event.Type,
		"domain_id", event.DomainID,
		"domain_name", event.DomainName,
		"owner_id", event.Owner.ID,
		"owner_type", event.Owner.Type,
		"status", event.Status,
		"reason", event.Reason,
	)
	return nil
}
