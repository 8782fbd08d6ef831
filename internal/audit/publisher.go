package audit

import (
	"context"
	"log/slog"
	"time"

	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

const defaultStreamBuffer = 1024

// Publisher records audit events. Emit appends synchronously to the store;
// when a stream sink is configured the event is also queued for the Worker,
// which forwards it without blocking the caller.
type Publisher struct {
	store      Store
	logger     *slog.Logger
	stream     chan Event
	bufferSize int
	now        func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for dropped-event reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithStream enables forwarding to a sink through a buffered queue of the
// given size. Use NewWorker with Stream() to drain it.
func WithStream(bufferSize int) Option {
	return func(p *Publisher) {
		if bufferSize <= 0 {
			bufferSize = defaultStreamBuffer
		}
		p.bufferSize = bufferSize
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.stream = make(chan Event, p.bufferSize)
	}
	return p
}

// Emit fills defaults from ctx, stores the event, then queues it for the
// stream sink. A full queue drops the stream copy; the stored record is kept.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.stream != nil {
		select {
		case p.stream <- event:
		default:
			p.logger.WarnContext(ctx, "audit stream full, dropping event",
				"action", event.Action,
				"user_id", event.UserID.String(),
			)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Stream exposes the queue drained by the Worker. Nil when streaming is off.
func (p *Publisher) Stream() <-chan Event {
	return p.stream
}
