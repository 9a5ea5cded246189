package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"signupd/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
	inbox chan<- Event
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// NewAsyncPublisher emits into a channel drained by a Worker instead of
// appending inline. A full inbox drops the event; auditing never blocks a
// request.
func NewAsyncPublisher(inbox chan<- Event) *Publisher {
	return &Publisher{inbox: inbox}
}

// Emit records an event, filling in ID, timestamp, and the request-scoped
// client metadata when the caller left them empty.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
		}
		return nil
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context) ([]Event, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.List(ctx)
}
