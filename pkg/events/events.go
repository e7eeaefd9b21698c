package events

import (
	"context"
	"errors"
	"time"
)

// Event is a domain event emitted by the delivery pipeline.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Subject    string            `json:"subject,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher delivers events to interested parties.
// Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error { return f(ctx, event) }

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// Multi publishes to every publisher and joins their errors.
func Multi(publishers ...Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, event Event) error {
		var errs []error
		for _, p := range publishers {
			if err := p.Publish(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
