package messaging

import (
	"context"
	"time"
)

// Message is a serialised domain event ready for the broker.
type Message struct {
	ID         string
	Type       string
	Body       []byte
	OccurredAt time.Time
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NopPublisher discards every message. Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }

func (NopPublisher) Close() error { return nil }
