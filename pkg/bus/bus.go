// Package bus provides the publish/subscribe channel that carries operator
// notifications and execution events out of the core. The default
// implementation uses NATS, with an in-memory option for testing and
// single-process deployments.
package bus

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned when operating on a closed bus or subscription.
	ErrClosed = errors.New("bus or subscription closed")
)

// Message is one published message.
type Message struct {
	Subject string
	Data    []byte
}

// MessageHandler processes a received message.
type MessageHandler func(msg *Message)

// MessageBus is the core publish/subscribe interface.
// Implementations must be safe for concurrent use.
type MessageBus interface {
	// Publish sends a message to all subscribers of the given subject.
	// Returns immediately; does not wait for delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// Supports trailing wildcards: "warden.notify.*" matches
	// "warden.notify.error".
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}
