package channel

import (
	"context"

	"study_reminder_bot/internal/domain/alarm"
)

// Transport flags select the mediums a notification goes out over.
type Transport string

const (
	TransportWebsocket Transport = "websocket"
	TransportPush      Transport = "push"
	TransportEmail     Transport = "email"
)

// Priority of a notification.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is the logical payload handed to a channel.
type Notification struct {
	Title         string
	Message       string
	Payload       map[string]string
	Priority      Priority
	ExpiresInDays int
	Transports    []Transport
}

// Channel is the consumed delivery interface. Implementations must return an
// error for recoverable failures rather than panicking, and must tolerate
// being called more than once with the same logical payload: the engine does
// not guarantee exactly-once calls in all failure paths.
type Channel interface {
	Deliver(ctx context.Context, recipientID int64, n Notification) error
}

// Registry resolves the channel for an alarm kind.
type Registry struct {
	channels map[alarm.Kind]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[alarm.Kind]Channel)}
}

func (r *Registry) Register(kind alarm.Kind, ch Channel) {
	r.channels[kind] = ch
}

// For returns the channel registered for kind.
func (r *Registry) For(kind alarm.Kind) (Channel, bool) {
	ch, ok := r.channels[kind]
	return ch, ok
}
