package alarm

import (
	"context"
	"time"
)

// Repository defines persistence operations for alarm definitions, anchored
// events and alarm instances.
type Repository interface {
	CreateDefinition(ctx context.Context, def *Definition) error
	GetDefinition(ctx context.Context, id int64) (*Definition, error)

	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id int64) (*Event, error)

	// CreateInstance persists the instance unless the (definition, event,
	// recipient) triple already exists, in which case it is a no-op and
	// created reports false. On return the instance carries the persisted ID
	// either way.
	CreateInstance(ctx context.Context, inst *Instance) (created bool, err error)
	GetInstanceByID(ctx context.Context, id int64) (*Instance, error)
	// UpdateInstance persists status, retry_count, last_error, triggered_at
	// and sent_at atomically.
	UpdateInstance(ctx context.Context, inst *Instance) error

	// ListDueForRecipient returns pending instances with trigger_at <= now.
	ListDueForRecipient(ctx context.Context, recipientID int64, now time.Time) ([]*Instance, error)
	// ListRetryableForRecipient returns failed instances below the retry
	// bound with trigger_at <= now.
	ListRetryableForRecipient(ctx context.Context, recipientID int64, now time.Time) ([]*Instance, error)
}
