package alarm

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a single alarm instance.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusTriggered Status = "TRIGGERED"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusDismissed Status = "DISMISSED"
)

// MaxRetries bounds how many times a failed instance may return to pending.
const MaxRetries = 3

// ErrIllegalTransition is returned when a transition is requested from a
// state that does not allow it.
var ErrIllegalTransition = errors.New("illegal alarm state transition")

// SendFunc performs the actual delivery attempt for one instance.
type SendFunc func() error

// Instance is one materialized reminder for one recipient of one anchored
// event. Uniqueness on (DefinitionID, EventID, RecipientID) is enforced at
// the persistence layer.
type Instance struct {
	ID           int64
	DefinitionID int64
	EventID      int64
	RecipientID  int64
	Kind         Kind
	TriggerAt    time.Time
	Status       Status
	RetryCount   int
	LastError    string
	TriggeredAt  *time.Time
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsDue reports whether the instance should fire at now.
func (i *Instance) IsDue(now time.Time) bool {
	return i.Status == StatusPending && !now.Before(i.TriggerAt)
}

// CanRetry reports whether a failed instance may still return to pending.
// Once RetryCount reaches MaxRetries the instance is terminal.
func (i *Instance) CanRetry() bool {
	return i.Status == StatusFailed && i.RetryCount < MaxRetries
}

// Trigger drives pending -> triggered and synchronously attempts delivery
// through send. A delivery error is absorbed into the failed state together
// with an incremented retry count; it never propagates to the caller driving
// a batch. The only returned error is an illegal transition.
func (i *Instance) Trigger(now time.Time, send SendFunc) error {
	if i.Status != StatusPending {
		return fmt.Errorf("%w: trigger from %s", ErrIllegalTransition, i.Status)
	}
	i.Status = StatusTriggered
	triggered := now
	i.TriggeredAt = &triggered
	i.UpdatedAt = now

	if err := safeSend(send); err != nil {
		i.Status = StatusFailed
		i.LastError = err.Error()
		i.RetryCount++
		return nil
	}

	i.Status = StatusSent
	sent := now
	i.SentAt = &sent
	i.LastError = ""
	return nil
}

// Dismiss moves a pending instance to dismissed. Dismissing an already
// dismissed instance is a no-op, not an error.
func (i *Instance) Dismiss(now time.Time) error {
	switch i.Status {
	case StatusDismissed:
		return nil
	case StatusPending:
		i.Status = StatusDismissed
		i.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("%w: dismiss from %s", ErrIllegalTransition, i.Status)
	}
}

// Retry returns a failed instance to pending and immediately re-triggers it.
// It reports false without any mutation when the instance is not failed or
// the retry budget is exhausted.
func (i *Instance) Retry(now time.Time, send SendFunc) bool {
	if !i.CanRetry() {
		return false
	}
	i.Status = StatusPending
	i.LastError = ""
	i.UpdatedAt = now
	_ = i.Trigger(now, send) // cannot be illegal from pending
	return true
}

// safeSend converts a panicking channel into an ordinary delivery error so a
// misbehaving channel cannot take down a batch.
func safeSend(send SendFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panic: %v", r)
		}
	}()
	return send()
}
