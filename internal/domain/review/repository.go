package review

import (
	"context"
	"time"
)

// Repository defines persistence operations for reviewable items and the
// per-day reminder log.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id int64) (*Item, error)
	// Update persists the review fields (review_count, learned,
	// last_reviewed_at, next_review_at) atomically.
	Update(ctx context.Context, item *Item) error
	// CountDueForRecipient counts items with next_review_at <= now or never
	// reviewed.
	CountDueForRecipient(ctx context.Context, recipientID int64, now time.Time) (int, error)
	ListDueForRecipient(ctx context.Context, recipientID int64, now time.Time, limit int) ([]*Item, error)

	// WasReminderSent reports whether a review reminder was already recorded
	// for the recipient on the given calendar date.
	WasReminderSent(ctx context.Context, recipientID int64, date time.Time) (bool, error)
	// MarkReminderSent records that a review reminder went out on the given
	// date. Recording the same (recipient, date) twice is a no-op.
	MarkReminderSent(ctx context.Context, recipientID int64, date time.Time) error
}
