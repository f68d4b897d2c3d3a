package review

import "time"

// Item represents a single reviewable unit (a flashcard) owned by a recipient.
// NextReviewAt is derived exclusively from the interval table via
// RecordReviewOutcome; no other path writes it.
type Item struct {
	ID             int64
	RecipientID    int64
	DeckID         int64
	ReviewCount    int
	Learned        bool
	LastReviewedAt *time.Time
	NextReviewAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDue reports whether the item is due for review at now. Items that have
// never been reviewed are always due.
func (i *Item) IsDue(now time.Time) bool {
	if i.NextReviewAt == nil {
		return true
	}
	return !i.NextReviewAt.After(now)
}

// RecordReviewOutcome applies one review result: increments the review count,
// records the outcome and review time, and schedules the next review from the
// interval table.
func (i *Item) RecordReviewOutcome(success bool, now time.Time) {
	i.ReviewCount++
	i.Learned = success
	reviewed := now
	i.LastReviewedAt = &reviewed
	next := now.Add(NextInterval(i.ReviewCount, success))
	i.NextReviewAt = &next
	i.UpdatedAt = now
}
