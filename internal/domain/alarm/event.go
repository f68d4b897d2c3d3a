package alarm

import "time"

// Event is the anchored entity an alarm counts down to, e.g. a calendar
// event. StartAt is the anchor instant offsets are subtracted from.
type Event struct {
	ID        int64
	Title     string
	StartAt   time.Time
	CreatedAt time.Time
}
