package recipient

import (
	"database/sql"
	"time"
)

// Recipient is a platform user who can receive reminders.
type Recipient struct {
	ID         int64
	TelegramID int64
	Email      sql.NullString
	FirstName  string
	LastName   sql.NullString
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
