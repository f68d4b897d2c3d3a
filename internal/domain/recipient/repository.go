package recipient

import "context"

// Repository defines persistence operations for recipients and their
// reminder preferences.
type Repository interface {
	Create(ctx context.Context, rec *Recipient) error
	GetByID(ctx context.Context, id int64) (*Recipient, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Recipient, error)
	Update(ctx context.Context, rec *Recipient) error
	ListActive(ctx context.Context) ([]*Recipient, error)

	// GetPreference returns the recipient's reminder preference. The engine
	// only reads preferences; writes belong to the settings surface.
	GetPreference(ctx context.Context, recipientID int64) (*Preference, error)
	SavePreference(ctx context.Context, pref *Preference) error
}
