package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"study_reminder_bot/internal/domain/recipient"

	"github.com/jmoiron/sqlx"
)

// SQLRecipientRepository implements recipient.Repository on sqlx. Queries use
// "?" placeholders and are rebound per driver so the repository works on both
// Postgres and SQLite.
type SQLRecipientRepository struct {
	db *sqlx.DB
}

func NewSQLRecipientRepository(db *sqlx.DB) *SQLRecipientRepository {
	return &SQLRecipientRepository{db: db}
}

type recipientRow struct {
	ID         int64          `db:"id"`
	TelegramID int64          `db:"telegram_id"`
	Email      sql.NullString `db:"email"`
	FirstName  string         `db:"first_name"`
	LastName   sql.NullString `db:"last_name"`
	IsActive   bool           `db:"is_active"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r recipientRow) toDomain() *recipient.Recipient {
	return &recipient.Recipient{
		ID:         r.ID,
		TelegramID: r.TelegramID,
		Email:      r.Email,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r *SQLRecipientRepository) Create(ctx context.Context, rec *recipient.Recipient) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	id, err := insertReturningID(ctx, r.db, `INSERT INTO recipients
		(telegram_id, email, first_name, last_name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TelegramID, rec.Email, rec.FirstName, rec.LastName, rec.IsActive, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating recipient: %w", err)
	}
	rec.ID = id
	return nil
}

func (r *SQLRecipientRepository) GetByID(ctx context.Context, id int64) (*recipient.Recipient, error) {
	var row recipientRow
	query := r.db.Rebind(`SELECT id, telegram_id, email, first_name, last_name, is_active, created_at, updated_at
		FROM recipients WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("error getting recipient by id: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SQLRecipientRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*recipient.Recipient, error) {
	var row recipientRow
	query := r.db.Rebind(`SELECT id, telegram_id, email, first_name, last_name, is_active, created_at, updated_at
		FROM recipients WHERE telegram_id = ?`)
	if err := r.db.GetContext(ctx, &row, query, telegramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("error getting recipient by telegram id: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SQLRecipientRepository) Update(ctx context.Context, rec *recipient.Recipient) error {
	rec.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE recipients
		SET email = ?, first_name = ?, last_name = ?, is_active = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		rec.Email, rec.FirstName, rec.LastName, rec.IsActive, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("error updating recipient: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

func (r *SQLRecipientRepository) ListActive(ctx context.Context) ([]*recipient.Recipient, error) {
	var rows []recipientRow
	query := `SELECT id, telegram_id, email, first_name, last_name, is_active, created_at, updated_at
		FROM recipients WHERE is_active = TRUE ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("error listing active recipients: %w", err)
	}
	out := make([]*recipient.Recipient, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type preferenceRow struct {
	RecipientID      int64     `db:"recipient_id"`
	Enabled          bool      `db:"enabled"`
	TimeOfDay        string    `db:"time_of_day"`
	ToleranceMinutes int       `db:"tolerance_minutes"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r *SQLRecipientRepository) GetPreference(ctx context.Context, recipientID int64) (*recipient.Preference, error) {
	var row preferenceRow
	query := r.db.Rebind(`SELECT recipient_id, enabled, time_of_day, tolerance_minutes, updated_at
		FROM reminder_preferences WHERE recipient_id = ?`)
	if err := r.db.GetContext(ctx, &row, query, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("error getting reminder preference: %w", err)
	}
	tod, err := recipient.ParseTimeOfDay(row.TimeOfDay)
	if err != nil {
		return nil, fmt.Errorf("corrupt reminder preference for recipient %d: %w", recipientID, err)
	}
	return &recipient.Preference{
		RecipientID:      row.RecipientID,
		Enabled:          row.Enabled,
		TimeOfDay:        tod,
		ToleranceMinutes: row.ToleranceMinutes,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func (r *SQLRecipientRepository) SavePreference(ctx context.Context, pref *recipient.Preference) error {
	pref.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO reminder_preferences
		(recipient_id, enabled, time_of_day, tolerance_minutes, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (recipient_id) DO UPDATE SET
			enabled = excluded.enabled,
			time_of_day = excluded.time_of_day,
			tolerance_minutes = excluded.tolerance_minutes,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query,
		pref.RecipientID, pref.Enabled, pref.TimeOfDay.String(), pref.ToleranceMinutes, pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving reminder preference: %w", err)
	}
	return nil
}
