package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"study_reminder_bot/internal/domain/review"

	"github.com/jmoiron/sqlx"
)

// SQLReviewRepository implements review.Repository on sqlx.
type SQLReviewRepository struct {
	db *sqlx.DB
}

func NewSQLReviewRepository(db *sqlx.DB) *SQLReviewRepository {
	return &SQLReviewRepository{db: db}
}

type reviewItemRow struct {
	ID             int64        `db:"id"`
	RecipientID    int64        `db:"recipient_id"`
	DeckID         int64        `db:"deck_id"`
	ReviewCount    int          `db:"review_count"`
	Learned        bool         `db:"learned"`
	LastReviewedAt sql.NullTime `db:"last_reviewed_at"`
	NextReviewAt   sql.NullTime `db:"next_review_at"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r reviewItemRow) toDomain() *review.Item {
	item := &review.Item{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		DeckID:      r.DeckID,
		ReviewCount: r.ReviewCount,
		Learned:     r.Learned,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.LastReviewedAt.Valid {
		t := r.LastReviewedAt.Time
		item.LastReviewedAt = &t
	}
	if r.NextReviewAt.Valid {
		t := r.NextReviewAt.Time
		item.NextReviewAt = &t
	}
	return item
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *SQLReviewRepository) Create(ctx context.Context, item *review.Item) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	id, err := insertReturningID(ctx, r.db, `INSERT INTO review_items
		(recipient_id, deck_id, review_count, learned, last_reviewed_at, next_review_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.RecipientID, item.DeckID, item.ReviewCount, item.Learned,
		nullTime(item.LastReviewedAt), nullTime(item.NextReviewAt), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating review item: %w", err)
	}
	item.ID = id
	return nil
}

func (r *SQLReviewRepository) GetByID(ctx context.Context, id int64) (*review.Item, error) {
	var row reviewItemRow
	query := r.db.Rebind(`SELECT id, recipient_id, deck_id, review_count, learned,
		last_reviewed_at, next_review_at, created_at, updated_at
		FROM review_items WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewItemNotFound
		}
		return nil, fmt.Errorf("error getting review item: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SQLReviewRepository) Update(ctx context.Context, item *review.Item) error {
	query := r.db.Rebind(`UPDATE review_items
		SET review_count = ?, learned = ?, last_reviewed_at = ?, next_review_at = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		item.ReviewCount, item.Learned, nullTime(item.LastReviewedAt), nullTime(item.NextReviewAt),
		item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("error updating review item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrReviewItemNotFound
	}
	return nil
}

func (r *SQLReviewRepository) CountDueForRecipient(ctx context.Context, recipientID int64, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM review_items
		WHERE recipient_id = ? AND (next_review_at IS NULL OR next_review_at <= ?)`)
	if err := r.db.GetContext(ctx, &count, query, recipientID, now.UTC()); err != nil {
		return 0, fmt.Errorf("error counting due review items: %w", err)
	}
	return count, nil
}

func (r *SQLReviewRepository) ListDueForRecipient(ctx context.Context, recipientID int64, now time.Time, limit int) ([]*review.Item, error) {
	var rows []reviewItemRow
	query := r.db.Rebind(`SELECT id, recipient_id, deck_id, review_count, learned,
		last_reviewed_at, next_review_at, created_at, updated_at
		FROM review_items
		WHERE recipient_id = ? AND (next_review_at IS NULL OR next_review_at <= ?)
		ORDER BY next_review_at IS NOT NULL, next_review_at
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, query, recipientID, now.UTC(), limit); err != nil {
		return nil, fmt.Errorf("error listing due review items: %w", err)
	}
	out := make([]*review.Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

const sentOnLayout = "2006-01-02"

func (r *SQLReviewRepository) WasReminderSent(ctx context.Context, recipientID int64, date time.Time) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM review_reminder_log
		WHERE recipient_id = ? AND sent_on = ?`)
	if err := r.db.GetContext(ctx, &count, query, recipientID, date.Format(sentOnLayout)); err != nil {
		return false, fmt.Errorf("error checking review reminder log: %w", err)
	}
	return count > 0, nil
}

func (r *SQLReviewRepository) MarkReminderSent(ctx context.Context, recipientID int64, date time.Time) error {
	query := r.db.Rebind(`INSERT INTO review_reminder_log (recipient_id, sent_on, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (recipient_id, sent_on) DO NOTHING`)
	_, err := r.db.ExecContext(ctx, query, recipientID, date.Format(sentOnLayout), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error recording review reminder: %w", err)
	}
	return nil
}
