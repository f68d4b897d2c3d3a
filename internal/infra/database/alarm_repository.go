package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"study_reminder_bot/internal/domain/alarm"

	"github.com/jmoiron/sqlx"
)

// SQLAlarmRepository implements alarm.Repository on sqlx.
type SQLAlarmRepository struct {
	db *sqlx.DB
}

func NewSQLAlarmRepository(db *sqlx.DB) *SQLAlarmRepository {
	return &SQLAlarmRepository{db: db}
}

type definitionRow struct {
	ID             int64     `db:"id"`
	OffsetDuration int       `db:"offset_duration"`
	OffsetUnit     string    `db:"offset_unit"`
	Kind           string    `db:"kind"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r definitionRow) toDomain() *alarm.Definition {
	return &alarm.Definition{
		ID:             r.ID,
		OffsetDuration: r.OffsetDuration,
		OffsetUnit:     alarm.OffsetUnit(r.OffsetUnit),
		Kind:           alarm.Kind(r.Kind),
		CreatedAt:      r.CreatedAt,
	}
}

func (r *SQLAlarmRepository) CreateDefinition(ctx context.Context, def *alarm.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.CreatedAt = time.Now().UTC()
	id, err := insertReturningID(ctx, r.db, `INSERT INTO alarm_definitions (offset_duration, offset_unit, kind, created_at)
		VALUES (?, ?, ?, ?)`,
		def.OffsetDuration, string(def.OffsetUnit), string(def.Kind), def.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating alarm definition: %w", err)
	}
	def.ID = id
	return nil
}

func (r *SQLAlarmRepository) GetDefinition(ctx context.Context, id int64) (*alarm.Definition, error) {
	var row definitionRow
	query := r.db.Rebind(`SELECT id, offset_duration, offset_unit, kind, created_at
		FROM alarm_definitions WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("error getting alarm definition: %w", err)
	}
	return row.toDomain(), nil
}

type eventRow struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	StartAt   time.Time `db:"starts_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *SQLAlarmRepository) CreateEvent(ctx context.Context, event *alarm.Event) error {
	event.CreatedAt = time.Now().UTC()
	id, err := insertReturningID(ctx, r.db, `INSERT INTO events (title, starts_at, created_at) VALUES (?, ?, ?)`,
		event.Title, event.StartAt.UTC(), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating event: %w", err)
	}
	event.ID = id
	return nil
}

func (r *SQLAlarmRepository) GetEvent(ctx context.Context, id int64) (*alarm.Event, error) {
	var row eventRow
	query := r.db.Rebind(`SELECT id, title, starts_at, created_at FROM events WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("error getting event: %w", err)
	}
	return &alarm.Event{ID: row.ID, Title: row.Title, StartAt: row.StartAt, CreatedAt: row.CreatedAt}, nil
}

type instanceRow struct {
	ID           int64        `db:"id"`
	DefinitionID int64        `db:"definition_id"`
	EventID      int64        `db:"event_id"`
	RecipientID  int64        `db:"recipient_id"`
	Kind         string       `db:"kind"`
	TriggerAt    time.Time    `db:"trigger_at"`
	Status       string       `db:"status"`
	RetryCount   int          `db:"retry_count"`
	LastError    string       `db:"last_error"`
	TriggeredAt  sql.NullTime `db:"triggered_at"`
	SentAt       sql.NullTime `db:"sent_at"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (r instanceRow) toDomain() *alarm.Instance {
	inst := &alarm.Instance{
		ID:           r.ID,
		DefinitionID: r.DefinitionID,
		EventID:      r.EventID,
		RecipientID:  r.RecipientID,
		Kind:         alarm.Kind(r.Kind),
		TriggerAt:    r.TriggerAt,
		Status:       alarm.Status(r.Status),
		RetryCount:   r.RetryCount,
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.TriggeredAt.Valid {
		t := r.TriggeredAt.Time
		inst.TriggeredAt = &t
	}
	if r.SentAt.Valid {
		t := r.SentAt.Time
		inst.SentAt = &t
	}
	return inst
}

const instanceColumns = `id, definition_id, event_id, recipient_id, kind, trigger_at, status,
	retry_count, last_error, triggered_at, sent_at, created_at, updated_at`

// CreateInstance materializes the instance idempotently: inserting an
// existing (definition, event, recipient) triple is a no-op. The persisted ID
// is read back by the triple either way.
func (r *SQLAlarmRepository) CreateInstance(ctx context.Context, inst *alarm.Instance) (bool, error) {
	now := time.Now().UTC()
	query := r.db.Rebind(`INSERT INTO alarm_instances
		(definition_id, event_id, recipient_id, kind, trigger_at, status, retry_count, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (definition_id, event_id, recipient_id) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query,
		inst.DefinitionID, inst.EventID, inst.RecipientID, string(inst.Kind),
		inst.TriggerAt.UTC(), string(inst.Status), inst.RetryCount, inst.LastError, now, now)
	if err != nil {
		return false, fmt.Errorf("error creating alarm instance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading insert result: %w", err)
	}

	var row instanceRow
	sel := r.db.Rebind(`SELECT ` + instanceColumns + ` FROM alarm_instances
		WHERE definition_id = ? AND event_id = ? AND recipient_id = ?`)
	if err := r.db.GetContext(ctx, &row, sel, inst.DefinitionID, inst.EventID, inst.RecipientID); err != nil {
		return false, fmt.Errorf("error reading back alarm instance: %w", err)
	}
	*inst = *row.toDomain()
	return rows > 0, nil
}

func (r *SQLAlarmRepository) GetInstanceByID(ctx context.Context, id int64) (*alarm.Instance, error) {
	var row instanceRow
	query := r.db.Rebind(`SELECT ` + instanceColumns + ` FROM alarm_instances WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("error getting alarm instance: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SQLAlarmRepository) UpdateInstance(ctx context.Context, inst *alarm.Instance) error {
	inst.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE alarm_instances
		SET status = ?, retry_count = ?, last_error = ?, triggered_at = ?, sent_at = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		string(inst.Status), inst.RetryCount, inst.LastError,
		nullTime(inst.TriggeredAt), nullTime(inst.SentAt), inst.UpdatedAt, inst.ID)
	if err != nil {
		return fmt.Errorf("error updating alarm instance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func (r *SQLAlarmRepository) ListDueForRecipient(ctx context.Context, recipientID int64, now time.Time) ([]*alarm.Instance, error) {
	var rows []instanceRow
	query := r.db.Rebind(`SELECT ` + instanceColumns + ` FROM alarm_instances
		WHERE recipient_id = ? AND status = ? AND trigger_at <= ?
		ORDER BY trigger_at`)
	if err := r.db.SelectContext(ctx, &rows, query, recipientID, string(alarm.StatusPending), now.UTC()); err != nil {
		return nil, fmt.Errorf("error listing due alarm instances: %w", err)
	}
	out := make([]*alarm.Instance, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *SQLAlarmRepository) ListRetryableForRecipient(ctx context.Context, recipientID int64, now time.Time) ([]*alarm.Instance, error) {
	var rows []instanceRow
	query := r.db.Rebind(`SELECT ` + instanceColumns + ` FROM alarm_instances
		WHERE recipient_id = ? AND status = ? AND retry_count < ? AND trigger_at <= ?
		ORDER BY trigger_at`)
	if err := r.db.SelectContext(ctx, &rows, query,
		recipientID, string(alarm.StatusFailed), alarm.MaxRetries, now.UTC()); err != nil {
		return nil, fmt.Errorf("error listing retryable alarm instances: %w", err)
	}
	out := make([]*alarm.Instance, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
