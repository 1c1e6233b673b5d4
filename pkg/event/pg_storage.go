package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage is a PostgreSQL implementation of the Storage interface built on
// a pgx connection pool. The schema lives in migrations/.
//
// Per-notification append order is enforced with a transaction-scoped
// advisory lock keyed on the notification ID, so concurrent appends for
// different notifications do not contend.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a PostgreSQL-backed event storage.
func NewPGStorage(pool *pgxpool.Pool) (*PGStorage, error) {
	if pool == nil {
		return nil, ErrStorageNil
	}
	return &PGStorage{pool: pool}, nil
}

func (s *PGStorage) Append(ctx context.Context, e Event) (Event, error) {
	if err := e.Validate(); err != nil {
		return Event{}, err
	}

	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// Serializes appends per notification without blocking other notifications.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, e.NotificationID); err != nil {
		return Event{}, fmt.Errorf("acquire notification lock: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO notification_events (id, notification_id, seq, event_type, user_address, metadata, created_at)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM notification_events WHERE notification_id = $2),
			$3, $4, $5, $6
		)
		RETURNING seq`,
		e.ID, e.NotificationID, string(e.Type), e.UserAddress, metadata, e.CreatedAt,
	)
	if err := row.Scan(&e.Seq); err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("commit event append: %w", err)
	}

	return e, nil
}

func (s *PGStorage) Timeline(ctx context.Context, notificationID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, notification_id, seq, event_type, user_address, metadata, created_at
		FROM notification_events
		WHERE notification_id = $1
		ORDER BY seq`,
		notificationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query timeline for notification %s: %w", notificationID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PGStorage) Query(ctx context.Context, c Criteria) ([]Event, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.NotificationID != "" {
		add("notification_id = $%d", c.NotificationID)
	}
	if c.UserAddress != "" {
		add("user_address = $%d", c.UserAddress)
	}
	if len(c.Types) > 0 {
		types := make([]string, len(c.Types))
		for i, t := range c.Types {
			types[i] = string(t)
		}
		add("event_type = ANY($%d)", types)
	}
	if c.Since != nil {
		add("created_at >= $%d", *c.Since)
	}
	if c.Until != nil {
		add("created_at <= $%d", *c.Until)
	}

	query := `
		SELECT id, notification_id, seq, event_type, user_address, metadata, created_at
		FROM notification_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, notification_id, seq"

	if c.Limit > 0 {
		args = append(args, c.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows pgRows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			e         Event
			eventType string
			metadata  []byte
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.NotificationID, &e.Seq, &eventType, &e.UserAddress, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Type = Type(eventType)
		e.CreatedAt = createdAt
		if len(metadata) > 0 && string(metadata) != "null" {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}
