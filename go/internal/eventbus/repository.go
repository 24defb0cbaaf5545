package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harlowbrent/boosterdraft/go/internal/sqlutil"
)

const notifyChannel = "draft_outbox_events"

// Repository inserts and fetches draft_outbox rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEvent writes one outbox row and issues a NOTIFY on
// draft_outbox_events carrying the new row's id, inside its own
// transaction. Runs after the triggering Store mutation has already
// committed (mirroring the teacher's own post-commit event-emission
// pattern), so it isn't atomic with that mutation — a crash between
// the two leaves the mutation durable but the event unrecorded, which
// Relay's FetchUnsent fallback poll cannot repair since there was
// never a row to find. Acceptable for the outbox's current audit/
// analytics consumers; a draft-critical consumer would need the two
// writes to share a transaction instead.
func (r *Repository) InsertEvent(ctx context.Context, draftID uuid.UUID, eventType EventType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal payload: %w", err)
	}

	id := uuid.New()
	return sqlutil.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO draft_outbox (id, draft_id, event_type, payload)
			VALUES ($1, $2, $3, $4)
		`, id, draftID, string(eventType), body)
		if err != nil {
			return fmt.Errorf("eventbus: insert outbox row: %w", err)
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, id.String()); err != nil {
			return fmt.Errorf("eventbus: notify: %w", err)
		}
		return nil
	})
}

// FetchByID loads a single outbox row, used by Relay after a NOTIFY.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (OutboxEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, draft_id, event_type, payload, created_at, sent_at
		FROM draft_outbox WHERE id = $1
	`, id)
	return scanEvent(row)
}

// FetchUnsent loads up to limit rows with sent_at IS NULL, oldest first,
// for the Relay's fallback poll.
func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, draft_id, event_type, payload, created_at, sent_at
		FROM draft_outbox WHERE sent_at IS NULL
		ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("eventbus: fetch unsent: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkSent stamps sent_at for id.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE draft_outbox SET sent_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("eventbus: mark sent: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (OutboxEvent, error) {
	var e OutboxEvent
	if err := row.Scan(&e.ID, &e.DraftID, &e.EventType, &e.Payload, &e.CreatedAt, &e.SentAt); err != nil {
		return OutboxEvent{}, fmt.Errorf("eventbus: scan row: %w", err)
	}
	return e, nil
}
