package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/sqlutil"
)

// Postgres is the pgx/pgxpool-backed Store, implementing the
// state-version CAS and bot-lease primitives as conditional UPDATEs
// against the drafts/draft_seats tables (see migrations/0001_drafts).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-configured pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) CreateDraft(ctx context.Context, draft *models.Draft) error {
	phaseState, err := json.Marshal(draft.PhaseState)
	if err != nil {
		return fmt.Errorf("marshal phase_state: %w", err)
	}
	settings, err := json.Marshal(draft.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	return sqlutil.RunTx(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO drafts (
				id, share_id, host_seat_id, set_code, max_seats, status,
				phase_state, settings, seed, paused, paused_accumulated_seconds,
				pick_started_at, state_version, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1,$13)
		`, draft.ID, draft.ShareID, draft.HostSeatID, draft.SetCode, draft.MaxSeats,
			draft.Status, phaseState, settings, draft.Seed, draft.Paused,
			draft.PausedAccumulatedSeconds, draft.PickStartedAt, draft.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		return p.insertSeats(ctx, tx, draft)
	})
}

func (p *Postgres) insertSeats(ctx context.Context, tx pgx.Tx, draft *models.Draft) error {
	for _, seat := range draft.Seats {
		if err := p.upsertSeat(ctx, tx, draft.ID, seat); err != nil {
			return err
		}
	}
	return nil
}

// reconcileSeats deletes any draft_seats row not present in seats, so a
// seat LeaveSeat removed from the snapshot doesn't get resurrected by
// the next loadSeats (upsertSeat only ever inserts/updates, never
// removes).
func (p *Postgres) reconcileSeats(ctx context.Context, tx pgx.Tx, draftID uuid.UUID, seats []models.Seat) error {
	keep := make([]uuid.UUID, len(seats))
	for i, s := range seats {
		keep[i] = s.SeatID
	}
	_, err := tx.Exec(ctx, `
		DELETE FROM draft_seats WHERE draft_id = $1 AND NOT (seat_id = ANY($2))
	`, draftID, keep)
	if err != nil {
		return fmt.Errorf("delete removed seats: %w", err)
	}
	return nil
}

func (p *Postgres) upsertSeat(ctx context.Context, tx pgx.Tx, draftID uuid.UUID, seat models.Seat) error {
	leaderOffering, err := json.Marshal(seat.LeaderOffering)
	if err != nil {
		return fmt.Errorf("marshal leader_offering: %w", err)
	}
	draftedLeaders, err := json.Marshal(seat.DraftedLeaders)
	if err != nil {
		return fmt.Errorf("marshal drafted_leaders: %w", err)
	}
	currentPack, err := json.Marshal(seat.CurrentPack)
	if err != nil {
		return fmt.Errorf("marshal current_pack: %w", err)
	}
	draftedCards, err := json.Marshal(seat.DraftedCards)
	if err != nil {
		return fmt.Errorf("marshal drafted_cards: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO draft_seats (
			draft_id, seat_id, seat_number, principal, is_bot, bot_behavior_id,
			leader_offering, drafted_leaders, current_pack, drafted_cards,
			pick_status, selected_card_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (draft_id, seat_id) DO UPDATE SET
			seat_number = EXCLUDED.seat_number,
			leader_offering = EXCLUDED.leader_offering,
			drafted_leaders = EXCLUDED.drafted_leaders,
			current_pack = EXCLUDED.current_pack,
			drafted_cards = EXCLUDED.drafted_cards,
			pick_status = EXCLUDED.pick_status,
			selected_card_id = EXCLUDED.selected_card_id
	`, draftID, seat.SeatID, seat.SeatNumber, seat.Principal, seat.IsBot, seat.BotBehaviorID,
		leaderOffering, draftedLeaders, currentPack, draftedCards,
		seat.PickStatus, strPtrOrNil(seat.SelectedCardID))
	if err != nil {
		return fmt.Errorf("upsert seat %s: %w", seat.SeatID, err)
	}
	return nil
}

func (p *Postgres) LoadDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	return p.loadByPredicate(ctx, "id = $1", id)
}

func (p *Postgres) LoadDraftByShareID(ctx context.Context, shareID string) (*models.Draft, error) {
	return p.loadByPredicate(ctx, "share_id = $1", shareID)
}

func (p *Postgres) loadByPredicate(ctx context.Context, predicate string, arg any) (*models.Draft, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, share_id, host_seat_id, set_code, max_seats, status,
		       phase_state, settings, seed, paused, paused_at,
		       paused_accumulated_seconds, pick_started_at, state_version,
		       bot_processing_since, created_at, started_at, completed_at, cancelled_at
		FROM drafts WHERE `+predicate, arg)

	draft, err := scanDraft(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	seats, err := p.loadSeats(ctx, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	draft.Seats = seats
	return draft, nil
}

func (p *Postgres) loadSeats(ctx context.Context, draftID uuid.UUID) ([]models.Seat, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT seat_id, seat_number, principal, is_bot, bot_behavior_id,
		       leader_offering, drafted_leaders, current_pack, drafted_cards,
		       pick_status, selected_card_id
		FROM draft_seats WHERE draft_id = $1 ORDER BY seat_number
	`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		var s models.Seat
		var leaderOffering, draftedLeaders, currentPack, draftedCards []byte
		var selectedCardID *string
		if err := rows.Scan(&s.SeatID, &s.SeatNumber, &s.Principal, &s.IsBot, &s.BotBehaviorID,
			&leaderOffering, &draftedLeaders, &currentPack, &draftedCards,
			&s.PickStatus, &selectedCardID); err != nil {
			return nil, err
		}
		if err := unmarshalCards(leaderOffering, &s.LeaderOffering); err != nil {
			return nil, err
		}
		if err := unmarshalCards(draftedLeaders, &s.DraftedLeaders); err != nil {
			return nil, err
		}
		if err := unmarshalCards(currentPack, &s.CurrentPack); err != nil {
			return nil, err
		}
		if err := unmarshalCards(draftedCards, &s.DraftedCards); err != nil {
			return nil, err
		}
		if selectedCardID != nil {
			s.SelectedCardID = *selectedCardID
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// UpdateDraft performs the compare-and-set update described in
// SPEC_FULL §4.1E: the draft row and all its seats commit in one
// transaction, gated on state_version = expectedVersion.
func (p *Postgres) UpdateDraft(ctx context.Context, next *models.Draft, expectedVersion int64) error {
	phaseState, err := json.Marshal(next.PhaseState)
	if err != nil {
		return fmt.Errorf("marshal phase_state: %w", err)
	}
	settings, err := json.Marshal(next.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	return sqlutil.RunTx(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE drafts SET
				status = $1, phase_state = $2, settings = $3, seed = $4,
				paused = $5, paused_at = $6, paused_accumulated_seconds = $7,
				pick_started_at = $8, started_at = $9, completed_at = $10,
				cancelled_at = $11, state_version = state_version + 1
			WHERE id = $12 AND state_version = $13
		`, next.Status, phaseState, settings, next.Seed,
			next.Paused, next.PausedAt, next.PausedAccumulatedSeconds,
			next.PickStartedAt, next.StartedAt, next.CompletedAt,
			next.CancelledAt, next.ID, expectedVersion)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		if err := p.reconcileSeats(ctx, tx, next.ID, next.Seats); err != nil {
			return err
		}
		return p.insertSeats(ctx, tx, next)
	})
}

func (p *Postgres) AcquireBotLease(ctx context.Context, id uuid.UUID, now time.Time, maxAge time.Duration) (bool, error) {
	staleBefore := now.Add(-maxAge)
	tag, err := p.pool.Exec(ctx, `
		UPDATE drafts SET bot_processing_since = $1
		WHERE id = $2 AND (bot_processing_since IS NULL OR bot_processing_since < $3)
	`, now, id, staleBefore)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) ReleaseBotLease(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `UPDATE drafts SET bot_processing_since = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) ListActive(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id FROM drafts WHERE status IN ($1, $2)
	`, models.StatusLeaderDraft, models.StatusPackDraft)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDraft(row pgx.Row) (*models.Draft, error) {
	var d models.Draft
	var phaseState, settings []byte
	if err := row.Scan(&d.ID, &d.ShareID, &d.HostSeatID, &d.SetCode, &d.MaxSeats, &d.Status,
		&phaseState, &settings, &d.Seed, &d.Paused, &d.PausedAt,
		&d.PausedAccumulatedSeconds, &d.PickStartedAt, &d.StateVersion,
		&d.BotProcessingSince, &d.CreatedAt, &d.StartedAt, &d.CompletedAt, &d.CancelledAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phaseState, &d.PhaseState); err != nil {
		return nil, fmt.Errorf("unmarshal phase_state: %w", err)
	}
	if err := json.Unmarshal(settings, &d.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &d, nil
}

func unmarshalCards(raw []byte, dest *[]models.Card) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
