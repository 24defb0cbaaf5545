package enforcer_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/enforcer"
	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

func newStartedDraft(t *testing.T, s store.Store, now time.Time) *models.Draft {
	t.Helper()
	d := &models.Draft{
		ID: uuid.New(), ShareID: "share1", SetCode: "SOR", MaxSeats: 2,
		Status: models.StatusWaiting, Settings: models.DefaultSettings(),
		StateVersion: 1,
	}
	joined, err := turnengine.JoinSeat(d, "p1")
	require.NoError(t, err)
	joined, err = turnengine.JoinSeat(joined, "p2")
	require.NoError(t, err)
	joined.HostSeatID = joined.Seats[0].SeatID

	gen := packgen.NewPoolGenerator()
	result, err := gen.Generate(joined.SetCode, len(joined.Seats), 14, 1)
	require.NoError(t, err)
	started, err := turnengine.Start(joined, now, 1, result)
	require.NoError(t, err)

	require.NoError(t, s.CreateDraft(context.Background(), started))
	return started
}

func TestTickForcesRandomPickAfterRoundTimerElapses(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := store.NewMemory()
	draft := newStartedDraft(t, s, clock.Now())

	hub := broadcast.NewHub()
	var kicked []uuid.UUID
	afterCommit := func(_ context.Context, id uuid.UUID) { kicked = append(kicked, id) }

	e := enforcer.New(s, hub, afterCommit, clock, 4)

	clock.Advance(time.Duration(draft.Settings.RoundTimerSeconds+1) * time.Second)
	require.NoError(t, e.Tick(ctx))

	after, err := s.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, 2, after.PhaseState.LeaderRound)
	for _, seat := range after.Seats {
		require.Len(t, seat.DraftedLeaders, 1)
	}
	require.Contains(t, kicked, draft.ID)
}

func TestTickIsANoOpBeforeTheRoundTimerElapses(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := store.NewMemory()
	draft := newStartedDraft(t, s, clock.Now())

	hub := broadcast.NewHub()
	e := enforcer.New(s, hub, nil, clock, 4)

	require.NoError(t, e.Tick(ctx))

	after, err := s.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, 1, after.PhaseState.LeaderRound)
	require.Equal(t, draft.StateVersion, after.StateVersion)
}

func TestTickSkipsPausedDrafts(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := store.NewMemory()
	draft := newStartedDraft(t, s, clock.Now())

	paused, err := turnengine.Pause(draft, clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpdateDraft(ctx, paused, draft.StateVersion))

	hub := broadcast.NewHub()
	e := enforcer.New(s, hub, nil, clock, 4)

	clock.Advance(time.Duration(draft.Settings.RoundTimerSeconds+1) * time.Second)
	require.NoError(t, e.Tick(ctx))

	after, err := s.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, 1, after.PhaseState.LeaderRound)
}
