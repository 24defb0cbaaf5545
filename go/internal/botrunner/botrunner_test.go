package botrunner_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/harlowbrent/boosterdraft/go/internal/botbehavior"
	"github.com/harlowbrent/boosterdraft/go/internal/botrunner"
	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

func newStartedDraft(t *testing.T, s store.Store) *models.Draft {
	t.Helper()
	d := &models.Draft{
		ID: uuid.New(), ShareID: "share1", SetCode: "SOR", MaxSeats: 2,
		Status: models.StatusWaiting, Settings: models.DefaultSettings(),
	}
	joined, err := turnengine.JoinSeat(d, "human")
	require.NoError(t, err)
	joined, err = turnengine.AddBot(joined, 1, "bot-1")
	require.NoError(t, err)
	joined.HostSeatID = joined.Seats[0].SeatID

	gen := packgen.NewPoolGenerator()
	result, err := gen.Generate(joined.SetCode, len(joined.Seats), 14, 1)
	require.NoError(t, err)
	started, err := turnengine.Start(joined, clockwork.NewRealClock().Now(), 1, result)
	require.NoError(t, err)

	require.NoError(t, s.CreateDraft(context.Background(), started))
	return started
}

func TestProcessCommitsOnceHumanAndBotHaveSelected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	draft := newStartedDraft(t, s)

	hub := broadcast.NewHub()
	behaviors := botbehavior.NewRegistry(func() botbehavior.Behavior {
		return botbehavior.NewPowerTable(1, nil)
	})
	runner := botrunner.New(s, hub, behaviors, clockwork.NewFakeClock())

	// The bot seat has nothing picked yet; Process should make its pick
	// but not commit, since the human seat is still picking.
	runner.Process(ctx, draft.ID)
	afterBotPick, err := s.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	bot := afterBotPick.SeatByPrincipal("bot:1")
	require.Equal(t, models.PickSelected, bot.PickStatus)
	require.Equal(t, models.StatusLeaderDraft, afterBotPick.Status)

	// Now the human stages a pick; the next Process call should commit
	// round 1 and roll leader offerings to round 2.
	human := afterBotPick.SeatByPrincipal("human")
	cardID := human.LeaderOffering[0].ID
	staged, err := turnengine.Select(afterBotPick, human.SeatID, &cardID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateDraft(ctx, staged, afterBotPick.StateVersion))

	runner.Process(ctx, draft.ID)
	committed, err := s.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, 2, committed.PhaseState.LeaderRound)
	for _, seat := range committed.Seats {
		require.Len(t, seat.DraftedLeaders, 1)
	}
}
