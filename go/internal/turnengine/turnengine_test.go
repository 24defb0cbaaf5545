package turnengine_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

func newWaitingDraft(t *testing.T, seatCount int) *models.Draft {
	t.Helper()
	d := &models.Draft{
		ID:       uuid.New(),
		ShareID:  "share1",
		SetCode:  "SOR",
		MaxSeats: seatCount,
		Status:   models.StatusWaiting,
		Settings: models.DefaultSettings(),
	}
	for i := 0; i < seatCount; i++ {
		joined, err := turnengine.JoinSeat(d, "p"+string(rune('1'+i)))
		require.NoError(t, err)
		d = joined
	}
	d.HostSeatID = d.Seats[0].SeatID
	return d
}

func startDraft(t *testing.T, d *models.Draft, packSize int) *models.Draft {
	t.Helper()
	gen := packgen.NewPoolGenerator()
	result, err := gen.Generate(d.SetCode, len(d.Seats), packSize, 42)
	require.NoError(t, err)
	started, err := turnengine.Start(d, time.Now(), 42, result)
	require.NoError(t, err)
	return started
}

// selectAll stages every picking seat's first hand card, in a single
// CommitRound-ready snapshot.
func selectAll(t *testing.T, d *models.Draft) *models.Draft {
	t.Helper()
	for _, seat := range d.Seats {
		if seat.PickStatus != models.PickPicking {
			continue
		}
		hand := seat.Hand(d.Status)
		require.NotEmpty(t, hand)
		cardID := hand[0].ID
		next, err := turnengine.Select(d, seat.SeatID, &cardID)
		require.NoError(t, err)
		d = next
	}
	return d
}

func TestJoinSeatAssignsLowestFreeNumber(t *testing.T) {
	d := newWaitingDraft(t, 2)
	require.Len(t, d.Seats, 2)
	require.Equal(t, 1, d.Seats[0].SeatNumber)
	require.Equal(t, 2, d.Seats[1].SeatNumber)

	d.MaxSeats = 3
	d3, err := turnengine.JoinSeat(d, "p3")
	require.NoError(t, err)
	require.Len(t, d3.Seats, 3)
	require.Equal(t, 3, d3.Seats[2].SeatNumber)
}

func TestJoinSeatRejectsDuplicatePrincipal(t *testing.T) {
	d := newWaitingDraft(t, 2)
	_, err := turnengine.JoinSeat(d, "p1")
	require.Error(t, err)
	require.Equal(t, turnengine.CodeAlreadyJoined, err.(*turnengine.Error).Code)
}

func TestJoinSeatRejectsWhenFull(t *testing.T) {
	d := newWaitingDraft(t, 2)
	_, err := turnengine.JoinSeat(d, "p3")
	require.Error(t, err)
	require.Equal(t, turnengine.CodeDraftFull, err.(*turnengine.Error).Code)
}

func TestLeaveSeatFreesTheSlot(t *testing.T) {
	d := newWaitingDraft(t, 2)
	next, err := turnengine.LeaveSeat(d, "p2")
	require.NoError(t, err)
	require.Len(t, next.Seats, 1)

	rejoined, err := turnengine.JoinSeat(next, "p2")
	require.NoError(t, err)
	require.Equal(t, 2, rejoined.Seats[1].SeatNumber)
}

func TestStartRequiresTwoSeats(t *testing.T) {
	d := &models.Draft{
		ID: uuid.New(), ShareID: "s1", SetCode: "SOR", MaxSeats: 4,
		Status: models.StatusWaiting, Settings: models.DefaultSettings(),
	}
	joined, err := turnengine.JoinSeat(d, "p1")
	require.NoError(t, err)

	_, err = turnengine.Start(joined, time.Now(), 1, packgen.Result{})
	require.Error(t, err)
	require.Equal(t, turnengine.CodeTooFewPlayers, err.(*turnengine.Error).Code)
}

func TestStartPlacesRound1LeaderOfferings(t *testing.T) {
	d := newWaitingDraft(t, 4)
	started := startDraft(t, d, 14)

	require.Equal(t, models.StatusLeaderDraft, started.Status)
	require.Equal(t, 1, started.PhaseState.LeaderRound)
	for _, seat := range started.Seats {
		require.Len(t, seat.LeaderOffering, 3)
		require.Equal(t, models.PickPicking, seat.PickStatus)
	}
}

func TestLeaderDraftRotatesRightAcrossThreeRounds(t *testing.T) {
	d := newWaitingDraft(t, 4)
	d = startDraft(t, d, 14)

	for round := 1; round <= 3; round++ {
		require.Equal(t, models.StatusLeaderDraft, d.Status)
		require.Equal(t, round, d.PhaseState.LeaderRound)

		d = selectAll(t, d)
		committed, err := turnengine.CommitRound(d, time.Now())
		require.NoError(t, err)
		if round < 3 {
			// Seat k's residual offering (its first card was picked) is
			// now held by seat k+1 mod N.
			n := len(d.Seats)
			for k := range d.Seats {
				require.Equal(t, d.Seats[k].LeaderOffering[1:], committed.Seats[(k+1)%n].LeaderOffering)
			}
		}
		d = committed
	}

	require.Equal(t, models.StatusPackDraft, d.Status)
	require.Equal(t, 1, d.PhaseState.PackNumber)
	for _, seat := range d.Seats {
		require.Len(t, seat.DraftedLeaders, 3)
		require.Len(t, seat.CurrentPack, 14)
		require.Equal(t, models.PickPicking, seat.PickStatus)
	}
}

func TestPackDraftCompletesAllThreePacks(t *testing.T) {
	d := newWaitingDraft(t, 4)
	d = startDraft(t, d, 3)

	for round := 1; round <= 3; round++ {
		d = selectAll(t, d)
		committed, err := turnengine.CommitRound(d, time.Now())
		require.NoError(t, err)
		d = committed
	}
	require.Equal(t, models.StatusPackDraft, d.Status)

	for d.Status == models.StatusPackDraft {
		d = selectAll(t, d)
		committed, err := turnengine.CommitRound(d, time.Now())
		require.NoError(t, err)
		d = committed
	}

	require.Equal(t, models.StatusCompleted, d.Status)
	require.NotNil(t, d.CompletedAt)
	for _, seat := range d.Seats {
		require.Len(t, seat.DraftedCards, 9) // 3 packs x 3 cards
		require.Empty(t, seat.CurrentPack)
	}
}

func TestSelectRejectsCardNotInHand(t *testing.T) {
	d := newWaitingDraft(t, 2)
	d = startDraft(t, d, 14)

	bogus := "not-a-real-card"
	_, err := turnengine.Select(d, d.Seats[0].SeatID, &bogus)
	require.Error(t, err)
	require.Equal(t, turnengine.CodeStateChanged, err.(*turnengine.Error).Code)
}

func TestSelectNilClearsStagedPick(t *testing.T) {
	d := newWaitingDraft(t, 2)
	d = startDraft(t, d, 14)

	cardID := d.Seats[0].LeaderOffering[0].ID
	staged, err := turnengine.Select(d, d.Seats[0].SeatID, &cardID)
	require.NoError(t, err)
	require.Equal(t, models.PickSelected, staged.Seat(d.Seats[0].SeatID).PickStatus)

	cleared, err := turnengine.Select(staged, d.Seats[0].SeatID, nil)
	require.NoError(t, err)
	require.Equal(t, models.PickPicking, cleared.Seat(d.Seats[0].SeatID).PickStatus)
	require.Empty(t, cleared.Seat(d.Seats[0].SeatID).SelectedCardID)
}

func TestCommitRoundRequiresEverySeatSelected(t *testing.T) {
	d := newWaitingDraft(t, 2)
	d = startDraft(t, d, 14)

	cardID := d.Seats[0].LeaderOffering[0].ID
	staged, err := turnengine.Select(d, d.Seats[0].SeatID, &cardID)
	require.NoError(t, err)

	_, err = turnengine.CommitRound(staged, time.Now())
	require.Error(t, err)
	require.Equal(t, turnengine.CodeStateChanged, err.(*turnengine.Error).Code)
}

func TestForceRandomStagesFromHand(t *testing.T) {
	d := newWaitingDraft(t, 2)
	d = startDraft(t, d, 14)
	rng := rand.New(rand.NewSource(7))

	seat := d.Seat(d.Seats[0].SeatID)
	require.NoError(t, turnengine.ForceRandom(d.Status, seat, rng))
	require.Equal(t, models.PickSelected, seat.PickStatus)
	require.NotEmpty(t, seat.SelectedCardID)

	// Already-selected seats are left untouched.
	prior := seat.SelectedCardID
	require.NoError(t, turnengine.ForceRandom(d.Status, seat, rng))
	require.Equal(t, prior, seat.SelectedCardID)
}

func TestPauseResumeAccumulatesElapsedSeconds(t *testing.T) {
	d := newWaitingDraft(t, 2)
	d = startDraft(t, d, 14)

	t0 := time.Now()
	paused, err := turnengine.Pause(d, t0)
	require.NoError(t, err)
	require.True(t, paused.Paused)

	t1 := t0.Add(30 * time.Second)
	resumed, err := turnengine.Resume(paused, t1)
	require.NoError(t, err)
	require.False(t, resumed.Paused)
	require.InDelta(t, 30.0, resumed.PausedAccumulatedSeconds, 0.001)
}

func TestCancelIsTerminalOnlyOnce(t *testing.T) {
	d := newWaitingDraft(t, 2)
	d = startDraft(t, d, 14)

	cancelled, err := turnengine.Cancel(d, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = turnengine.Cancel(cancelled, time.Now())
	require.Error(t, err)
	require.Equal(t, turnengine.CodeDraftLocked, err.(*turnengine.Error).Code)
}
