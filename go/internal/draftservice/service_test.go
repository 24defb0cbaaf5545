package draftservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/harlowbrent/boosterdraft/go/internal/botbehavior"
	"github.com/harlowbrent/boosterdraft/go/internal/botrunner"
	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/draftservice"
	"github.com/harlowbrent/boosterdraft/go/internal/packgen"
	"github.com/harlowbrent/boosterdraft/go/internal/store"
)

func newTestService(t *testing.T) (*draftservice.Service, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s := store.NewMemory()
	hub := broadcast.NewHub()
	behaviors := botbehavior.NewRegistry(func() botbehavior.Behavior {
		return botbehavior.NewPowerTable(1, nil)
	})
	bots := botrunner.New(s, hub, behaviors, clock)
	return draftservice.New(s, packgen.NewPoolGenerator(), behaviors, hub, bots, clock), clock
}

func TestCreateJoinStart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	draft, err := svc.Create(ctx, draftservice.CreateParams{SetCode: "SOR", MaxSeats: 4}, "host")
	require.NoError(t, err)
	require.NotEmpty(t, draft.ShareID)

	_, err = svc.Join(ctx, draft.ShareID, "p2")
	require.NoError(t, err)

	_, err = svc.AddBot(ctx, draft.ShareID, "host")
	require.NoError(t, err)

	started, err := svc.Start(ctx, draft.ShareID, "host")
	require.NoError(t, err)
	require.Equal(t, "leader_draft", string(started.Status))
	for _, seat := range started.Seats {
		require.Len(t, seat.LeaderOffering, 3)
	}
}

func TestStartRejectsNonHost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	draft, err := svc.Create(ctx, draftservice.CreateParams{SetCode: "SOR", MaxSeats: 4}, "host")
	require.NoError(t, err)
	_, err = svc.Join(ctx, draft.ShareID, "p2")
	require.NoError(t, err)

	_, err = svc.Start(ctx, draft.ShareID, "p2")
	require.Error(t, err)
	de, ok := err.(*draftservice.Error)
	require.True(t, ok)
	require.Equal(t, draftservice.CodeNotHost, de.Code)
}

func TestSelectRejectsNonSeatOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	draft, err := svc.Create(ctx, draftservice.CreateParams{SetCode: "SOR", MaxSeats: 2}, "host")
	require.NoError(t, err)
	_, err = svc.Join(ctx, draft.ShareID, "p2")
	require.NoError(t, err)
	started, err := svc.Start(ctx, draft.ShareID, "host")
	require.NoError(t, err)

	cardID := started.Seats[0].LeaderOffering[0].ID
	_, err = svc.Select(ctx, draft.ShareID, "intruder", &cardID)
	require.Error(t, err)
	de, ok := err.(*draftservice.Error)
	require.True(t, ok)
	require.Equal(t, draftservice.CodeNotSeatOwner, de.Code)
}

func TestGetStateIncludesOwnHandOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	draft, err := svc.Create(ctx, draftservice.CreateParams{SetCode: "SOR", MaxSeats: 2}, "host")
	require.NoError(t, err)
	_, err = svc.Join(ctx, draft.ShareID, "p2")
	require.NoError(t, err)
	_, err = svc.Start(ctx, draft.ShareID, "host")
	require.NoError(t, err)

	view, err := svc.GetState(ctx, draft.ShareID, "p2")
	require.NoError(t, err)
	require.NotNil(t, view.Self)
	require.Len(t, view.Self.LeaderOffering, 3)

	anon, err := svc.GetState(ctx, draft.ShareID, "")
	require.NoError(t, err)
	require.Nil(t, anon.Self)
}

func TestPollForChangeReturnsImmediatelyWhenAlreadyAhead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	draft, err := svc.Create(ctx, draftservice.CreateParams{SetCode: "SOR", MaxSeats: 2}, "host")
	require.NoError(t, err)

	view, err := svc.PollForChange(ctx, draft.ShareID, 0, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, draft.StateVersion, view.Public.StateVersion)
}

func TestCancelMarksDraftCancelled(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	draft, err := svc.Create(ctx, draftservice.CreateParams{SetCode: "SOR", MaxSeats: 2}, "host")
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, draft.ShareID, "host")
	require.NoError(t, err)
	require.Equal(t, "cancelled", string(cancelled.Status))
}
