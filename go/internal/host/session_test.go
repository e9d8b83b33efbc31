package host

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	patches []match.Patch
}

func (c *capturePublisher) PublishPatch(_ context.Context, p match.Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patches = append(c.patches, p)
	return nil
}

func (c *capturePublisher) all() []match.Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]match.Patch(nil), c.patches...)
}

func testSeats() []match.Seat {
	return []match.Seat{
		{Number: 1, PlayerID: "p1", Role: catalog.RoleSeer, Alive: true},
		{Number: 2, PlayerID: "p2", Role: catalog.RoleWolf, Alive: true},
		{Number: 3, PlayerID: "p3", Role: catalog.RoleWolf, Alive: true},
		{Number: 4, PlayerID: "p4", Role: catalog.RoleWolfKing, Alive: true},
		{Number: 5, PlayerID: "p5", Role: catalog.RoleVillager, Alive: true},
	}
}

func newTestSession(seed int64) (*Session, *capturePublisher) {
	pub := &capturePublisher{}
	s := NewSession(SessionConfig{
		RoomID:    "r1",
		Seats:     testSeats(),
		Catalog:   catalog.Default(),
		Publisher: pub,
		Clock:     clockwork.NewFakeClock(),
		Seed:      seed,
	})
	return s, pub
}

func voteIntent(seat, target int) wire.Intent {
	return wire.Intent{
		RoomID:         "r1",
		ActorSeat:      seat,
		Kind:           catalog.KindWolfVote,
		Payload:        wire.IntentPayload{Target: target},
		ClientIntentID: uuid.New(),
	}
}

func TestBeginNightOpensWolfVote(t *testing.T) {
	s, pub := newTestSession(1)
	ctx := context.Background()

	require.NoError(t, s.BeginNight(ctx))

	snap := s.Snapshot()
	require.Equal(t, uint64(2), snap.Version)
	require.Equal(t, match.PhaseNight, snap.State.Phase)
	require.Equal(t, 1, snap.State.Round)
	require.NotNil(t, snap.State.Cursor)
	// No magician or guard in this roster, so the wolves open the night.
	require.Equal(t, catalog.RoleWolf, snap.State.Cursor.Role)
	require.Equal(t, catalog.KindWolfVote, snap.State.Cursor.Kind)
	require.True(t, snap.State.Cursor.Concurrent)

	patches := pub.all()
	require.Len(t, patches, 1)
	require.Equal(t, uint64(2), patches[0].Version)
}

func TestApplyIntentBumpsVersionPerBallot(t *testing.T) {
	s, pub := newTestSession(1)
	ctx := context.Background()
	require.NoError(t, s.BeginNight(ctx))

	require.NoError(t, s.ApplyIntent(ctx, voteIntent(2, 5)))
	require.Equal(t, uint64(3), s.Snapshot().Version)

	require.NoError(t, s.ApplyIntent(ctx, voteIntent(3, 5)))
	require.Equal(t, uint64(4), s.Snapshot().Version)

	patches := pub.all()
	require.Len(t, patches, 3)
	for i, p := range patches {
		require.Equal(t, uint64(i+2), p.Version)
	}

	// Turn still open: one wolf has not voted.
	snap := s.Snapshot()
	require.NotNil(t, snap.State.Cursor)
	require.Equal(t, catalog.KindWolfVote, snap.State.Cursor.Kind)
	require.Empty(t, snap.State.Outcomes)
}

func TestApplyIntentRevisionIsLastWriteWins(t *testing.T) {
	s, _ := newTestSession(1)
	ctx := context.Background()
	require.NoError(t, s.BeginNight(ctx))

	require.NoError(t, s.ApplyIntent(ctx, voteIntent(2, 5)))
	revised := voteIntent(2, 1)
	require.NoError(t, s.ApplyIntent(ctx, revised))

	snap := s.Snapshot()
	// Still exactly one record for the seat, holding the later ballot.
	rec, ok := snap.State.RecordFor(2, catalog.KindWolfVote)
	require.True(t, ok)
	require.Equal(t, revised.ClientIntentID, rec.IntentID)
	count := 0
	for _, r := range snap.State.Log {
		if r.Seat == 2 {
			count++
		}
	}
	require.Equal(t, 1, count)
	// Each revision is its own version.
	require.Equal(t, uint64(4), snap.Version)
}

func TestWolfVoteClosesWhenAllWolvesVoted(t *testing.T) {
	s, _ := newTestSession(1)
	ctx := context.Background()
	require.NoError(t, s.BeginNight(ctx))

	require.NoError(t, s.ApplyIntent(ctx, voteIntent(2, 5)))
	require.NoError(t, s.ApplyIntent(ctx, voteIntent(3, 5)))
	require.NoError(t, s.ApplyIntent(ctx, voteIntent(4, 1)))

	snap := s.Snapshot()
	require.Len(t, snap.State.Outcomes, 1)
	outcome := snap.State.Outcomes[0]
	require.Equal(t, catalog.KindWolfVote, outcome.Kind)
	require.Equal(t, 5, outcome.TargetSeat) // majority target
	require.False(t, outcome.Revealed)

	// The cursor moved on to the seer.
	require.NotNil(t, snap.State.Cursor)
	require.Equal(t, catalog.RoleSeer, snap.State.Cursor.Role)
	require.Equal(t, 1, snap.State.Cursor.Seat)
}

func TestWolfVoteTieBreakIsSeedDeterministic(t *testing.T) {
	run := func(seed int64) int {
		s, _ := newTestSession(seed)
		ctx := context.Background()
		require.NoError(t, s.BeginNight(ctx))
		require.NoError(t, s.ApplyIntent(ctx, voteIntent(2, 5)))
		require.NoError(t, s.ApplyIntent(ctx, voteIntent(3, 1)))
		require.NoError(t, s.ApplyIntent(ctx, voteIntent(4, 5)))
		// 5 has two ballots, 1 has one: no tie, sanity-check the majority.
		snap := s.Snapshot()
		require.Len(t, snap.State.Outcomes, 1)
		return snap.State.Outcomes[0].TargetSeat
	}
	require.Equal(t, 5, run(1))

	tied := func(seed int64) int {
		s, _ := newTestSession(seed)
		ctx := context.Background()
		require.NoError(t, s.BeginNight(ctx))
		require.NoError(t, s.ApplyIntent(ctx, voteIntent(2, 5)))
		require.NoError(t, s.ApplyIntent(ctx, voteIntent(3, 1)))
		require.NoError(t, s.ApplyIntent(ctx, voteIntent(4, 3)))
		snap := s.Snapshot()
		require.Len(t, snap.State.Outcomes, 1)
		return snap.State.Outcomes[0].TargetSeat
	}
	// Same seed, same ballots, same pick.
	require.Equal(t, tied(42), tied(42))
	require.Contains(t, []int{1, 3, 5}, tied(42))
}

func TestNightEndsAfterLastRole(t *testing.T) {
	s, _ := newTestSession(1)
	ctx := context.Background()
	require.NoError(t, s.BeginNight(ctx))

	require.NoError(t, s.ApplyIntent(ctx, voteIntent(2, 5)))
	require.NoError(t, s.ApplyIntent(ctx, voteIntent(3, 5)))
	require.NoError(t, s.ApplyIntent(ctx, voteIntent(4, 5)))

	// Seer checks seat 2; no witch in this roster, so the night ends.
	require.NoError(t, s.ApplyIntent(ctx, wire.Intent{
		RoomID:         "r1",
		ActorSeat:      1,
		Kind:           catalog.KindChooseSeat,
		Payload:        wire.IntentPayload{Target: 2},
		ClientIntentID: uuid.New(),
	}))

	snap := s.Snapshot()
	require.Nil(t, snap.State.Cursor)
	require.Equal(t, match.PhaseDay, snap.State.Phase)
}

func TestApplyIntentRejections(t *testing.T) {
	s, _ := newTestSession(1)
	ctx := context.Background()

	// No turn open yet.
	err := s.ApplyIntent(ctx, voteIntent(2, 5))
	require.ErrorIs(t, err, ErrNoActiveTurn)

	require.NoError(t, s.BeginNight(ctx))
	before := s.Snapshot().Version

	for _, tt := range []struct {
		name   string
		intent wire.Intent
		want   error
	}{
		{"unknown seat", voteIntent(9, 5), ErrUnknownSeat},
		{"villager is not a wolf", voteIntent(5, 2), ErrNotActioner},
		{"seer acts out of turn", voteIntent(1, 2), ErrNotActioner},
		{"wrong kind for turn", wire.Intent{
			ActorSeat: 2, Kind: catalog.KindChooseSeat,
			Payload: wire.IntentPayload{Target: 5}, ClientIntentID: uuid.New(),
		}, ErrSchemaMismatch},
		{"wolf votes for itself", voteIntent(2, 2), ErrSchemaMismatch},
		{"target seat missing", voteIntent(2, 9), ErrSchemaMismatch},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ApplyIntent(ctx, tt.intent)
			require.ErrorIs(t, err, tt.want)
		})
	}

	disabled := voteIntent(2, 5)
	disabled.Disabled = true
	require.ErrorIs(t, s.ApplyIntent(ctx, disabled), ErrDisabledIntent)

	// Nothing above mutated the state.
	snap := s.Snapshot()
	require.Equal(t, before, snap.Version)
	require.Empty(t, snap.State.Log)
}

func TestRebroadcastDoesNotBumpVersion(t *testing.T) {
	s, pub := newTestSession(1)
	ctx := context.Background()
	require.NoError(t, s.BeginNight(ctx))

	before := s.Snapshot().Version
	require.NoError(t, s.Rebroadcast(ctx))
	require.Equal(t, before, s.Snapshot().Version)

	patches := pub.all()
	require.Len(t, patches, 2)
	require.Equal(t, before, patches[1].Version)
}
