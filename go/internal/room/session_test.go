package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	intents []wire.Intent
}

func (c *captureSink) Publish(_ context.Context, intent wire.Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, intent)
	return nil
}

func (c *captureSink) all() []wire.Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Intent(nil), c.intents...)
}

func ballotPayload(t *testing.T, target int) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(match.TargetPayload{Target: target})
	require.NoError(t, err)
	return raw
}

func startSession(t *testing.T, id Identity, sink IntentSink) (*Session, chan match.Patch, chan wire.Rejected) {
	t.Helper()
	patches := make(chan match.Patch, 8)
	audio := make(chan bool, 8)
	rejections := make(chan wire.Rejected, 8)
	s := NewSession(SessionConfig{
		RoomID:     "r1",
		Identity:   id,
		Roles:      catalog.Default(),
		Sink:       sink,
		Patches:    patches,
		Audio:      audio,
		Rejections: rejections,
		Clock:      clockwork.NewRealClock(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s, patches, rejections
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSessionVoteRoundTrip(t *testing.T) {
	sink := &captureSink{}
	s, patches, _ := startSession(t, Identity{PlayerID: "p2", Seat: 2, Role: catalog.RoleWolf}, sink)

	// Version 5: the wolf vote window opens, nobody has voted.
	st5 := *nightState(5, wolfCursor())
	patches <- match.Patch{RoomID: "r1", Version: 5, State: st5}
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })

	line, ok := s.Facade().WolfStatusLine(s.Context())
	require.True(t, ok)
	require.Equal(t, "0/3 狼人已投票", line)

	// The wolf taps seat 5.
	s.Press(UIEvent{Control: "seat-5", TargetSeat: 5})
	waitFor(t, func() bool { return len(sink.all()) == 1 })
	intent := sink.all()[0]
	require.Equal(t, catalog.KindWolfVote, intent.Kind)
	require.Equal(t, 5, intent.Payload.Target)
	require.Equal(t, TurnSubmitting, s.TurnState())

	// Version 6: the host absorbed the ballot.
	st6 := *nightState(6, wolfCursor())
	st6.Log = []match.ActionRecord{{
		Round:    1,
		Seat:     2,
		Kind:     catalog.KindWolfVote,
		Payload:  ballotPayload(t, 5),
		IntentID: intent.ClientIntentID,
	}}
	patches <- match.Patch{RoomID: "r1", Version: 6, State: st6}
	waitFor(t, func() bool { return s.TurnState() != TurnSubmitting })

	line, ok = s.Facade().WolfStatusLine(s.Context())
	require.True(t, ok)
	require.Equal(t, "1/3 狼人已投票（可点击改票或取消）", line)
}

func TestSessionDiscardsStalePatch(t *testing.T) {
	sink := &captureSink{}
	s, patches, _ := startSession(t, Identity{PlayerID: "p2", Seat: 2, Role: catalog.RoleWolf}, sink)

	st6 := *nightState(6, wolfCursor())
	st6.Log = []match.ActionRecord{{
		Round:   1,
		Seat:    3,
		Kind:    catalog.KindWolfVote,
		Payload: ballotPayload(t, 5),
	}}
	patches <- match.Patch{RoomID: "r1", Version: 6, State: st6}
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })

	line, ok := s.Facade().WolfStatusLine(s.Context())
	require.True(t, ok)
	require.Equal(t, "1/3 狼人已投票", line)

	// An out-of-order version 5 arrives afterwards; its empty log must not
	// roll the summary back.
	patches <- match.Patch{RoomID: "r1", Version: 5, State: *nightState(5, wolfCursor())}
	require.Never(t, func() bool {
		line, ok := s.Facade().WolfStatusLine(s.Context())
		return !ok || line != "1/3 狼人已投票"
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestSessionRejectedIntentDoesNotStrandTurn(t *testing.T) {
	sink := &captureSink{}
	s, patches, rejections := startSession(t, Identity{PlayerID: "p1", Seat: 1, Role: catalog.RoleSeer}, sink)

	st := nightState(5, &match.ActionCursor{Role: catalog.RoleSeer, Seat: 1, Kind: catalog.KindChooseSeat})
	patches <- match.Patch{RoomID: "r1", Version: 5, State: *st}
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })

	// Seat 6 is dead, which only the host notices: the press passes the
	// dispatcher and goes out.
	s.Press(UIEvent{Control: "seat-6", TargetSeat: 6})
	waitFor(t, func() bool { return len(sink.all()) == 1 })
	doomed := sink.all()[0]
	require.Equal(t, TurnSubmitting, s.TurnState())

	// The seer's action is not revisable, so until the rejection comes
	// back a corrective press goes nowhere.
	s.Press(UIEvent{Control: "seat-2", TargetSeat: 2})
	require.Never(t, func() bool { return len(sink.all()) > 1 },
		200*time.Millisecond, 10*time.Millisecond)

	rejections <- wire.Rejected{ClientIntentID: doomed.ClientIntentID, Reason: "unknown or dead seat"}
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })

	// The retry on a living seat forwards.
	s.Press(UIEvent{Control: "seat-2", TargetSeat: 2})
	waitFor(t, func() bool { return len(sink.all()) == 2 })
	require.Equal(t, 2, sink.all()[1].Payload.Target)
}

func TestSessionAudioBlocksPresses(t *testing.T) {
	sink := &captureSink{}
	var decisions []Decision
	var mu sync.Mutex
	patches := make(chan match.Patch, 8)
	audio := make(chan bool, 8)
	s := NewSession(SessionConfig{
		RoomID:   "r1",
		Identity: Identity{PlayerID: "p2", Seat: 2, Role: catalog.RoleWolf},
		Roles:    catalog.Default(),
		Sink:     sink,
		Patches:  patches,
		Audio:    audio,
		Clock:    clockwork.NewRealClock(),
		Observer: func(_ wire.Intent, d Decision) {
			mu.Lock()
			decisions = append(decisions, d)
			mu.Unlock()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	patches <- match.Patch{RoomID: "r1", Version: 5, State: *nightState(5, wolfCursor())}
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })

	audio <- true
	waitFor(t, func() bool { return s.TurnState() == TurnBlocked })

	s.Press(UIEvent{Control: "seat-5", TargetSeat: 5})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(decisions) == 1
	})
	mu.Lock()
	require.False(t, decisions[0].Forward)
	require.Equal(t, "narration playing", decisions[0].Reason)
	mu.Unlock()
	require.Empty(t, sink.all())

	// Narration ends; the window reopens and the retry goes through.
	audio <- false
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })
	s.Press(UIEvent{Control: "seat-5", TargetSeat: 5})
	waitFor(t, func() bool { return len(sink.all()) == 1 })
}

func TestSessionDisabledPressObservedNotForwarded(t *testing.T) {
	sink := &captureSink{}
	var decisions []Decision
	var seen []wire.Intent
	var mu sync.Mutex
	patches := make(chan match.Patch, 8)
	audio := make(chan bool, 8)
	s := NewSession(SessionConfig{
		RoomID:   "r1",
		Identity: Identity{PlayerID: "p2", Seat: 2, Role: catalog.RoleWolf},
		Roles:    catalog.Default(),
		Sink:     sink,
		Patches:  patches,
		Audio:    audio,
		Clock:    clockwork.NewRealClock(),
		Observer: func(in wire.Intent, d Decision) {
			mu.Lock()
			decisions = append(decisions, d)
			seen = append(seen, in)
			mu.Unlock()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	patches <- match.Patch{RoomID: "r1", Version: 5, State: *nightState(5, wolfCursor())}
	waitFor(t, func() bool { return s.TurnState() == TurnAwaitingInput })

	s.Press(UIEvent{Control: "seat-5", TargetSeat: 5, Disabled: true})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(decisions) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	// The press still produced a complete, observable intent.
	require.True(t, seen[0].Disabled)
	require.Equal(t, 5, seen[0].Payload.Target)
	require.False(t, decisions[0].Forward)
	require.Equal(t, "control disabled", decisions[0].Reason)
	require.Empty(t, sink.all())
}
