package match

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/moonhowl/werewolf/go/internal/catalog"
)

// Phase is the coarse room status shared with every client.
type Phase string

const (
	PhaseLobby Phase = "lobby"
	PhaseNight Phase = "night"
	PhaseDay   Phase = "day"
	PhaseVote  Phase = "vote"
	PhaseEnded Phase = "ended"
)

// Seat is one chair in the room roster. Numbers are 1-based; 0 means
// unseated everywhere in this codebase.
type Seat struct {
	Number   int            `json:"number"`
	PlayerID string         `json:"player_id"`
	Role     catalog.RoleID `json:"role,omitempty"`
	Alive    bool           `json:"alive"`
}

// ActionCursor names who must act right now. For concurrent phases the Role
// is a class representative (wolf votes use RoleWolf for the whole family)
// and Seat is 0; for exclusive phases Seat pins the single actor.
type ActionCursor struct {
	Role       catalog.RoleID     `json:"role"`
	Seat       int                `json:"seat,omitempty"`
	Kind       catalog.ActionKind `json:"kind"`
	Concurrent bool               `json:"concurrent"`
}

// ActionRecord is one absorbed action in the per-round log. At most one
// record exists per (round, seat, kind); a revised vote replaces the prior
// record in place.
type ActionRecord struct {
	Round      int                `json:"round"`
	Seat       int                `json:"seat"`
	Kind       catalog.ActionKind `json:"kind"`
	Payload    json.RawMessage    `json:"payload,omitempty"`
	IntentID   uuid.UUID          `json:"intent_id"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// Outcome is a host-resolved result that has not been revealed to players
// yet (e.g. tonight's kill target before dawn).
type Outcome struct {
	Round      int                `json:"round"`
	Kind       catalog.ActionKind `json:"kind"`
	TargetSeat int                `json:"target_seat"`
	Revealed   bool               `json:"revealed"`
}

// State is the host-authoritative shared match state. Clients hold a
// read-only projection and must never mutate it outside of replacing the
// whole value with a newer patch.
type State struct {
	RoomID   string         `json:"room_id"`
	Version  uint64         `json:"version"`
	Phase    Phase          `json:"phase"`
	Round    int            `json:"round"`
	Seats    []Seat         `json:"seats"`
	Cursor   *ActionCursor  `json:"cursor,omitempty"`
	Log      []ActionRecord `json:"log,omitempty"`
	Outcomes []Outcome      `json:"outcomes,omitempty"`
}

// SeatByNumber looks up a seat in the roster.
func (s *State) SeatByNumber(n int) (Seat, bool) {
	for _, seat := range s.Seats {
		if seat.Number == n {
			return seat, true
		}
	}
	return Seat{}, false
}

// RecordFor returns the current round's record for a seat and kind.
func (s *State) RecordFor(seat int, kind catalog.ActionKind) (ActionRecord, bool) {
	for _, rec := range s.Log {
		if rec.Round == s.Round && rec.Seat == seat && rec.Kind == kind {
			return rec, true
		}
	}
	return ActionRecord{}, false
}

// HasIntent reports whether an intent id has been absorbed into the log.
func (s *State) HasIntent(id uuid.UUID) bool {
	for _, rec := range s.Log {
		if rec.IntentID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used by the host to hand out snapshots without
// sharing backing arrays with its mutable state.
func (s *State) Clone() State {
	out := *s
	out.Seats = append([]Seat(nil), s.Seats...)
	out.Log = append([]ActionRecord(nil), s.Log...)
	out.Outcomes = append([]Outcome(nil), s.Outcomes...)
	if s.Cursor != nil {
		cur := *s.Cursor
		out.Cursor = &cur
	}
	return out
}

// Patch is one ordered update on the sync stream: a full snapshot of the
// state at a version. Applying a patch is a whole-value replacement, so no
// partially merged state is ever observable.
type Patch struct {
	RoomID    string    `json:"room_id"`
	Version   uint64    `json:"version"`
	State     State     `json:"state"`
	EmittedAt time.Time `json:"emitted_at"`
}
