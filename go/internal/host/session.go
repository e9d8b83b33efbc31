// Package host owns the authoritative MatchState for one room: it
// validates and sequences intents, resolves every random outcome exactly
// once, and emits versioned patches for the sync stream. Clients never
// compute any of this locally.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/rs/zerolog/log"
)

// PatchPublisher is where applied patches go (the fan-out bus).
type PatchPublisher interface {
	PublishPatch(ctx context.Context, patch match.Patch) error
}

// Journal persists snapshots and the action log for host recovery. It is
// optional; a nil journal disables persistence.
type Journal interface {
	AppendAction(ctx context.Context, roomID string, rec match.ActionRecord) error
	SaveSnapshot(ctx context.Context, patch match.Patch) error
}

// SessionConfig wires one authoritative room session.
type SessionConfig struct {
	RoomID    string
	Seats     []match.Seat
	Catalog   *catalog.Catalog
	Publisher PatchPublisher
	Journal   Journal
	Clock     clockwork.Clock
	// Seed feeds the session's RNG. Every tie-break for this room is drawn
	// from it, exactly once per outcome.
	Seed int64
}

// Session is the host-authoritative state machine for one room.
type Session struct {
	mu      sync.Mutex
	st      match.State
	cat     *catalog.Catalog
	rng     *rand.Rand
	pub     PatchPublisher
	journal Journal
	clock   clockwork.Clock
}

// NewSession creates a session in the lobby phase at version 1.
func NewSession(cfg SessionConfig) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		st: match.State{
			RoomID:  cfg.RoomID,
			Version: 1,
			Phase:   match.PhaseLobby,
			Seats:   append([]match.Seat(nil), cfg.Seats...),
		},
		cat:     cfg.Catalog,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		pub:     cfg.Publisher,
		journal: cfg.Journal,
		clock:   clock,
	}
}

// RoomID returns the room this session owns.
func (s *Session) RoomID() string {
	return s.st.RoomID
}

// BeginNight opens the first night turn and broadcasts the new state.
func (s *Session) BeginNight(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Phase = match.PhaseNight
	s.st.Round++
	s.st.Cursor = s.firstCursorLocked()
	return s.commitLocked(ctx)
}

// ApplyIntent validates one intent against the open turn and absorbs it.
// Disabled-tagged intents are logged and ignored without touching state.
// For concurrent phases the recorded action is last-write-wins per actor
// seat, ordered by arrival.
func (s *Session) ApplyIntent(ctx context.Context, intent wire.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intent.Disabled {
		log.Info().
			Str("room_id", s.st.RoomID).
			Int("seat", intent.ActorSeat).
			Str("kind", string(intent.Kind)).
			Str("intent_id", intent.ClientIntentID.String()).
			Msg("ignoring intent from disabled control")
		return ErrDisabledIntent
	}

	cursor := s.st.Cursor
	if cursor == nil {
		return ErrNoActiveTurn
	}
	seat, ok := s.st.SeatByNumber(intent.ActorSeat)
	if !ok || !seat.Alive {
		return fmt.Errorf("%w: seat %d", ErrUnknownSeat, intent.ActorSeat)
	}
	if !s.isActiveActorLocked(cursor, seat) {
		return fmt.Errorf("%w: seat %d role %s", ErrNotActioner, seat.Number, seat.Role)
	}
	if intent.Kind != cursor.Kind {
		return fmt.Errorf("%w: got %s, turn expects %s", ErrSchemaMismatch, intent.Kind, cursor.Kind)
	}
	schema := s.schemaForCursorLocked(cursor)
	if err := s.validatePayloadLocked(schema, seat, intent.Payload); err != nil {
		return err
	}

	payload, err := json.Marshal(intent.Payload)
	if err != nil {
		return fmt.Errorf("marshal intent payload: %w", err)
	}
	rec := match.ActionRecord{
		Round:      s.st.Round,
		Seat:       seat.Number,
		Kind:       intent.Kind,
		Payload:    payload,
		IntentID:   intent.ClientIntentID,
		RecordedAt: s.clock.Now(),
	}
	s.absorbRecordLocked(rec)

	if s.journal != nil {
		if err := s.journal.AppendAction(ctx, s.st.RoomID, rec); err != nil {
			log.Error().Err(err).Str("room_id", s.st.RoomID).Msg("failed to journal action")
		}
	}

	s.maybeAdvanceLocked(cursor)
	return s.commitLocked(ctx)
}

// Snapshot returns the current state as a patch at the current version,
// for the initial fetch and for recovery rebroadcasts.
func (s *Session) Snapshot() match.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patchLocked()
}

// Rebroadcast re-emits the current state without a version bump. A stalled
// turn is recovered this way rather than by client-side improvisation.
func (s *Session) Rebroadcast(ctx context.Context) error {
	s.mu.Lock()
	patch := s.patchLocked()
	s.mu.Unlock()
	if s.pub == nil {
		return nil
	}
	return s.pub.PublishPatch(ctx, patch)
}

func (s *Session) isActiveActorLocked(cursor *match.ActionCursor, seat match.Seat) bool {
	if cursor.Concurrent {
		if s.cat.IsWolfRole(cursor.Role) {
			return s.cat.IsWolfRole(seat.Role)
		}
		return cursor.Role == seat.Role
	}
	return cursor.Role == seat.Role && (cursor.Seat == 0 || cursor.Seat == seat.Number)
}

func (s *Session) schemaForCursorLocked(cursor *match.ActionCursor) catalog.ActionSchema {
	if spec, ok := s.cat.RoleSpec(cursor.Role); ok && spec.NightAction != nil && spec.NightAction.Kind == cursor.Kind {
		return *spec.NightAction
	}
	return catalog.SchemaFor(cursor.Kind)
}

func (s *Session) validatePayloadLocked(schema catalog.ActionSchema, actor match.Seat, p wire.IntentPayload) error {
	checkTarget := func(n int) error {
		target, ok := s.st.SeatByNumber(n)
		if !ok || !target.Alive {
			return fmt.Errorf("%w: target seat %d", ErrSchemaMismatch, n)
		}
		if !schema.AllowSelf && target.Number == actor.Number {
			return fmt.Errorf("%w: self-targeting forbidden", ErrSchemaMismatch)
		}
		return nil
	}
	switch schema.Kind.TargetMode() {
	case catalog.TargetsSingle:
		return checkTarget(p.Target)
	case catalog.TargetsPair:
		if p.Target == p.SecondTarget {
			return fmt.Errorf("%w: swap targets must differ", ErrSchemaMismatch)
		}
		if err := checkTarget(p.Target); err != nil {
			return err
		}
		return checkTarget(p.SecondTarget)
	case catalog.TargetsNone:
		if schema.Kind == catalog.KindFreeText && p.Text == "" {
			return fmt.Errorf("%w: free text must not be empty", ErrSchemaMismatch)
		}
		return nil
	}
	return nil
}

// absorbRecordLocked applies last-write-wins per (round, seat, kind).
func (s *Session) absorbRecordLocked(rec match.ActionRecord) {
	for i, old := range s.st.Log {
		if old.Round == rec.Round && old.Seat == rec.Seat && old.Kind == rec.Kind {
			s.st.Log[i] = rec
			return
		}
	}
	s.st.Log = append(s.st.Log, rec)
}

// maybeAdvanceLocked closes the turn when its completion condition holds.
// Exclusive turns close on the first absorbed action; the concurrent wolf
// vote closes when every living wolf-family seat has a ballot.
func (s *Session) maybeAdvanceLocked(cursor *match.ActionCursor) {
	if cursor.Concurrent && cursor.Kind == catalog.KindWolfVote {
		tally := match.TallyWolfVotes(&s.st, s.cat)
		if tally.Voted < tally.Eligible {
			return
		}
		s.resolveWolfVoteLocked(tally)
	}
	s.advanceCursorLocked()
}

// resolveWolfVoteLocked picks tonight's target from the closed ballot. A
// tie is broken by the session RNG, exactly once, and the outcome is
// stored resolved-but-unrevealed.
func (s *Session) resolveWolfVoteLocked(tally match.VoteSummary) {
	leaders := tally.Leaders()
	if len(leaders) == 0 {
		return
	}
	target := leaders[0]
	if len(leaders) > 1 {
		target = leaders[s.rng.Intn(len(leaders))]
	}
	s.st.Outcomes = append(s.st.Outcomes, match.Outcome{
		Round:      s.st.Round,
		Kind:       catalog.KindWolfVote,
		TargetSeat: target,
	})
	log.Info().
		Str("room_id", s.st.RoomID).
		Int("target_seat", target).
		Int("ballots", tally.Voted).
		Msg("wolf vote resolved")
}

func (s *Session) firstCursorLocked() *match.ActionCursor {
	for _, role := range s.cat.NightOrder() {
		if cur := s.cursorForLocked(role); cur != nil {
			return cur
		}
	}
	return nil
}

// advanceCursorLocked moves to the next night role with a living actor, or
// ends the night.
func (s *Session) advanceCursorLocked() {
	current := s.st.Cursor
	order := s.cat.NightOrder()
	passed := current == nil
	for _, role := range order {
		cur := s.cursorForLocked(role)
		if cur == nil {
			continue
		}
		if !passed {
			// Skip until we pass the currently open turn. The wolf vote
			// cursor represents every wolf-family role, so all of them
			// count as passed together.
			if cur.Role == current.Role && cur.Kind == current.Kind {
				passed = true
			}
			continue
		}
		if current != nil && cur.Role == current.Role && cur.Kind == current.Kind {
			continue
		}
		s.st.Cursor = cur
		return
	}
	s.st.Cursor = nil
	s.st.Phase = match.PhaseDay
	log.Info().Str("room_id", s.st.RoomID).Int("round", s.st.Round).Msg("night ended")
}

// cursorForLocked builds the cursor for a role's night action, or nil when
// no living seat can take it.
func (s *Session) cursorForLocked(role catalog.RoleID) *match.ActionCursor {
	spec, ok := s.cat.RoleSpec(role)
	if !ok || spec.NightAction == nil {
		return nil
	}
	if spec.NightAction.Kind == catalog.KindWolfVote {
		for _, seat := range s.st.Seats {
			if seat.Alive && s.cat.IsWolfRole(seat.Role) {
				return &match.ActionCursor{
					Role:       catalog.RoleWolf,
					Kind:       catalog.KindWolfVote,
					Concurrent: true,
				}
			}
		}
		return nil
	}
	for _, seat := range s.st.Seats {
		if seat.Alive && seat.Role == role {
			return &match.ActionCursor{
				Role: role,
				Seat: seat.Number,
				Kind: spec.NightAction.Kind,
			}
		}
	}
	return nil
}

// commitLocked bumps the version and fans the new state out.
func (s *Session) commitLocked(ctx context.Context) error {
	s.st.Version++
	patch := s.patchLocked()

	if s.journal != nil {
		if err := s.journal.SaveSnapshot(ctx, patch); err != nil {
			log.Error().Err(err).Str("room_id", s.st.RoomID).Msg("failed to journal snapshot")
		}
	}
	if s.pub == nil {
		return nil
	}
	if err := s.pub.PublishPatch(ctx, patch); err != nil {
		return fmt.Errorf("publish patch v%d: %w", patch.Version, err)
	}
	return nil
}

func (s *Session) patchLocked() match.Patch {
	return match.Patch{
		RoomID:    s.st.RoomID,
		Version:   s.st.Version,
		State:     s.st.Clone(),
		EmittedAt: s.clock.Now(),
	}
}
