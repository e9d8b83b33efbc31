package room

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/rs/zerolog/log"
)

// IntentSink is where forwarded intents go. The sync bridge is the only
// production implementation; it is the sole writer toward the host.
type IntentSink interface {
	Publish(ctx context.Context, intent wire.Intent) error
}

// IntentObserver sees every built intent together with the forwarding
// decision, including disabled and blocked presses that never leave the
// client.
type IntentObserver func(intent wire.Intent, decision Decision)

// SessionConfig wires one seat client.
type SessionConfig struct {
	RoomID   string
	Identity Identity
	Roles    RoleCatalog
	Sink     IntentSink
	Patches  <-chan match.Patch
	Audio    <-chan bool
	// Rejections carries host rejection frames back into the loop so a
	// refused intent releases the turn instead of stranding it.
	Rejections <-chan wire.Rejected
	Clock      clockwork.Clock

	// WitchContext feeds the facade; optional.
	WitchContext func() *WitchContext
	// Observer is notified of every press; optional.
	Observer IntentObserver
}

// Session is the client core driver: one goroutine owns the shared-state
// projection and processes one patch, one press, or one audio flip to
// completion before admitting the next, so derivations never observe a
// half-applied state.
type Session struct {
	cfg      SessionConfig
	resolver *Resolver
	orch     *Orchestrator
	disp     *Dispatcher
	facade   *Facade

	pressCh chan UIEvent

	mu        sync.RWMutex
	st        *match.State
	gc        GameContext
	audioBusy bool
}

// NewSession builds a session. Facade vote derivations default to tallies
// over the session's own state projection unless the caller injects its
// own dependency bag members.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		cfg:      cfg,
		resolver: NewResolver(cfg.Roles),
		orch:     NewOrchestrator(),
		disp:     NewDispatcher(cfg.RoomID, cfg.Clock),
		pressCh:  make(chan UIEvent, 64),
	}
	s.facade = NewFacade(FacadeDeps{
		Roles:        cfg.Roles,
		WitchContext: cfg.WitchContext,
		HasWolfVoted: func() bool {
			return s.tally().HasVoted(cfg.Identity.Seat)
		},
		WolfVoteSummary: func() string {
			return s.tally().String()
		},
	})
	return s
}

// Run processes events until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	log.Info().
		Str("room_id", s.cfg.RoomID).
		Int("seat", s.cfg.Identity.Seat).
		Msg("room session started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("room_id", s.cfg.RoomID).Msg("room session shutting down")
			return
		case patch := <-s.cfg.Patches:
			s.applyPatch(patch)
		case busy := <-s.cfg.Audio:
			s.setAudio(busy)
		case rej := <-s.cfg.Rejections:
			s.handleRejection(rej)
		case ev := <-s.pressCh:
			s.handlePress(ctx, ev)
		}
	}
}

// Press hands a raw UI event to the session loop. Presses are never
// swallowed silently: if the queue is full the drop is logged.
func (s *Session) Press(ev UIEvent) {
	select {
	case s.pressCh <- ev:
	default:
		log.Warn().Str("control", ev.Control).Msg("press queue full, dropping event")
	}
}

// Context returns the latest derived GameContext.
func (s *Session) Context() GameContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gc
}

// Facade exposes the derivation functions to the presentation layer.
func (s *Session) Facade() *Facade { return s.facade }

// TurnState reports the orchestrator's current state.
func (s *Session) TurnState() TurnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orch.State()
}

func (s *Session) applyPatch(p match.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != nil && p.Version <= s.st.Version {
		// StaleState: discarded silently, logged only.
		log.Debug().
			Uint64("patch_version", p.Version).
			Uint64("applied_version", s.st.Version).
			Msg("discarding stale patch")
		return
	}
	st := p.State
	s.st = &st
	s.recomputeLocked()
}

func (s *Session) handleRejection(rej wire.Rejected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Warn().
		Str("intent_id", rej.ClientIntentID.String()).
		Str("reason", rej.Reason).
		Msg("host rejected intent")
	s.orch.IntentRejected(rej.ClientIntentID)
	s.gc.FirstSwapSeat = s.orch.FirstSwapSeat()
}

func (s *Session) setAudio(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBusy = busy
	s.recomputeLocked()
}

// recomputeLocked re-derives the context and lets the orchestrator observe
// it. Called with s.mu held.
func (s *Session) recomputeLocked() {
	gc := s.resolver.Resolve(s.st, s.cfg.Identity, s.audioBusy)
	gc.FirstSwapSeat = s.orch.FirstSwapSeat()
	s.orch.Observe(gc, s.st)
	gc.FirstSwapSeat = s.orch.FirstSwapSeat()
	s.gc = gc
}

func (s *Session) handlePress(ctx context.Context, ev UIEvent) {
	s.mu.Lock()
	gc := s.gc
	intent, buildErr := s.disp.BuildIntent(ev, gc)
	decision := s.orch.HandlePress(intent, buildErr, gc)
	s.gc.FirstSwapSeat = s.orch.FirstSwapSeat()
	s.mu.Unlock()

	if s.cfg.Observer != nil {
		s.cfg.Observer(intent, decision)
	}
	if !decision.Forward {
		log.Debug().
			Str("kind", string(intent.Kind)).
			Str("reason", decision.Reason).
			Bool("disabled", intent.Disabled).
			Msg("intent not forwarded")
		return
	}

	if err := s.cfg.Sink.Publish(ctx, intent); err != nil {
		log.Error().Err(err).
			Str("intent_id", intent.ClientIntentID.String()).
			Msg("failed to publish intent")
		s.mu.Lock()
		s.orch.PublishFailed()
		s.mu.Unlock()
		return
	}
	log.Info().
		Str("kind", string(intent.Kind)).
		Int("actor_seat", intent.ActorSeat).
		Str("intent_id", intent.ClientIntentID.String()).
		Msg("intent published")
}

func (s *Session) tally() match.VoteSummary {
	// Callers of the facade run on the session goroutine or after Context()
	// reads; the read lock keeps external callers safe too.
	s.mu.RLock()
	defer s.mu.RUnlock()
	return match.TallyWolfVotes(s.st, s.cfg.Roles)
}
