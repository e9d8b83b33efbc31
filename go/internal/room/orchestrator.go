package room

import (
	"github.com/google/uuid"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/rs/zerolog/log"
)

// TurnState is the orchestrator's position in the current turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAwaitingInput
	TurnSubmitting
	TurnResolved
	TurnBlocked
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnAwaitingInput:
		return "awaiting_input"
	case TurnSubmitting:
		return "submitting"
	case TurnResolved:
		return "resolved"
	case TurnBlocked:
		return "blocked"
	}
	return "unknown"
}

// Decision is the orchestrator's verdict on one press: whether the intent
// goes to the sync bridge, and if not, why. The intent itself always
// exists regardless of the decision.
type Decision struct {
	Forward bool
	Reason  string
}

// Orchestrator is the per-turn state machine. It is driven from exactly
// one goroutine (the session loop), so it carries no locking of its own.
type Orchestrator struct {
	state         TurnState
	firstSwapSeat int
	inFlight      uuid.UUID
}

// NewOrchestrator starts in Idle.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{state: TurnIdle}
}

// State returns the current turn state.
func (o *Orchestrator) State() TurnState { return o.state }

// FirstSwapSeat returns the stored first pick of an in-progress multi-step
// action, or 0.
func (o *Orchestrator) FirstSwapSeat() int { return o.firstSwapSeat }

// Observe advances the machine on a GameContext recomputation. st is the
// state the context was derived from; it is only consulted to detect that
// an in-flight intent has been absorbed.
func (o *Orchestrator) Observe(gc GameContext, st *match.State) {
	active := gc.ImActioner && gc.CurrentSchema != nil

	// Resolved is terminal for a turn; the next recomputation decides
	// whether this client acts again.
	if o.state == TurnResolved {
		if active {
			o.state = TurnAwaitingInput
		} else {
			o.state = TurnIdle
		}
	}

	if o.state == TurnSubmitting {
		if o.absorbed(gc, st) {
			o.state = TurnResolved
			o.inFlight = uuid.Nil
			o.firstSwapSeat = 0
			log.Debug().Str("turn_state", o.state.String()).Msg("intent absorbed")
		}
		return
	}

	if gc.AudioPlaying {
		if o.state == TurnAwaitingInput {
			o.state = TurnBlocked
			log.Debug().Msg("narration started, turn blocked")
		}
		return
	}
	if o.state == TurnBlocked {
		if active {
			o.state = TurnAwaitingInput
		} else {
			o.state = TurnIdle
			o.firstSwapSeat = 0
		}
		return
	}

	switch {
	case o.state == TurnIdle && active:
		o.state = TurnAwaitingInput
	case o.state == TurnAwaitingInput && !active:
		// Actor changed under us: partial multi-step state dies with
		// the turn.
		o.state = TurnIdle
		o.firstSwapSeat = 0
	}
}

// absorbed reports whether the in-flight intent is reflected in the shared
// state: either its id landed in the action log or the cursor moved on.
func (o *Orchestrator) absorbed(gc GameContext, st *match.State) bool {
	if o.inFlight == uuid.Nil {
		return true
	}
	if st != nil && st.HasIntent(o.inFlight) {
		return true
	}
	return !gc.ImActioner && !gc.AudioPlaying
}

// HandlePress decides whether a freshly built intent is forwarded to the
// sync bridge. buildErr is the dispatcher's pre-check result for the same
// press.
func (o *Orchestrator) HandlePress(intent wire.Intent, buildErr error, gc GameContext) Decision {
	if intent.Disabled {
		return Decision{Reason: "control disabled"}
	}
	if gc.AudioPlaying || o.state == TurnBlocked {
		return Decision{Reason: "narration playing"}
	}
	revising := o.state == TurnSubmitting && gc.CurrentSchema != nil && gc.CurrentSchema.AllowRevise
	if o.state != TurnAwaitingInput && !revising {
		return Decision{Reason: "not awaiting input"}
	}
	if buildErr != nil {
		return Decision{Reason: buildErr.Error()}
	}

	if intent.Kind == catalog.KindSwapSeats && intent.Payload.SecondTarget == 0 {
		if o.firstSwapSeat == intent.Payload.Target {
			o.firstSwapSeat = 0
			return Decision{Reason: "swap selection cancelled"}
		}
		o.firstSwapSeat = intent.Payload.Target
		return Decision{Reason: "first swap seat stored"}
	}
	if intent.Kind == catalog.KindSwapSeats {
		o.firstSwapSeat = 0
	}

	o.inFlight = intent.ClientIntentID
	o.state = TurnSubmitting
	return Decision{Forward: true}
}

// PublishFailed rolls the machine back to AwaitingInput after the sync
// bridge could not take the intent; the press can be retried.
func (o *Orchestrator) PublishFailed() {
	if o.state == TurnSubmitting {
		o.state = TurnAwaitingInput
		o.inFlight = uuid.Nil
	}
}

// IntentRejected rolls the machine back after the host refused the
// in-flight intent. Without this the turn would wait forever: a rejected
// intent never lands in the log and the cursor never moves, so no patch
// can release Submitting. Rejections for other intents are ignored.
func (o *Orchestrator) IntentRejected(id uuid.UUID) {
	if o.state == TurnSubmitting && o.inFlight == id {
		o.state = TurnAwaitingInput
		o.inFlight = uuid.Nil
		log.Debug().Str("intent_id", id.String()).Msg("in-flight intent rejected, awaiting input again")
	}
}
