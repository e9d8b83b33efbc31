package room

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/wire"
)

// UIEvent is one raw interaction from the presentation layer. Disabled is
// the control's presentation-only styling flag; it never suppresses the
// event, it only tags the resulting intent.
type UIEvent struct {
	Control    string // control identifier, for logging only
	TargetSeat int
	Text       string
	Disabled   bool
	PressedAt  time.Time
}

// Dispatcher converts raw UI events into canonical intents. Every press
// yields exactly one intent; a non-nil error marks the intent as failing
// UX-level pre-checks, which keeps it from being forwarded but never from
// existing.
type Dispatcher struct {
	roomID string
	clock  clockwork.Clock
}

// NewDispatcher creates a dispatcher for one room.
func NewDispatcher(roomID string, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{roomID: roomID, clock: clock}
}

// BuildIntent constructs the canonical intent for a press. The returned
// intent is complete even when err is non-nil, so callers can observe
// attempted-but-ignored interactions.
func (d *Dispatcher) BuildIntent(ev UIEvent, gc GameContext) (wire.Intent, error) {
	intent := wire.Intent{
		RoomID:         d.roomID,
		ActorSeat:      gc.ActorSeatNumber,
		ClientIntentID: uuid.New(),
		EmittedAt:      d.clock.Now(),
		Disabled:       ev.Disabled,
	}
	if gc.CurrentSchema == nil {
		return intent, ErrNoSchema
	}
	schema := *gc.CurrentSchema
	intent.Kind = schema.Kind

	switch schema.Kind {
	case catalog.KindWolfVote, catalog.KindChooseSeat:
		if ev.TargetSeat <= 0 {
			return intent, fmt.Errorf("%w: %s requires a target seat", ErrInvalidIntent, schema.Kind)
		}
		if !schema.AllowSelf && ev.TargetSeat == gc.ActorSeatNumber {
			return intent, fmt.Errorf("%w: %s forbids self-targeting", ErrInvalidIntent, schema.Kind)
		}
		intent.Payload.Target = ev.TargetSeat

	case catalog.KindSwapSeats:
		if ev.TargetSeat <= 0 {
			return intent, fmt.Errorf("%w: swap requires a target seat", ErrInvalidIntent)
		}
		intent.Payload.Target = ev.TargetSeat
		if gc.FirstSwapSeat > 0 && gc.FirstSwapSeat != ev.TargetSeat {
			// Second pick completes the pair.
			intent.Payload.Target = gc.FirstSwapSeat
			intent.Payload.SecondTarget = ev.TargetSeat
		}

	case catalog.KindConfirm:
		// Carries no payload.

	case catalog.KindFreeText:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return intent, fmt.Errorf("%w: free text must not be empty", ErrInvalidIntent)
		}
		intent.Payload.Text = text

	default:
		return intent, fmt.Errorf("%w: unknown action kind %q", ErrInvalidIntent, schema.Kind)
	}
	return intent, nil
}
