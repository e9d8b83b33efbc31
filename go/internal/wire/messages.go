// Package wire defines the JSON envelopes exchanged between seat clients
// and the room host over the websocket stream. Both sides marshal the same
// shapes, so the definitions live here rather than in the bridge or the
// gateway.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/match"
)

// MessageType discriminates envelopes on the wire.
type MessageType string

const (
	// Server -> client: one ordered state patch.
	TypePatch MessageType = "patch"
	// Client -> server: one action intent.
	TypeIntent MessageType = "intent"
	// Server -> client: intent rejected by host validation.
	TypeRejected MessageType = "rejected"
)

// Envelope is the outer frame of every websocket message.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Intent is the canonical, idempotent record of one attempted action.
// ClientIntentID makes re-dispatch idempotent: a changed vote is a new
// intent with a fresh id that supersedes the previous one for the same
// actor. Disabled marks presses on visually disabled controls — the intent
// is still emitted; the host decides what to do with it.
type Intent struct {
	RoomID         string             `json:"room_id"`
	ActorSeat      int                `json:"actor_seat"`
	Kind           catalog.ActionKind `json:"kind"`
	Payload        IntentPayload      `json:"payload"`
	ClientIntentID uuid.UUID          `json:"client_intent_id"`
	EmittedAt      time.Time          `json:"emitted_at"`
	Disabled       bool               `json:"disabled,omitempty"`
}

// IntentPayload carries the per-kind arguments. Unused fields stay zero.
type IntentPayload struct {
	Target       int    `json:"target,omitempty"`
	SecondTarget int    `json:"second_target,omitempty"`
	Text         string `json:"text,omitempty"`
}

// Rejected reports a host-side rejection back to the emitting client.
type Rejected struct {
	ClientIntentID uuid.UUID `json:"client_intent_id"`
	Reason         string    `json:"reason"`
}

// EncodePatch wraps a patch in an envelope frame.
func EncodePatch(p match.Patch) ([]byte, error) {
	return encode(TypePatch, p)
}

// EncodeIntent wraps an intent in an envelope frame.
func EncodeIntent(in Intent) ([]byte, error) {
	return encode(TypeIntent, in)
}

// EncodeRejected wraps a rejection in an envelope frame.
func EncodeRejected(r Rejected) ([]byte, error) {
	return encode(TypeRejected, r)
}

func encode(t MessageType, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}

// Decode parses the outer envelope of a raw frame.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
