package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// LogPublisher is an in-memory publisher for development and tests.
type LogPublisher struct{}

func (LogPublisher) PublishPatch(ctx context.Context, patch match.Patch) error {
	log.Info().
		Str("room_id", patch.RoomID).
		Uint64("version", patch.Version).
		Msg("publishing patch")
	return nil
}

// NATSPublisher publishes applied patches to a JetStream subject per room;
// the gateway consumer fans them out to websocket clients.
type NATSPublisher struct {
	js            jetstream.JetStream
	subjectPrefix string
}

// NewNATSPublisher creates a publisher over an existing JetStream context.
func NewNATSPublisher(js jetstream.JetStream, subjectPrefix string) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = "room.patches"
	}
	return &NATSPublisher{js: js, subjectPrefix: subjectPrefix}
}

func (p *NATSPublisher) PublishPatch(ctx context.Context, patch match.Patch) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, patch.RoomID)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish patch to %s: %w", subject, err)
	}
	log.Debug().
		Str("subject", subject).
		Uint64("version", patch.Version).
		Msg("patch published to JetStream")
	return nil
}

// FanoutPublisher forwards a patch to several publishers, e.g. the local
// websocket hub plus JetStream. Errors are joined, not short-circuited.
type FanoutPublisher []PatchPublisher

func (f FanoutPublisher) PublishPatch(ctx context.Context, patch match.Patch) error {
	var firstErr error
	for _, pub := range f {
		if err := pub.PublishPatch(ctx, patch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
