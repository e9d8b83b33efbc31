package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// PatchConsumerConfig holds JetStream settings for the patch consumer.
type PatchConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultPatchConsumerConfig returns the default consumer configuration.
func DefaultPatchConsumerConfig() PatchConsumerConfig {
	return PatchConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "ROOM_PATCHES",
		ConsumerName:  "room-gateway",
		SubjectFilter: "room.patches.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// PatchConsumer reads applied patches off JetStream and hands them to the
// hub for websocket fan-out. It exists so the authoritative session and
// the gateway can run in separate processes; in single-process setups the
// session publishes straight into the hub instead.
type PatchConsumer struct {
	hub      *Hub
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   PatchConsumerConfig
}

// NewPatchConsumer connects to NATS and ensures the durable consumer.
func NewPatchConsumer(hub *Hub, config PatchConsumerConfig) (*PatchConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	pc := &PatchConsumer{hub: hub, nc: nc, js: js, config: config}
	if err := pc.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return pc, nil
}

func (pc *PatchConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := pc.js.Stream(ctx, pc.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}
	consumerConfig := jetstream.ConsumerConfig{
		Name:          pc.config.ConsumerName,
		Durable:       pc.config.ConsumerName,
		Description:   "Room gateway patch consumer",
		FilterSubject: pc.config.SubjectFilter,
		// Only the latest snapshot per room matters; the version gate on
		// the client drops anything older anyway.
		DeliverPolicy: jetstream.DeliverLastPerSubjectPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    pc.config.MaxDeliver,
		AckWait:       pc.config.AckWait,
		MaxAckPending: pc.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}
	consumer, err := stream.Consumer(ctx, pc.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", pc.config.ConsumerName).
			Str("stream", pc.config.StreamName).
			Msg("created JetStream consumer")
	}
	pc.consumer = consumer
	return nil
}

// Start consumes patches until the context is cancelled.
func (pc *PatchConsumer) Start(ctx context.Context) error {
	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := pc.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("patch consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := pc.processMessage(ctx, msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process patch")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (pc *PatchConsumer) processMessage(ctx context.Context, msg jetstream.Msg) error {
	var patch match.Patch
	if err := json.Unmarshal(msg.Data(), &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}
	if err := pc.hub.PublishPatch(ctx, patch); err != nil {
		return err
	}
	log.Debug().
		Str("room_id", patch.RoomID).
		Uint64("version", patch.Version).
		Msg("patch broadcast to room connections")
	return nil
}

// Close releases the NATS connection.
func (pc *PatchConsumer) Close() {
	if pc.nc != nil {
		pc.nc.Close()
	}
}
