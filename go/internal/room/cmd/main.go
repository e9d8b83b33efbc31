package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/narration"
	"github.com/moonhowl/werewolf/go/internal/room"
	"github.com/moonhowl/werewolf/go/internal/room/bridge"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Headless seat client: connects one identity to a room and logs the
// derived view as patches come in. Useful for poking at a running host.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	seat, err := strconv.Atoi(getEnv("SEAT", "1"))
	if err != nil {
		log.Fatal().Err(err).Msg("SEAT must be a number")
	}
	identity := room.Identity{
		PlayerID: getEnv("PLAYER_ID", "dev"),
		Seat:     seat,
		Role:     catalog.RoleID(getEnv("ROLE", "")),
	}

	cfg := bridge.DefaultConfig()
	cfg.SnapshotURL = getEnv("SNAPSHOT_URL", "http://localhost:8080/rooms/state")
	cfg.StreamURL = getEnv("STREAM_URL", "ws://localhost:8080/ws/room")
	cfg.RoomID = getEnv("ROOM_ID", "dev-room")
	cfg.PlayerID = identity.PlayerID

	b := bridge.New(cfg, nil)
	gate := narration.NewGate()

	session := room.NewSession(room.SessionConfig{
		RoomID:     cfg.RoomID,
		Identity:   identity,
		Roles:      catalog.Default(),
		Sink:       b,
		Patches:    b.Patches(),
		Audio:      gate.Updates(),
		Rejections: b.Rejections(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go session.Run(ctx)
	go func() {
		if err := b.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("bridge stopped")
		}
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			log.Info().Msg("seat client shutting down")
			return
		case <-ticker.C:
			gc := session.Context()
			entry := log.Info().
				Str("bridge", b.Status().String()).
				Str("phase", string(gc.RoomStatus)).
				Str("turn", session.TurnState().String()).
				Bool("my_turn", gc.ImActioner)
			if line, ok := session.Facade().WolfStatusLine(gc); ok {
				entry = entry.Str("wolf_status", line)
			}
			if prompt, ok := session.Facade().ActionPrompt(gc); ok {
				entry = entry.Str("prompt", prompt)
			}
			entry.Msg("room view")
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
