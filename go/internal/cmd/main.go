package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/host"
	"github.com/moonhowl/werewolf/go/internal/host/gateway"
	"github.com/moonhowl/werewolf/go/internal/host/journal"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	roles := catalog.Default()
	if cfg.Catalog.Path != "" {
		roles, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("failed to load role catalog")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := host.NewManager()
	hub := gateway.NewHub(gateway.DefaultConnectionConfig(), manager)
	go hub.Start(ctx)

	publishers := host.FanoutPublisher{hub}

	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to NATS")
		}
		defer nc.Close()
		js, err := jetstream.New(nc)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create JetStream context")
		}
		publishers = append(publishers, host.NewNATSPublisher(js, cfg.NATS.SubjectPrefix))

		consumerCfg := gateway.DefaultPatchConsumerConfig()
		consumerCfg.URL = cfg.NATS.URL
		consumerCfg.StreamName = cfg.NATS.Stream
		consumer, err := gateway.NewPatchConsumer(hub, consumerCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create patch consumer")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("patch consumer failed")
			}
		}()
	}

	var store host.Journal
	if cfg.Database.Enabled {
		dsn := cfg.Database.DSN
		if dsn == "" {
			dsn = journal.DSNFromEnv()
		}
		pool, err := journal.Connect(ctx, dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect journal database")
		}
		defer pool.Close()
		store = journal.NewRepository(pool)
	}

	for _, rc := range cfg.Rooms {
		seats := make([]match.Seat, 0, len(rc.Seats))
		for _, sc := range rc.Seats {
			seats = append(seats, match.Seat{
				Number:   sc.Number,
				PlayerID: sc.PlayerID,
				Role:     catalog.RoleID(sc.Role),
				Alive:    true,
			})
		}
		session := host.NewSession(host.SessionConfig{
			RoomID:    rc.ID,
			Seats:     seats,
			Catalog:   roles,
			Publisher: publishers,
			Journal:   store,
			Seed:      rc.Seed,
		})
		manager.Add(session)
		log.Info().Str("room_id", rc.ID).Int("seats", len(seats)).Msg("room session created")
	}

	handler := gateway.NewHandler(hub, manager)
	server := setupServer(cfg.Server.Port, handler, manager)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("host server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	log.Info().Msg("host server shutdown complete")
}
