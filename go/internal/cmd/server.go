package main

import (
	"fmt"
	"net/http"

	"github.com/moonhowl/werewolf/go/internal/host"
	"github.com/moonhowl/werewolf/go/internal/host/gateway"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(port string, handler *gateway.Handler, manager *host.Manager) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	handler.RegisterRoutes(mux)
	registerRoomRoutes(mux, manager)
	setupHealthCheck(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}

func registerRoomRoutes(mux *http.ServeMux, manager *host.Manager) {
	// Opens the first night turn. In production this is triggered by the
	// host player's client once all seats are taken.
	mux.HandleFunc("/rooms/begin-night", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roomID := r.URL.Query().Get("room_id")
		session, ok := manager.Get(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err := session.BeginNight(r.Context()); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to begin night")
			http.Error(w, "failed to begin night", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Re-emits the current state so stalled clients recover.
	mux.HandleFunc("/rooms/rebroadcast", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roomID := r.URL.Query().Get("room_id")
		session, ok := manager.Get(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err := session.Rebroadcast(r.Context()); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to rebroadcast")
			http.Error(w, "failed to rebroadcast", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
