package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/rs/zerolog/log"
)

// SnapshotSource serves the current state of a room for the initial fetch.
type SnapshotSource interface {
	Snapshot(roomID string) (match.Patch, bool)
}

// Handler exposes the hub over HTTP: the websocket upgrade, the snapshot
// endpoint the bridge hits on session start, and connection stats.
type Handler struct {
	hub       *Hub
	snapshots SnapshotSource
}

// NewHandler creates the gateway HTTP handler.
func NewHandler(hub *Hub, snapshots SnapshotSource) *Handler {
	return &Handler{hub: hub, snapshots: snapshots}
}

// HandleRoomConnection upgrades a seat client's websocket.
func (h *Handler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = "anonymous"
	}
	if err := h.hub.Upgrade(w, r, playerID, roomID); err != nil {
		log.Error().Err(err).
			Str("room_id", roomID).
			Str("player_id", playerID).
			Msg("failed to upgrade room connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// HandleRoomState serves the room's current snapshot.
func (h *Handler) HandleRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	patch, ok := h.snapshots.Snapshot(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(patch); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode snapshot")
	}
}

// HandleStats returns connection statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := h.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"active_rooms":      len(rooms),
		"room_connections":  rooms,
	})
}

// RegisterRoutes attaches the gateway endpoints to a mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
	mux.HandleFunc("/rooms/state", h.HandleRoomState)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}
