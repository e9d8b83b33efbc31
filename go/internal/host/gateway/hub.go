// Package gateway is the host's transport edge: it fans applied patches
// out to the seat clients of each room over websockets and feeds incoming
// intents to the authoritative session.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/rs/zerolog/log"
)

// IntentHandler absorbs one intent into the authoritative state.
type IntentHandler interface {
	ApplyIntent(ctx context.Context, intent wire.Intent) error
}

// ConnectionConfig holds websocket tuning for the hub.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

type broadcast struct {
	roomID string
	frame  []byte
}

// Hub manages the websocket connections of every room on this host.
type Hub struct {
	roomConns map[string]map[*Conn]bool
	mu        sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	intents  IntentHandler

	broadcastCh chan broadcast
}

// Conn is one seat client's websocket connection.
type Conn struct {
	ID       string
	PlayerID string
	RoomID   string
	ws       *websocket.Conn
	send     chan []byte
	hub      *Hub

	connectedAt time.Time
}

// NewHub creates a hub that hands intents to the given handler.
func NewHub(config ConnectionConfig, intents IntentHandler) *Hub {
	return &Hub{
		roomConns: make(map[string]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		intents:     intents,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start processes broadcasts until the context is cancelled.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("gateway hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return
		case msg := <-h.broadcastCh:
			h.handleBroadcast(msg)
		}
	}
}

// PublishPatch makes the hub a host.PatchPublisher: applied patches are
// framed once and broadcast to the room's connections.
func (h *Hub) PublishPatch(ctx context.Context, patch match.Patch) error {
	frame, err := wire.EncodePatch(patch)
	if err != nil {
		return err
	}
	select {
	case h.broadcastCh <- broadcast{roomID: patch.RoomID, frame: frame}:
		return nil
	default:
		log.Warn().Str("room_id", patch.RoomID).Msg("broadcast channel full, dropping patch")
		return fmt.Errorf("broadcast channel full for room %s", patch.RoomID)
	}
}

// Upgrade turns an HTTP request into a managed room connection.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, playerID, roomID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}
	conn := &Conn{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		RoomID:      roomID,
		ws:          ws,
		send:        make(chan []byte, 256),
		hub:         h,
		connectedAt: time.Now(),
	}
	h.register(conn)
	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", playerID).
		Str("room_id", roomID).
		Msg("room connection established")
	return nil
}

func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomConns[conn.RoomID] == nil {
		h.roomConns[conn.RoomID] = make(map[*Conn]bool)
	}
	h.roomConns[conn.RoomID][conn] = true
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, exists := h.roomConns[conn.RoomID]; exists {
		if _, exists := conns[conn]; exists {
			delete(conns, conn)
			close(conn.send)
			if len(conns) == 0 {
				delete(h.roomConns, conn.RoomID)
			}
			log.Info().
				Str("connection_id", conn.ID).
				Str("room_id", conn.RoomID).
				Msg("room connection closed")
		}
	}
}

func (h *Hub) handleBroadcast(msg broadcast) {
	h.mu.RLock()
	conns := h.roomConns[msg.roomID]
	targets := make([]*Conn, 0, len(conns))
	for conn := range conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if !h.trySend(conn, msg.frame) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			h.unregister(conn)
			conn.ws.Close()
		}
	}
}

// trySend queues a frame for one connection. Membership is checked under
// the lock because unregister closes the send channel; a frame for an
// already-unregistered connection is silently dropped. It reports false
// only when the connection is live but its buffer is full.
func (h *Hub) trySend(conn *Conn, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.roomConns[conn.RoomID][conn] {
		return true
	}
	select {
	case conn.send <- frame:
		return true
	default:
		return false
	}
}

// Stats returns connection counts per room.
func (h *Hub) Stats() (total int, rooms map[string]int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms = make(map[string]int, len(h.roomConns))
	for roomID, conns := range h.roomConns {
		rooms[roomID] = len(conns)
		total += len(conns)
	}
	return total, rooms
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.hub.unregister(c)
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		c.handleFrame(raw)
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}

// handleFrame routes one client frame. Intents the session rejects are
// answered with a rejection frame on the same connection; the state is
// never mutated by a rejected intent.
func (c *Conn) handleFrame(raw []byte) {
	env, err := wire.Decode(raw)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("undecodable client frame")
		return
	}
	if env.Type != wire.TypeIntent {
		log.Debug().Str("type", string(env.Type)).Msg("ignoring unexpected client frame type")
		return
	}
	var intent wire.Intent
	if err := json.Unmarshal(env.Data, &intent); err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("undecodable intent payload")
		return
	}
	if intent.RoomID == "" {
		intent.RoomID = c.RoomID
	}
	if c.hub.intents == nil {
		return
	}
	if err := c.hub.intents.ApplyIntent(context.Background(), intent); err != nil {
		log.Info().Err(err).
			Str("intent_id", intent.ClientIntentID.String()).
			Int("seat", intent.ActorSeat).
			Msg("intent rejected")
		if frame, encErr := wire.EncodeRejected(wire.Rejected{
			ClientIntentID: intent.ClientIntentID,
			Reason:         err.Error(),
		}); encErr == nil {
			c.hub.trySend(c, frame)
		}
	}
}
