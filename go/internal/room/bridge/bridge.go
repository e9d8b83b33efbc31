// Package bridge is the room init / sync bridge: it fetches the initial
// match snapshot, subscribes to the ordered patch stream, discards anything
// that is not strictly newer than what it already delivered, and is the
// sole writer of intents toward the host.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/moonhowl/werewolf/go/internal/wire"
	"github.com/rs/zerolog/log"
)

// Status is the bridge's connectivity state, surfaced to presentation.
type Status int32

const (
	StatusIdle Status = iota
	StatusLoading
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Config holds connection settings for one room subscription.
type Config struct {
	// SnapshotURL serves the initial state, e.g. http://host/rooms/state.
	SnapshotURL string
	// StreamURL is the websocket endpoint, e.g. ws://host/ws/room.
	StreamURL string
	RoomID    string
	PlayerID  string

	DialTimeout      time.Duration
	WriteTimeout     time.Duration
	PongTimeout      time.Duration
	PingInterval     time.Duration
	ReconnectWait    time.Duration
	MaxReconnectWait time.Duration
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		DialTimeout:      10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		ReconnectWait:    time.Second,
		MaxReconnectWait: 30 * time.Second,
	}
}

// Bridge owns the websocket subscription for one seat in one room.
type Bridge struct {
	cfg    Config
	clock  clockwork.Clock
	httpc  *http.Client
	status atomic.Int32

	mu          sync.Mutex
	conn        *websocket.Conn
	lastVersion uint64

	patchCh  chan match.Patch
	rejectCh chan wire.Rejected
}

// New creates a bridge. A nil clock means the real clock.
func New(cfg Config, clock clockwork.Clock) *Bridge {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Bridge{
		cfg:      cfg,
		clock:    clock,
		httpc:    &http.Client{Timeout: cfg.DialTimeout},
		patchCh:  make(chan match.Patch, 16),
		rejectCh: make(chan wire.Rejected, 16),
	}
}

// Patches is the ordered, deduplicated patch stream for the session loop.
func (b *Bridge) Patches() <-chan match.Patch { return b.patchCh }

// Rejections is the stream of host rejection frames. The session loop
// consumes it to release a turn whose in-flight intent was refused.
func (b *Bridge) Rejections() <-chan wire.Rejected { return b.rejectCh }

// Status returns the current connectivity state.
func (b *Bridge) Status() Status { return Status(b.status.Load()) }

// Start fetches the snapshot, then maintains the subscription with
// exponential backoff until the context is cancelled. It blocks.
func (b *Bridge) Start(ctx context.Context) error {
	b.status.Store(int32(StatusLoading))
	snap, err := b.fetchSnapshot(ctx)
	if err != nil {
		b.status.Store(int32(StatusDisconnected))
		return fmt.Errorf("fetch initial snapshot: %w", err)
	}
	b.deliver(snap)

	wait := b.cfg.ReconnectWait
	for {
		if err := b.runConn(ctx); err != nil {
			if ctx.Err() != nil {
				b.status.Store(int32(StatusDisconnected))
				return ctx.Err()
			}
			// SyncDisconnect: surface the flag, keep the last-known
			// context frozen, retry with backoff.
			b.status.Store(int32(StatusReconnecting))
			log.Error().Err(err).
				Str("room_id", b.cfg.RoomID).
				Dur("retry_in", wait).
				Msg("patch subscription lost")
			select {
			case <-ctx.Done():
				b.status.Store(int32(StatusDisconnected))
				return ctx.Err()
			case <-b.clock.After(wait):
			}
			wait *= 2
			if wait > b.cfg.MaxReconnectWait {
				wait = b.cfg.MaxReconnectWait
			}
			continue
		}
		wait = b.cfg.ReconnectWait
	}
}

// Publish sends one intent to the host. It is safe for concurrent use with
// the read loop.
func (b *Bridge) Publish(ctx context.Context, intent wire.Intent) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("publish intent %s: not connected", intent.ClientIntentID)
	}
	frame, err := wire.EncodeIntent(intent)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("publish intent %s: not connected", intent.ClientIntentID)
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
	if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write intent: %w", err)
	}
	return nil
}

func (b *Bridge) fetchSnapshot(ctx context.Context) (match.Patch, error) {
	url := fmt.Sprintf("%s?room_id=%s", b.cfg.SnapshotURL, b.cfg.RoomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return match.Patch{}, err
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return match.Patch{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return match.Patch{}, fmt.Errorf("snapshot request returned %d", resp.StatusCode)
	}
	var snap match.Patch
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return match.Patch{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// runConn dials once and pumps patches until the connection dies.
func (b *Bridge) runConn(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.DialTimeout}
	url := fmt.Sprintf("%s?room_id=%s&player_id=%s", b.cfg.StreamURL, b.cfg.RoomID, b.cfg.PlayerID)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	b.status.Store(int32(StatusConnected))
	log.Info().Str("room_id", b.cfg.RoomID).Msg("patch stream connected")

	defer func() {
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		conn.Close()
	}()

	stop := make(chan struct{})
	defer close(stop)
	go b.pingLoop(ctx, conn, stop)

	_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.cfg.PongTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read patch stream: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongTimeout))
		b.handleFrame(raw)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (b *Bridge) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			b.mu.Unlock()
			if err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func (b *Bridge) handleFrame(raw []byte) {
	env, err := wire.Decode(raw)
	if err != nil {
		log.Error().Err(err).Msg("undecodable frame on patch stream")
		return
	}
	switch env.Type {
	case wire.TypePatch:
		var p match.Patch
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Error().Err(err).Msg("undecodable patch payload")
			return
		}
		b.deliver(p)
	case wire.TypeRejected:
		var rej wire.Rejected
		if err := json.Unmarshal(env.Data, &rej); err != nil {
			log.Error().Err(err).Msg("undecodable rejection payload")
			return
		}
		select {
		case b.rejectCh <- rej:
		default:
			log.Warn().
				Str("intent_id", rej.ClientIntentID.String()).
				Msg("rejection channel full, dropping frame")
		}
	default:
		log.Debug().Str("type", string(env.Type)).Msg("ignoring unknown frame type")
	}
}

// deliver applies the version gate and forwards the patch to the session.
// The gate tracks the last version actually handed over: a patch dropped
// on a full channel stays unseen, so a rebroadcast of the same version
// still passes.
func (b *Bridge) deliver(p match.Patch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.Version <= b.lastVersion {
		log.Debug().
			Uint64("patch_version", p.Version).
			Uint64("last_version", b.lastVersion).
			Msg("discarding stale or duplicate patch")
		return
	}
	select {
	case b.patchCh <- p:
		b.lastVersion = p.Version
	default:
		log.Warn().Uint64("version", p.Version).Msg("patch channel full, dropping patch")
	}
}
