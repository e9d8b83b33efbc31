// Package journal persists room snapshots and the action log so a
// restarted host can rebroadcast the latest state instead of improvising.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moonhowl/werewolf/go/internal/match"
	"github.com/rs/zerolog/log"
)

// DSNFromEnv assembles a Postgres URL from DB_* environment variables,
// for deployments that configure the journal piecewise instead of with a
// single DATABASE_URL.
func DSNFromEnv() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		envOr("DB_USER", "postgres"),
		envOr("DB_PASSWORD", "postgres"),
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_NAME", "werewolf"),
		envOr("DB_SSLMODE", "disable"),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Connect opens a pgx pool and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("journal database connected")
	return pool, nil
}

// Repository is the pgx-backed journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository over an existing pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot upserts the room's latest state. Older versions never
// overwrite newer ones, so replayed saves are harmless.
func (r *Repository) SaveSnapshot(ctx context.Context, patch match.Patch) error {
	state, err := json.Marshal(patch.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	const query = `
		INSERT INTO room_snapshots (room_id, version, state, emitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id) DO UPDATE
		SET version = EXCLUDED.version,
		    state = EXCLUDED.state,
		    emitted_at = EXCLUDED.emitted_at
		WHERE room_snapshots.version < EXCLUDED.version`
	if _, err := r.pool.Exec(ctx, query, patch.RoomID, patch.Version, state, patch.EmittedAt); err != nil {
		return fmt.Errorf("save snapshot for room %s: %w", patch.RoomID, err)
	}
	return nil
}

// AppendAction records one absorbed action.
func (r *Repository) AppendAction(ctx context.Context, roomID string, rec match.ActionRecord) error {
	const query = `
		INSERT INTO room_actions (room_id, round, seat, kind, payload, intent_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, round, seat, kind) DO UPDATE
		SET payload = EXCLUDED.payload,
		    intent_id = EXCLUDED.intent_id,
		    recorded_at = EXCLUDED.recorded_at`
	if _, err := r.pool.Exec(ctx, query,
		roomID, rec.Round, rec.Seat, string(rec.Kind), []byte(rec.Payload), rec.IntentID, rec.RecordedAt); err != nil {
		return fmt.Errorf("append action for room %s: %w", roomID, err)
	}
	return nil
}

// LatestSnapshot loads the newest persisted state for a room. It returns
// (nil, nil) when the room has never been journaled.
func (r *Repository) LatestSnapshot(ctx context.Context, roomID string) (*match.Patch, error) {
	const query = `
		SELECT version, state, emitted_at
		FROM room_snapshots
		WHERE room_id = $1`
	var patch match.Patch
	var state []byte
	row := r.pool.QueryRow(ctx, query, roomID)
	if err := row.Scan(&patch.Version, &state, &patch.EmittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot for room %s: %w", roomID, err)
	}
	if err := json.Unmarshal(state, &patch.State); err != nil {
		return nil, fmt.Errorf("decode snapshot for room %s: %w", roomID, err)
	}
	patch.RoomID = roomID
	return &patch, nil
}
