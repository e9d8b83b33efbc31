package room

import (
	"github.com/moonhowl/werewolf/go/internal/catalog"
	"github.com/moonhowl/werewolf/go/internal/match"
)

// Identity is the local player's view of who they are. Seat 0 means
// unseated; an empty Role means not yet assigned. Both must resolve to
// "not the actioner" rather than failing.
type Identity struct {
	PlayerID string
	Seat     int
	Role     catalog.RoleID
}

// RoleCatalog is the slice of the external role catalog the core consumes.
type RoleCatalog interface {
	RoleSpec(id catalog.RoleID) (catalog.RoleSpec, bool)
	IsWolfRole(id catalog.RoleID) bool
	AllRoleIDs() []catalog.RoleID
}

// GameContext is the per-client derived view of the shared state. It is
// recomputed from inputs, never persisted, and handed read-only to the
// presentation layer.
type GameContext struct {
	RoomStatus        match.Phase
	CurrentActionRole catalog.RoleID
	CurrentSchema     *catalog.ActionSchema
	ImActioner        bool
	ActorSeatNumber   int
	ActorRole         catalog.RoleID
	AudioPlaying      bool
	FirstSwapSeat     int
}

type memoKey struct {
	hasState bool
	version  uint64
	playerID string
	seat     int
	role     catalog.RoleID
	audio    bool
}

// Resolver derives GameContext from shared state plus local identity and
// the audio-busy signal. Resolution is a pure function of its inputs; the
// resolver adds a single-entry memo keyed by input identity so repeated
// recomputation against an unchanged state is free and inspectable.
type Resolver struct {
	roles RoleCatalog

	memoValid bool
	memoKey   memoKey
	memoCtx   GameContext
	hits      uint64
	misses    uint64
}

// NewResolver creates a resolver over the given role catalog.
func NewResolver(roles RoleCatalog) *Resolver {
	return &Resolver{roles: roles}
}

// Resolve computes the GameContext for one client. It never errors and
// never panics: unseated or unassigned identities simply resolve with
// ImActioner false.
func (r *Resolver) Resolve(st *match.State, id Identity, audioBusy bool) GameContext {
	key := memoKey{playerID: id.PlayerID, seat: id.Seat, role: id.Role, audio: audioBusy}
	if st != nil {
		key.hasState = true
		key.version = st.Version
	}
	if r.memoValid && key == r.memoKey {
		r.hits++
		return r.memoCtx
	}
	r.misses++

	gc := resolveContext(st, id, audioBusy, r.roles)
	r.memoKey = key
	r.memoCtx = gc
	r.memoValid = true
	return gc
}

// MemoHits returns how many resolutions were served from the memo.
func (r *Resolver) MemoHits() uint64 { return r.hits }

// MemoMisses returns how many resolutions were computed fresh.
func (r *Resolver) MemoMisses() uint64 { return r.misses }

func resolveContext(st *match.State, id Identity, audioBusy bool, roles RoleCatalog) GameContext {
	gc := GameContext{
		ActorSeatNumber: id.Seat,
		ActorRole:       id.Role,
		AudioPlaying:    audioBusy,
	}
	if st == nil {
		return gc
	}
	gc.RoomStatus = st.Phase

	cursor := st.Cursor
	if cursor == nil {
		return gc
	}
	gc.CurrentActionRole = cursor.Role
	schema := schemaForCursor(cursor, roles)
	gc.CurrentSchema = &schema

	if id.Seat <= 0 {
		return gc
	}
	seat, ok := st.SeatByNumber(id.Seat)
	if !ok || !seat.Alive {
		return gc
	}
	// The roster's role assignment wins over a stale local identity.
	role := id.Role
	if seat.Role != "" {
		role = seat.Role
	}
	gc.ActorRole = role
	if role == "" {
		return gc
	}

	var active bool
	if cursor.Concurrent {
		active = sameActorClass(cursor.Role, role, roles)
	} else {
		active = cursor.Role == role && (cursor.Seat == 0 || cursor.Seat == id.Seat)
	}
	// Narration holds the action window shut even for the matching actor.
	gc.ImActioner = active && !audioBusy
	return gc
}

// schemaForCursor prefers the acting role's own night action schema and
// falls back to the kind's default shape for cursors that do not belong to
// a single role (e.g. the shared day vote).
func schemaForCursor(cursor *match.ActionCursor, roles RoleCatalog) catalog.ActionSchema {
	if roles != nil {
		if spec, ok := roles.RoleSpec(cursor.Role); ok && spec.NightAction != nil && spec.NightAction.Kind == cursor.Kind {
			return *spec.NightAction
		}
	}
	return catalog.SchemaFor(cursor.Kind)
}

// sameActorClass reports whether a role satisfies the cursor's actor class.
// The wolf family is the only class wider than a single role.
func sameActorClass(cursorRole, role catalog.RoleID, roles RoleCatalog) bool {
	if roles != nil && roles.IsWolfRole(cursorRole) {
		return roles.IsWolfRole(role)
	}
	return cursorRole == role
}
