package world

import (
	"time"

	"github.com/mono-ball/server/internal/core/ecs"
)

// StreamingState tracks which map instances surround the player: the
// current map, the loaded set, and each loaded map's world-pixel origin.
// While valid, Loaded always contains CurrentMap.
type StreamingState struct {
	CurrentMap string
	Loaded     map[string]struct{}
	Offsets    map[string]Vec2
}

func NewStreamingState() StreamingState {
	return StreamingState{
		Loaded:  make(map[string]struct{}, 8),
		Offsets: make(map[string]Vec2, 8),
	}
}

// Add records a newly loaded map and its origin.
func (s *StreamingState) Add(mapID string, origin Vec2) {
	s.Loaded[mapID] = struct{}{}
	s.Offsets[mapID] = origin
}

// Drop removes a map from the loaded set.
func (s *StreamingState) Drop(mapID string) {
	delete(s.Loaded, mapID)
	delete(s.Offsets, mapID)
}

// IsLoaded reports whether a map identifier is in the loaded set.
func (s *StreamingState) IsLoaded(mapID string) bool {
	_, ok := s.Loaded[mapID]
	return ok
}

// Reset replaces the whole streaming state with a single map at the given
// origin. Used after warps: only the destination exists, at offset zero.
func (s *StreamingState) Reset(mapID string, origin Vec2) {
	clear(s.Loaded)
	clear(s.Offsets)
	s.CurrentMap = mapID
	s.Add(mapID, origin)
}

// WarpRequest is a pending instantaneous map transition, deposited by an
// upstream trigger (warp tile, scroll, script) and executed by the warp
// system.
type WarpRequest struct {
	MapID     string
	TileX     int32
	TileY     int32
	Elevation uint8
}

// WarpState is the per-player warp record.
type WarpState struct {
	Pending   *WarpRequest
	IsWarping bool
	StartedAt time.Time
	LastDest  string // anti-retrigger guard; cleared when the player moves
}

// Camera follows the player in pixel space. Warps snap; normal movement
// glides.
type Camera struct {
	Pos Vec2
}

// SnapTo jumps the camera with no interpolation.
func (c *Camera) SnapTo(p Vec2) {
	c.Pos = p
}

// Follow moves the camera a fraction of the way toward the target each tick.
func (c *Camera) Follow(target Vec2, dt time.Duration) {
	// ~10 px/frame catch-up at 50ms ticks; enough that walking never
	// outruns the camera.
	step := int32(dt.Milliseconds() / 5)
	if step < 1 {
		step = 1
	}
	c.Pos.X += clampStep(target.X-c.Pos.X, step)
	c.Pos.Y += clampStep(target.Y-c.Pos.Y, step)
}

func clampStep(delta, step int32) int32 {
	if delta > step {
		return step
	}
	if delta < -step {
		return -step
	}
	return delta
}

// Player holds in-memory data for the avatar the world streams around.
// Accessed only from the game loop goroutine — no locks needed.
type Player struct {
	Entity ecs.EntityID
	Name   string

	Streaming StreamingState
	Warp      WarpState
	Camera    Camera

	Moving         bool // mid-step walk animation
	MovementLocked bool

	// Dirty flag for batch persistence. Set whenever persisted state
	// changes; PersistenceSystem saves dirty players and resets it.
	Dirty bool
}

func NewPlayer(entity ecs.EntityID, name string) *Player {
	return &Player{
		Entity:    entity,
		Name:      name,
		Streaming: NewStreamingState(),
	}
}

// RequestWarp deposits a pending warp unless one is already pending or
// executing, or the guard suppresses a retrigger at the landing tile.
func (p *Player) RequestWarp(mapID string, tileX, tileY int32, elevation uint8) bool {
	w := &p.Warp
	if w.IsWarping || w.Pending != nil {
		return false
	}
	if w.LastDest == mapID {
		return false
	}
	w.Pending = &WarpRequest{MapID: mapID, TileX: tileX, TileY: tileY, Elevation: elevation}
	p.MovementLocked = true
	return true
}

// ClearWarpGuard re-arms warp triggers; called when the player steps off
// the landing tile.
func (p *Player) ClearWarpGuard() {
	p.Warp.LastDest = ""
}
