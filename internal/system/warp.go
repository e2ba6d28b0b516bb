package system

import (
	"time"

	"github.com/mono-ball/server/internal/core/event"
	coresys "github.com/mono-ball/server/internal/core/system"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/world"
	"go.uber.org/zap"
)

// warpPhase is the warp executor's polled state. The destination load runs
// in the background, but the state machine only advances here, on the game
// loop, one observable step per tick.
type warpPhase int

const (
	warpIdle warpPhase = iota
	warpLoading
	warpTeleporting
	warpDone
	warpFailed
	warpTimedOut
)

// WarpSystem executes pending warps: total unload, background destination
// load, teleport. One execution at a time per player; a request arriving
// mid-execution just waits for the next idle tick. A load exceeding the
// timeout is force-cancelled and its late result discarded.
// Phase 2 (Streaming), registered after StreamingSystem so a pending warp
// is observed no later than the tick it became visible.
type WarpSystem struct {
	log       *zap.Logger
	player    *world.Player
	cs        *world.Components
	mat       world.Materializer
	lifecycle *world.Lifecycle
	tiles     *world.TileIndex
	bus       *event.Bus
	timeout   time.Duration
	clock     func() time.Time

	busy    bool
	phase   warpPhase
	pending *world.PendingLoad
	target  world.WarpRequest
	prevMap string // current map before UnloadAllMaps, for failure recovery
}

func NewWarpSystem(
	player *world.Player,
	cs *world.Components,
	mat world.Materializer,
	lifecycle *world.Lifecycle,
	tiles *world.TileIndex,
	bus *event.Bus,
	timeout time.Duration,
	log *zap.Logger,
) *WarpSystem {
	return &WarpSystem{
		log:       log,
		player:    player,
		cs:        cs,
		mat:       mat,
		lifecycle: lifecycle,
		tiles:     tiles,
		bus:       bus,
		timeout:   timeout,
		clock:     time.Now,
	}
}

func (s *WarpSystem) Phase() coresys.Phase { return coresys.PhaseStreaming }

func (s *WarpSystem) Update(_ time.Duration) {
	switch s.phase {
	case warpIdle:
		s.tryStart()
	case warpLoading:
		s.pollLoad()
	}
}

// tryStart picks up a pending warp when no execution is running.
func (s *WarpSystem) tryStart() {
	wp := &s.player.Warp
	if wp.Pending == nil || s.busy {
		return
	}

	s.busy = true
	s.target = *wp.Pending
	wp.IsWarping = true
	wp.StartedAt = s.clock()
	s.prevMap = s.player.Streaming.CurrentMap

	// Unload before load: no duplicate instances of the destination, no
	// stale spatial-index entries surviving into the new world.
	s.lifecycle.UnloadAllMaps()
	s.pending = s.mat.LoadAsync(s.target.MapID)
	s.phase = warpLoading

	s.log.Info("warp started",
		zap.String("dest", s.target.MapID),
		zap.Int32("tile_x", s.target.TileX),
		zap.Int32("tile_y", s.target.TileY))
}

// pollLoad checks the background load each tick until it completes, fails,
// or exceeds the timeout.
func (s *WarpSystem) pollLoad() {
	if s.clock().Sub(s.player.Warp.StartedAt) > s.timeout {
		// Force-cancel. Dropping the handle discards whatever the
		// background goroutine delivers later.
		s.log.Warn("warp timed out", zap.String("dest", s.target.MapID),
			zap.Duration("timeout", s.timeout))
		s.abort("timeout", warpTimedOut)
		return
	}
	if !s.pending.Ready() {
		return
	}

	def, err := s.pending.Result()
	if err != nil || def == nil {
		s.log.Warn("warp destination load failed",
			zap.String("dest", s.target.MapID), zap.Error(err))
		s.abort("load failed", warpFailed)
		return
	}

	s.phase = warpTeleporting
	res, err := s.mat.LoadAtOffset(s.target.MapID, world.Vec2{})
	if err != nil {
		s.log.Warn("warp destination materialization failed",
			zap.String("dest", s.target.MapID), zap.Error(err))
		s.abort("materialize failed", warpFailed)
		return
	}
	s.teleport(res)
}

// teleport applies the arrival: position, elevation, streaming reset,
// camera snap, guard, and bookkeeping. Runs entirely within one tick.
func (s *WarpSystem) teleport(res *world.LoadResult) {
	p := s.player
	info := res.Info

	tr, ok := s.cs.Transforms.Get(p.Entity)
	if !ok {
		tr = &world.Transform{}
		s.cs.Transforms.Set(p.Entity, tr)
	}
	tr.TileX = s.target.TileX
	tr.TileY = s.target.TileY
	px := world.TileToPixel(world.Vec2{}, tr.TileX, tr.TileY, info.TileSize)
	tr.Px, tr.Py = px.X, px.Y
	tr.Elevation = data.DefaultElevation

	p.Streaming.Reset(info.MapID, world.Vec2{})
	p.Moving = false
	p.MovementLocked = false
	p.Camera.SnapTo(px)

	s.lifecycle.RegisterMap(info.RuntimeID, info.MapID, info.Name,
		res.TilesetTextures, res.SpriteTextures)
	s.lifecycle.TransitionToMap(info.RuntimeID)

	// 只記 log：目的座標是資料寫死的，擋住也照傳。
	if !s.tiles.Passable(px) {
		s.log.Warn("warp landed on an impassable tile",
			zap.String("map", info.MapID),
			zap.Int32("tile_x", tr.TileX),
			zap.Int32("tile_y", tr.TileY))
	}

	p.Warp.LastDest = info.MapID
	p.Warp.Pending = nil
	p.Warp.IsWarping = false
	p.Dirty = true

	event.Emit(s.bus, event.WarpCompleted{MapID: info.MapID, TileX: tr.TileX, TileY: tr.TileY})
	event.Emit(s.bus, event.PlayerEnteredMap{MapID: info.MapID, RuntimeID: info.RuntimeID})
	s.log.Info("warp completed",
		zap.String("map", info.MapID),
		zap.Int32("runtime_id", info.RuntimeID),
		zap.Int32("tile_x", tr.TileX),
		zap.Int32("tile_y", tr.TileY))

	s.phase = warpDone
	s.finish()
}

// abort resets the player to a movable state after a failure or timeout and
// tries to restore the pre-warp map, since UnloadAllMaps already ran.
func (s *WarpSystem) abort(reason string, terminal warpPhase) {
	wp := &s.player.Warp
	wp.Pending = nil
	wp.IsWarping = false
	s.player.MovementLocked = false
	s.player.Moving = false

	s.restorePreviousMap()

	event.Emit(s.bus, event.WarpFailed{MapID: s.target.MapID, Reason: reason})
	s.phase = terminal
	s.finish()
}

// restorePreviousMap rematerializes the map the player warped out of, at
// offset zero. Best effort: if this fails too the player is left movable in
// an empty world until a later warp succeeds.
func (s *WarpSystem) restorePreviousMap() {
	if s.prevMap == "" {
		return
	}
	res, err := s.mat.LoadAtOffset(s.prevMap, world.Vec2{})
	if err != nil {
		s.log.Warn("could not restore pre-warp map",
			zap.String("map", s.prevMap), zap.Error(err))
		return
	}
	info := res.Info
	s.lifecycle.RegisterMap(info.RuntimeID, info.MapID, info.Name,
		res.TilesetTextures, res.SpriteTextures)
	s.lifecycle.TransitionToMap(info.RuntimeID)
	s.player.Streaming.Reset(info.MapID, world.Vec2{})

	// The restored instance sits at offset zero; rebase pixels from the
	// player's (still valid) grid coordinates.
	if tr, ok := s.cs.Transforms.Get(s.player.Entity); ok {
		px := world.TileToPixel(world.Vec2{}, tr.TileX, tr.TileY, info.TileSize)
		tr.Px, tr.Py = px.X, px.Y
		s.player.Camera.SnapTo(px)
	}
	s.log.Info("restored pre-warp map", zap.String("map", s.prevMap))
}

// finish returns the machine to idle. The busy flag is cleared last, after
// every other effect of the execution, regardless of outcome.
func (s *WarpSystem) finish() {
	s.pending = nil
	s.prevMap = ""
	s.phase = warpIdle
	s.busy = false
}

// Executing reports whether a warp is currently running (tests and
// diagnostics).
func (s *WarpSystem) Executing() bool { return s.busy }
