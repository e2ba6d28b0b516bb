package system

import (
	"time"

	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/core/event"
	coresys "github.com/mono-ball/server/internal/core/system"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/gfx"
	"github.com/mono-ball/server/internal/world"
	"go.uber.org/zap"
)

// StreamingSystem keeps the window of loaded maps around the player intact:
// every tick it loads missing direct neighbors of the current map, switches
// the current map when the player crosses a seam, and evicts maps that fell
// out of the window. Fully synchronous; a broken connection never aborts
// the tick, it just stays unloaded.
// Phase 2 (Streaming), registered before WarpSystem.
type StreamingSystem struct {
	log       *zap.Logger
	player    *world.Player
	ecsWorld  *ecs.World
	cs        *world.Components
	mat       world.Materializer
	lifecycle *world.Lifecycle
	tiles     *world.TileIndex
	sprites   *gfx.SpriteCache
	bus       *event.Bus
}

func NewStreamingSystem(
	player *world.Player,
	ecsWorld *ecs.World,
	cs *world.Components,
	mat world.Materializer,
	lifecycle *world.Lifecycle,
	tiles *world.TileIndex,
	sprites *gfx.SpriteCache,
	bus *event.Bus,
	log *zap.Logger,
) *StreamingSystem {
	return &StreamingSystem{
		log:       log,
		player:    player,
		ecsWorld:  ecsWorld,
		cs:        cs,
		mat:       mat,
		lifecycle: lifecycle,
		tiles:     tiles,
		sprites:   sprites,
		bus:       bus,
	}
}

func (s *StreamingSystem) Phase() coresys.Phase { return coresys.PhaseStreaming }

func (s *StreamingSystem) Update(dt time.Duration) {
	// One scan of the MapInfo store per tick; every lookup below hits the
	// cache instead of the stores.
	cache := world.BuildMapCache(s.cs)
	s.syncLoadedSet(cache)

	cur := cache[s.player.Streaming.CurrentMap]
	if cur == nil {
		// No materialized current map (mid-warp, or nothing loaded yet).
		return
	}

	s.loadMissingNeighbors(cur, cache)
	cur = s.switchCurrentMap(cur, cache)
	s.evictDistant(cur, cache)

	if tr, ok := s.cs.Transforms.Get(s.player.Entity); ok {
		s.player.Camera.Follow(world.Vec2{X: tr.Px, Y: tr.Py}, dt)
	}
}

// syncLoadedSet drops loaded-set entries whose map instance no longer
// exists (torn down by a lifecycle transition since last tick).
func (s *StreamingSystem) syncLoadedSet(cache map[string]*world.LoadContext) {
	var gone []string
	for id := range s.player.Streaming.Loaded {
		if cache[id] == nil {
			gone = append(gone, id)
		}
	}
	for _, id := range gone {
		s.player.Streaming.Drop(id)
	}
}

// loadMissingNeighbors materializes every connected neighbor of the current
// map that is not loaded yet, positioned so the seams align pixel-exactly.
func (s *StreamingSystem) loadMissingNeighbors(cur *world.LoadContext, cache map[string]*world.LoadContext) {
	srcDims := cur.Info.Dims()
	for dir := data.Direction(0); dir < data.DirCount; dir++ {
		conn := cur.Connection(dir)
		if conn == nil || s.player.Streaming.IsLoaded(conn.MapID) {
			continue
		}

		adjDims, err := s.mat.Dimensions(conn.MapID)
		if err != nil {
			// Definition lookup failed; the source's own dimensions keep
			// the offset math defined while the load below decides whether
			// the map exists at all.
			s.log.Debug("neighbor dimensions unavailable, using source dims",
				zap.String("map", conn.MapID), zap.Error(err))
			adjDims = srcDims
		}

		origin := world.AdjacentOrigin(dir, conn.Offset, srcDims, adjDims, cur.Bounds.Origin)
		res, err := s.mat.LoadAtOffset(conn.MapID, origin)
		if err != nil {
			s.log.Warn("neighbor load failed, skipping connection",
				zap.String("from", cur.Info.MapID),
				zap.String("map", conn.MapID),
				zap.String("dir", dir.String()),
				zap.Error(err))
			continue
		}

		s.lifecycle.RegisterMap(res.Info.RuntimeID, res.Info.MapID, res.Info.Name,
			res.TilesetTextures, res.SpriteTextures)
		s.player.Streaming.Add(conn.MapID, origin)
		cache[conn.MapID] = world.ContextFor(s.cs, res.Root)
	}
}

// switchCurrentMap checks whether the player's pixel position left the
// current map's bounds and, if another loaded map contains it, makes that
// map current and recomputes the player's grid coordinates against the new
// origin.
func (s *StreamingSystem) switchCurrentMap(cur *world.LoadContext, cache map[string]*world.LoadContext) *world.LoadContext {
	tr, ok := s.cs.Transforms.Get(s.player.Entity)
	if !ok {
		return cur
	}
	pos := world.Vec2{X: tr.Px, Y: tr.Py}
	if cur.Bounds.Contains(pos) {
		return cur
	}

	for id, ctx := range cache {
		if id == cur.Info.MapID || !ctx.Bounds.Contains(pos) {
			continue
		}
		tr.TileX, tr.TileY = world.PixelToTile(ctx.Bounds.Origin, pos, ctx.Info.TileSize)
		s.player.Streaming.CurrentMap = id
		s.player.ClearWarpGuard()
		s.player.Dirty = true
		s.lifecycle.TransitionToMap(ctx.Info.RuntimeID)
		event.Emit(s.bus, event.PlayerEnteredMap{MapID: id, RuntimeID: ctx.Info.RuntimeID})
		s.log.Info("crossed map seam",
			zap.String("from", cur.Info.MapID),
			zap.String("to", id),
			zap.Int32("tile_x", tr.TileX),
			zap.Int32("tile_y", tr.TileY))
		return ctx
	}
	// Outside every loaded map (clipping through a seam gap); keep the old
	// current map and let the next tick sort it out.
	return cur
}

// evictDistant unloads every loaded map that is neither the current map nor
// one of its direct neighbors.
func (s *StreamingSystem) evictDistant(cur *world.LoadContext, cache map[string]*world.LoadContext) {
	keep := map[string]struct{}{cur.Info.MapID: {}}
	for dir := data.Direction(0); dir < data.DirCount; dir++ {
		if conn := cur.Connection(dir); conn != nil {
			keep[conn.MapID] = struct{}{}
		}
	}

	// collect first; unloading mutates the stores the cache was built from
	var evict []*world.LoadContext
	for id, ctx := range cache {
		if _, ok := keep[id]; !ok {
			evict = append(evict, ctx)
		}
	}

	for _, ctx := range evict {
		rid := ctx.Info.RuntimeID
		switch {
		case s.lifecycle.Registered(rid):
			s.lifecycle.UnloadMap(rid)
		case !s.ecsWorld.Alive(ctx.Root):
			// Already torn down this tick (TransitionToMap evicted it before
			// the cache was rebuilt); only the bookkeeping is left.
		default:
			// Streamed in without bookkeeping; destroy directly rather than
			// leak a whole map instance.
			s.log.Warn("evicting unregistered map by direct destruction",
				zap.String("map", ctx.Info.MapID), zap.Int32("runtime_id", rid))
			s.destroyUnregistered(rid, ctx.Root)
		}
		s.player.Streaming.Drop(ctx.Info.MapID)
		delete(cache, ctx.Info.MapID)
	}
}

func (s *StreamingSystem) destroyUnregistered(runtimeID int32, root ecs.EntityID) {
	children := s.cs.BelongsTo.CollectIDs(func(b *world.BelongsToMap) bool {
		return b.RuntimeID == runtimeID
	})
	for _, id := range children {
		if occ, ok := s.cs.Occupiers.Get(id); ok && occ.Placed {
			s.tiles.Vacate(occ.At, id)
		}
		s.ecsWorld.DestroyNow(id)
	}
	s.tiles.RemoveStatic(runtimeID)
	s.sprites.UnloadForMap(runtimeID)
	s.ecsWorld.DestroyNow(root)
}
