package world

import (
	"errors"

	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/core/event"
	"github.com/mono-ball/server/internal/gfx"
	"go.uber.org/zap"
)

type lifecycleEntry struct {
	mapID    string
	name     string
	tilesets []gfx.TextureID
	sprites  []gfx.TextureID
}

// Lifecycle is the registry of currently materialized maps and the sole
// owner of map teardown. Every entity destruction on an eviction path runs
// collect-then-mutate: a read pass gathers ids, a second pass destroys,
// never a live iteration over the stores being mutated.
// Single-goroutine access only (game loop).
type Lifecycle struct {
	log      *zap.Logger
	world    *ecs.World
	cs       *Components
	recycler *ecs.Recycler
	tilesets *gfx.TilesetRegistry
	sprites  *gfx.SpriteCache
	tiles    *TileIndex
	bus      *event.Bus

	entries  map[int32]*lifecycleEntry
	current  int32 // runtime id, 0 = none
	previous int32
}

func NewLifecycle(
	ecsWorld *ecs.World,
	cs *Components,
	recycler *ecs.Recycler,
	tilesets *gfx.TilesetRegistry,
	sprites *gfx.SpriteCache,
	tiles *TileIndex,
	bus *event.Bus,
	log *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		log:      log,
		world:    ecsWorld,
		cs:       cs,
		recycler: recycler,
		tilesets: tilesets,
		sprites:  sprites,
		tiles:    tiles,
		bus:      bus,
		entries:  make(map[int32]*lifecycleEntry, 8),
	}
}

// RegisterMap records a materialized map's bookkeeping entry. Idempotent.
func (l *Lifecycle) RegisterMap(runtimeID int32, mapID, name string, tilesetIDs, spriteIDs []gfx.TextureID) {
	if _, ok := l.entries[runtimeID]; ok {
		return
	}
	l.entries[runtimeID] = &lifecycleEntry{
		mapID:    mapID,
		name:     name,
		tilesets: tilesetIDs,
		sprites:  spriteIDs,
	}
}

// Registered reports whether a runtime id has a bookkeeping entry.
func (l *Lifecycle) Registered(runtimeID int32) bool {
	_, ok := l.entries[runtimeID]
	return ok
}

// RegisteredCount returns the number of registered maps.
func (l *Lifecycle) RegisteredCount() int {
	return len(l.entries)
}

// RuntimeIDs returns all registered runtime ids.
func (l *Lifecycle) RuntimeIDs() []int32 {
	ids := make([]int32, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	return ids
}

// Current returns the current map's runtime id, 0 when none.
func (l *Lifecycle) Current() int32 { return l.current }

// TransitionToMap makes runtime id newID the current map. No-op when
// unchanged; otherwise the new and the outgoing current map are retained and
// every other registered map is unloaded.
func (l *Lifecycle) TransitionToMap(newID int32) {
	if newID == l.current {
		return
	}
	outgoing := l.current
	// collect first — UnloadMap mutates l.entries
	var evict []int32
	for id := range l.entries {
		if id != newID && id != outgoing {
			evict = append(evict, id)
		}
	}
	for _, id := range evict {
		l.UnloadMap(id)
	}
	l.previous = outgoing
	l.current = newID
	l.log.Debug("map transition",
		zap.Int32("current", l.current),
		zap.Int32("previous", l.previous))
}

// UnloadMap tears down one map instance: every entity tagged as belonging
// to it plus its root entity. Pool-eligible actors are stripped of their
// per-map state and released for reuse; everything else is destroyed.
// Tileset textures are only physically unloaded when no other registered
// map still references them.
func (l *Lifecycle) UnloadMap(runtimeID int32) {
	entry := l.entries[runtimeID]

	children := l.cs.BelongsTo.CollectIDs(func(b *BelongsToMap) bool {
		return b.RuntimeID == runtimeID
	})
	roots := l.cs.MapInfos.CollectIDs(func(info *MapInfo) bool {
		return info.RuntimeID == runtimeID
	})

	released, destroyed := 0, 0
	for _, child := range children {
		if l.releaseToPool(child) {
			released++
		} else {
			l.destroyEntity(child)
			destroyed++
		}
	}
	for _, root := range roots {
		l.destroyEntity(root)
	}

	l.tiles.RemoveStatic(runtimeID)

	if entry != nil {
		for _, tex := range entry.tilesets {
			if !l.tilesetReferencedElsewhere(tex, runtimeID) {
				l.tilesets.Unload(tex)
			}
		}
		l.sprites.UnloadForMap(runtimeID)
		delete(l.entries, runtimeID)
		event.Emit(l.bus, event.MapUnloaded{MapID: entry.mapID, RuntimeID: runtimeID})
	}
	if l.current == runtimeID {
		l.current = 0
	}
	if l.previous == runtimeID {
		l.previous = 0
	}

	l.log.Debug("map unloaded",
		zap.Int32("runtime_id", runtimeID),
		zap.Int("released", released),
		zap.Int("destroyed", destroyed))
}

// releaseToPool strips an actor's per-map state and parks it in the entity
// pool. Returns false when the entity is not pool-eligible or the release
// failed; the caller destroys it instead.
func (l *Lifecycle) releaseToPool(id ecs.EntityID) bool {
	if !l.recycler.Managed(id) {
		return false
	}

	// Per-map state must not survive into the next map the actor spawns in:
	// a stale frame cache renders mid-animation garbage, a stale tag makes
	// the next eviction tear the actor down with the wrong map, a stale
	// transform renders the actor at the old map's coordinates.
	if occ, ok := l.cs.Occupiers.Get(id); ok && occ.Placed {
		l.tiles.Vacate(occ.At, id)
	}
	l.cs.Occupiers.Remove(id)
	l.cs.Sprites.Remove(id)
	l.cs.BelongsTo.Remove(id)
	l.cs.Transforms.Remove(id)

	if err := l.recycler.Release(id); err != nil {
		if !errors.Is(err, ecs.ErrStaleEntity) {
			l.log.Warn("pool release failed, destroying entity",
				zap.Uint64("entity", uint64(id)), zap.Error(err))
		}
		return false
	}
	return true
}

// destroyEntity removes an entity immediately, vacating any tile it blocks.
func (l *Lifecycle) destroyEntity(id ecs.EntityID) {
	if occ, ok := l.cs.Occupiers.Get(id); ok && occ.Placed {
		l.tiles.Vacate(occ.At, id)
	}
	l.recycler.Forget(id)
	l.world.DestroyNow(id)
}

// tilesetReferencedElsewhere reports whether any other registered map also
// owns the texture.
func (l *Lifecycle) tilesetReferencedElsewhere(tex gfx.TextureID, exceptID int32) bool {
	for id, e := range l.entries {
		if id == exceptID {
			continue
		}
		for _, t := range e.tilesets {
			if t == tex {
				return true
			}
		}
	}
	return false
}

// ForceCleanup unloads everything except the current map and clears the
// sprite cache. Last-resort memory-pressure valve, not part of steady-state
// streaming.
func (l *Lifecycle) ForceCleanup() {
	var evict []int32
	for id := range l.entries {
		if id != l.current {
			evict = append(evict, id)
		}
	}
	for _, id := range evict {
		l.UnloadMap(id)
	}
	l.sprites.ClearCache()
	l.log.Warn("force cleanup", zap.Int("evicted", len(evict)))
}

// UnloadAllMaps destroys every map-related entity in the world, registered
// or not — maps that streamed in without bookkeeping are torn down all the
// same. Clears the registry, resets current/previous, invalidates the
// static tile cache, and clears the sprite cache. Run before warps so the
// destination load starts from a clean slate.
func (l *Lifecycle) UnloadAllMaps() {
	children := l.cs.BelongsTo.CollectIDs(func(*BelongsToMap) bool { return true })
	roots := l.cs.MapInfos.CollectIDs(func(*MapInfo) bool { return true })
	for _, id := range children {
		l.destroyEntity(id)
	}
	for _, id := range roots {
		l.destroyEntity(id)
	}

	// With no registered maps left, every owned tileset texture goes.
	unloaded := make(map[gfx.TextureID]struct{}, 8)
	for runtimeID, e := range l.entries {
		for _, tex := range e.tilesets {
			if _, done := unloaded[tex]; !done {
				l.tilesets.Unload(tex)
				unloaded[tex] = struct{}{}
			}
		}
		event.Emit(l.bus, event.MapUnloaded{MapID: e.mapID, RuntimeID: runtimeID})
	}
	clear(l.entries)
	l.current = 0
	l.previous = 0

	l.tiles.InvalidateStaticTiles()
	l.sprites.ClearCache()

	l.log.Info("all maps unloaded",
		zap.Int("entities", len(children)+len(roots)))
}
