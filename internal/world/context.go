package world

import (
	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/data"
)

// LoadContext bundles one materialized map's root entity handle, its info,
// and its world-pixel bounds. Transient: rebuilt from component stores each
// streaming tick, never held across ticks.
type LoadContext struct {
	Root   ecs.EntityID
	Info   *MapInfo
	Bounds Rect
	conns  *Connections
}

// Connection returns the map's seam record in a direction, or nil.
func (c *LoadContext) Connection(dir data.Direction) *data.ConnectionDef {
	if c.conns == nil {
		return nil
	}
	return c.conns.Get(dir)
}

// ContextFor builds the load context of a single materialized map from its
// root entity, or nil when the root is missing its components.
func ContextFor(cs *Components, root ecs.EntityID) *LoadContext {
	info, ok := cs.MapInfos.Get(root)
	if !ok {
		return nil
	}
	placement, ok := cs.Placements.Get(root)
	if !ok {
		return nil
	}
	ctx := &LoadContext{
		Root:   root,
		Info:   info,
		Bounds: BoundsAt(placement.Origin, info.Dims()),
	}
	if conns, ok := cs.Connections.Get(root); ok {
		ctx.conns = conns
	}
	return ctx
}

// BuildMapCache scans the MapInfo store once and returns identifier →
// load context for every materialized map. One scan per tick instead of one
// per lookup.
func BuildMapCache(cs *Components) map[string]*LoadContext {
	cache := make(map[string]*LoadContext, cs.MapInfos.Len())
	cs.MapInfos.Each(func(id ecs.EntityID, info *MapInfo) {
		placement, ok := cs.Placements.Get(id)
		if !ok {
			return // root without placement is mid-teardown, skip
		}
		ctx := &LoadContext{
			Root:   id,
			Info:   info,
			Bounds: BoundsAt(placement.Origin, info.Dims()),
		}
		if conns, ok := cs.Connections.Get(id); ok {
			ctx.conns = conns
		}
		cache[info.MapID] = ctx
	})
	return cache
}
