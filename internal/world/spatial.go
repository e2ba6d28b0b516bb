package world

import (
	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/data"
)

// staticTiles caches one materialized map's tile attributes, positioned in
// world-pixel space.
type staticTiles struct {
	origin   Vec2
	dims     Dims
	bounds   Rect
	attrs    *data.TileAttrs
}

// TileIndex is the spatial index over loaded maps: a per-instance static
// tile cache plus a dynamic tile occupancy grid.
// Single-goroutine access only (game loop).
type TileIndex struct {
	static    map[int32]*staticTiles // map runtime id → tiles
	occupancy map[Vec2]map[ecs.EntityID]struct{}
}

func NewTileIndex() *TileIndex {
	return &TileIndex{
		static:    make(map[int32]*staticTiles, 8),
		occupancy: make(map[Vec2]map[ecs.EntityID]struct{}, 256),
	}
}

// AddStatic registers a materialized map's tile attributes at its world
// origin. attrs may be nil (flat walkable ground).
func (t *TileIndex) AddStatic(runtimeID int32, origin Vec2, dims Dims, attrs *data.TileAttrs) {
	t.static[runtimeID] = &staticTiles{
		origin: origin,
		dims:   dims,
		bounds: BoundsAt(origin, dims),
		attrs:  attrs,
	}
}

// RemoveStatic drops one map instance's static tiles.
func (t *TileIndex) RemoveStatic(runtimeID int32) {
	delete(t.static, runtimeID)
}

// InvalidateStaticTiles drops every cached static tile map. Called once per
// total unload; materialization repopulates the cache as maps load.
func (t *TileIndex) InvalidateStaticTiles() {
	clear(t.static)
}

// StaticCount returns the number of cached static maps.
func (t *TileIndex) StaticCount() int {
	return len(t.static)
}

// lookup finds the static map containing a world pixel. Loaded windows are
// at most a handful of maps, so a linear scan beats maintaining a grid.
func (t *TileIndex) lookup(p Vec2) *staticTiles {
	for _, st := range t.static {
		if st.bounds.Contains(p) {
			return st
		}
	}
	return nil
}

// Passable reports whether the tile under a world pixel allows movement.
// Pixels outside every loaded map are impassable.
func (t *TileIndex) Passable(p Vec2) bool {
	st := t.lookup(p)
	if st == nil {
		return false
	}
	tx, ty := PixelToTile(st.origin, p, st.dims.TileSize)
	if !st.attrs.Passable(tx, ty) {
		return false
	}
	key := TileToPixel(st.origin, tx, ty, st.dims.TileSize)
	for range t.occupancy[key] {
		return false
	}
	return true
}

// ElevationAt returns the elevation layer of the tile under a world pixel,
// or the default ground layer outside loaded maps.
func (t *TileIndex) ElevationAt(p Vec2) uint8 {
	st := t.lookup(p)
	if st == nil {
		return data.DefaultElevation
	}
	tx, ty := PixelToTile(st.origin, p, st.dims.TileSize)
	return st.attrs.Elevation(tx, ty)
}

// Occupy marks an entity as blocking the tile whose pixel origin is key.
func (t *TileIndex) Occupy(key Vec2, id ecs.EntityID) {
	cell := t.occupancy[key]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{}, 1)
		t.occupancy[key] = cell
	}
	cell[id] = struct{}{}
}

// Vacate removes an entity's block from a tile.
func (t *TileIndex) Vacate(key Vec2, id ecs.EntityID) {
	cell := t.occupancy[key]
	if cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(t.occupancy, key)
		}
	}
}

// OccupiedCount returns the number of blocked tiles (tests and diagnostics).
func (t *TileIndex) OccupiedCount() int {
	return len(t.occupancy)
}
