package world

import (
	"time"

	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/gfx"
)

// MapInfo sits on a map instance's root entity. RuntimeID is assigned per
// materialization — two instances of the same definition get distinct ids.
type MapInfo struct {
	RuntimeID int32
	MapID     string
	Name      string
	Width     int32 // tiles
	Height    int32 // tiles
	TileSize  int32 // pixels
}

// Dims returns the map's static size for offset math.
func (m *MapInfo) Dims() Dims {
	return Dims{Width: m.Width, Height: m.Height, TileSize: m.TileSize}
}

// Placement sits on a map root entity: where the instance lives in
// world-pixel space.
type Placement struct {
	Origin Vec2
}

// Connections sits on a map root entity: one optional seam record per
// cardinal direction, pointing into the static definition.
type Connections struct {
	Dirs [data.DirCount]*data.ConnectionDef
}

// Get returns the connection in a direction, or nil.
func (c *Connections) Get(dir data.Direction) *data.ConnectionDef {
	if dir < 0 || dir >= data.DirCount {
		return nil
	}
	return c.Dirs[dir]
}

// BelongsToMap is the back-reference every child entity carries: the runtime
// id of the map instance it was spawned with. Eviction groups by this field.
type BelongsToMap struct {
	RuntimeID int32
}

// Actor is the per-map spawned object (NPC, sign, ...). Template data only;
// safe to retain across pool reuse.
type Actor struct {
	Kind  string
	GfxID int32
}

// Transform is an entity's position: grid coordinates plus derived pixels.
type Transform struct {
	TileX, TileY int32
	Px, Py       int32 // world pixels
	Elevation    uint8
}

// SpriteAnim is the per-entity animation frame cache. Position-derived, so
// it must be stripped before an entity is released for reuse — a recycled
// actor must not come back mid-stride in a map that no longer exists.
type SpriteAnim struct {
	Sheet   gfx.TextureID
	Frame   int32
	Elapsed time.Duration
}

// TileOccupier is an entity's registration in the static tile index:
// whether it blocks its tile, and where that registration currently is.
// Stripped (and vacated) before pool release.
type TileOccupier struct {
	Solid  bool
	At     Vec2 // world pixel of occupied tile origin
	Placed bool
}

// Components bundles every component store the streamed-world core uses.
// All stores are registered with the ECS registry so destroy paths clear
// them in bulk.
type Components struct {
	MapInfos    *ecs.PtrComponentStore[MapInfo]
	Placements  *ecs.PtrComponentStore[Placement]
	Connections *ecs.PtrComponentStore[Connections]
	BelongsTo   *ecs.PtrComponentStore[BelongsToMap]
	Actors      *ecs.PtrComponentStore[Actor]
	Transforms  *ecs.PtrComponentStore[Transform]
	Sprites     *ecs.PtrComponentStore[SpriteAnim]
	Occupiers   *ecs.PtrComponentStore[TileOccupier]
}

func NewComponents(reg *ecs.Registry) *Components {
	c := &Components{
		MapInfos:    ecs.NewPtrComponentStore[MapInfo](),
		Placements:  ecs.NewPtrComponentStore[Placement](),
		Connections: ecs.NewPtrComponentStore[Connections](),
		BelongsTo:   ecs.NewPtrComponentStore[BelongsToMap](),
		Actors:      ecs.NewPtrComponentStore[Actor](),
		Transforms:  ecs.NewPtrComponentStore[Transform](),
		Sprites:     ecs.NewPtrComponentStore[SpriteAnim](),
		Occupiers:   ecs.NewPtrComponentStore[TileOccupier](),
	}
	reg.Register(c.MapInfos)
	reg.Register(c.Placements)
	reg.Register(c.Connections)
	reg.Register(c.BelongsTo)
	reg.Register(c.Actors)
	reg.Register(c.Transforms)
	reg.Register(c.Sprites)
	reg.Register(c.Occupiers)
	return c
}
