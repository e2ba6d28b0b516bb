package world

import (
	"fmt"

	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/core/event"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/gfx"
	"go.uber.org/zap"
)

// runtime ids are assigned on the game loop only; no atomics needed.
var runtimeIDCounter int32

func nextRuntimeID() int32 {
	runtimeIDCounter++
	return runtimeIDCounter
}

// LoadResult describes a freshly materialized map instance: everything the
// lifecycle manager needs to register it.
type LoadResult struct {
	Root            ecs.EntityID
	Info            *MapInfo
	TilesetTextures []gfx.TextureID
	SpriteTextures  []gfx.TextureID
}

// PendingLoad is the polled handle for an asynchronous full map load. The
// background goroutine only fetches the static definition (the blocking
// part); entity materialization happens on the game loop when the caller
// observes Ready and finishes the load there. No world state is touched off
// the loop.
type PendingLoad struct {
	MapID string
	done  chan struct{}
	def   *data.MapDef
	err   error
}

// Ready reports whether the background fetch has finished.
func (p *PendingLoad) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the fetched definition. Only valid after Ready.
func (p *PendingLoad) Result() (*data.MapDef, error) {
	return p.def, p.err
}

// Materializer instantiates map definitions into live world entities.
type Materializer interface {
	// LoadAtOffset synchronously materializes a map at a world-pixel origin.
	LoadAtOffset(mapID string, origin Vec2) (*LoadResult, error)
	// Dimensions returns a map's static size without materializing it.
	Dimensions(mapID string) (Dims, error)
	// LoadAsync starts a background definition fetch for a warp's full load.
	LoadAsync(mapID string) *PendingLoad
}

// TableMaterializer materializes maps from the YAML map table.
type TableMaterializer struct {
	table    *data.MapTable
	world    *ecs.World
	cs       *Components
	recycler *ecs.Recycler
	tilesets *gfx.TilesetRegistry
	sprites  *gfx.SpriteCache
	tiles    *TileIndex
	bus      *event.Bus
	log      *zap.Logger
}

func NewTableMaterializer(
	table *data.MapTable,
	ecsWorld *ecs.World,
	cs *Components,
	recycler *ecs.Recycler,
	tilesets *gfx.TilesetRegistry,
	sprites *gfx.SpriteCache,
	tiles *TileIndex,
	bus *event.Bus,
	log *zap.Logger,
) *TableMaterializer {
	return &TableMaterializer{
		table:    table,
		world:    ecsWorld,
		cs:       cs,
		recycler: recycler,
		tilesets: tilesets,
		sprites:  sprites,
		tiles:    tiles,
		bus:      bus,
		log:      log,
	}
}

func (m *TableMaterializer) Dimensions(mapID string) (Dims, error) {
	def, err := m.table.Get(mapID)
	if err != nil {
		return Dims{}, err
	}
	return Dims{Width: def.Width, Height: def.Height, TileSize: def.TileSize}, nil
}

func (m *TableMaterializer) LoadAtOffset(mapID string, origin Vec2) (*LoadResult, error) {
	def, err := m.table.Get(mapID)
	if err != nil {
		return nil, err
	}

	runtimeID := nextRuntimeID()
	root := m.world.CreateEntity()

	info := &MapInfo{
		RuntimeID: runtimeID,
		MapID:     def.ID,
		Name:      def.Name,
		Width:     def.Width,
		Height:    def.Height,
		TileSize:  def.TileSize,
	}
	m.cs.MapInfos.Set(root, info)
	m.cs.Placements.Set(root, &Placement{Origin: origin})

	conns := &Connections{}
	for i := range def.Connections {
		c := &def.Connections[i]
		conns.Dirs[c.Dir] = c
	}
	m.cs.Connections.Set(root, conns)

	result := &LoadResult{Root: root, Info: info}
	for _, name := range def.Tilesets {
		result.TilesetTextures = append(result.TilesetTextures, m.tilesets.Acquire(name))
	}
	for _, sheet := range def.Sprites {
		result.SpriteTextures = append(result.SpriteTextures, m.sprites.Load(runtimeID, sheet))
	}

	m.tiles.AddStatic(runtimeID, origin, info.Dims(), def.Attrs())

	for i := range def.Actors {
		m.spawnActor(&def.Actors[i], def, runtimeID, origin, result)
	}

	event.Emit(m.bus, event.MapLoaded{MapID: def.ID, RuntimeID: runtimeID, Root: root})
	m.log.Debug("map materialized",
		zap.String("map", def.ID),
		zap.Int32("runtime_id", runtimeID),
		zap.Int32("origin_x", origin.X),
		zap.Int32("origin_y", origin.Y),
		zap.Int("actors", len(def.Actors)))
	return result, nil
}

// spawnActor creates (or reuses from the pool) one actor entity for a map
// instance and tags it with the owning runtime id.
func (m *TableMaterializer) spawnActor(adef *data.ActorDef, def *data.MapDef, runtimeID int32, origin Vec2, result *LoadResult) {
	var ent ecs.EntityID
	if adef.Pooled {
		if recycled, ok := m.recycler.Acquire(adef.Kind); ok {
			ent = recycled
		}
	}
	if ent.IsZero() {
		ent = m.world.CreateEntity()
		if adef.Pooled {
			m.recycler.Manage(ent, adef.Kind)
		}
	}

	m.cs.Actors.Set(ent, &Actor{Kind: adef.Kind, GfxID: adef.GfxID})
	m.cs.BelongsTo.Set(ent, &BelongsToMap{RuntimeID: runtimeID})

	px := TileToPixel(origin, adef.X, adef.Y, def.TileSize)
	m.cs.Transforms.Set(ent, &Transform{
		TileX:     adef.X,
		TileY:     adef.Y,
		Px:        px.X,
		Py:        px.Y,
		Elevation: def.Attrs().Elevation(adef.X, adef.Y),
	})

	anim := &SpriteAnim{}
	if len(result.SpriteTextures) > 0 {
		anim.Sheet = result.SpriteTextures[0]
	}
	m.cs.Sprites.Set(ent, anim)

	occ := &TileOccupier{Solid: adef.Solid}
	if adef.Solid {
		occ.At = px
		occ.Placed = true
		m.tiles.Occupy(px, ent)
	}
	m.cs.Occupiers.Set(ent, occ)
}

func (m *TableMaterializer) LoadAsync(mapID string) *PendingLoad {
	p := &PendingLoad{MapID: mapID, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		def, err := m.table.Get(mapID)
		if err != nil {
			p.err = fmt.Errorf("async load %s: %w", mapID, err)
			return
		}
		p.def = def
	}()
	return p
}
