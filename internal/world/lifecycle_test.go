package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/core/event"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/gfx"
	"go.uber.org/zap"
)

// testEnv wires the full world service stack against an in-memory map
// table, the way the boot path does.
type testEnv struct {
	table     *data.MapTable
	world     *ecs.World
	cs        *Components
	recycler  *ecs.Recycler
	tilesets  *gfx.TilesetRegistry
	sprites   *gfx.SpriteCache
	tiles     *TileIndex
	bus       *event.Bus
	lifecycle *Lifecycle
	mat       *TableMaterializer
}

const testMapList = `
maps:
  - id: town
    name: "Town"
    width: 20
    height: 15
    tilesets: [overworld, buildings]
    sprites: [npc_common]
    connections:
      - { dir: south, map: route1, offset: 2 }
    actors:
      - { kind: npc, gfx: 101, x: 8, y: 6, solid: true, pooled: true }
      - { kind: sign, gfx: 12, x: 10, y: 9, solid: true }
  - id: route1
    width: 20
    height: 30
    tilesets: [overworld]
    sprites: [npc_common, critters]
    connections:
      - { dir: north, map: town, offset: -2 }
      - { dir: south, map: cave_entrance, offset: 4 }
    actors:
      - { kind: npc, gfx: 102, x: 11, y: 20, solid: true, pooled: true }
  - id: cave_entrance
    width: 12
    height: 10
    tilesets: [cave]
    connections:
      - { dir: north, map: route1, offset: -4 }
  - id: cave
    width: 25
    height: 20
    tilesets: [cave]
`

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map_list.yaml")
	if err := os.WriteFile(path, []byte(testMapList), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := data.LoadMapTable(path)
	if err != nil {
		t.Fatal(err)
	}

	log := zap.NewNop()
	ecsWorld := ecs.NewWorld()
	cs := NewComponents(ecsWorld.Registry())
	recycler := ecs.NewRecycler(ecsWorld)
	tiles := NewTileIndex()
	bus := event.NewBus()
	tilesets := gfx.NewTilesetRegistry(log)
	sprites := gfx.NewSpriteCache(log)

	env := &testEnv{
		table:    table,
		world:    ecsWorld,
		cs:       cs,
		recycler: recycler,
		tilesets: tilesets,
		sprites:  sprites,
		tiles:    tiles,
		bus:      bus,
	}
	env.lifecycle = NewLifecycle(ecsWorld, cs, recycler, tilesets, sprites, tiles, bus, log)
	env.mat = NewTableMaterializer(table, ecsWorld, cs, recycler, tilesets, sprites, tiles, bus, log)
	return env
}

// load materializes and registers a map, returning its info.
func (e *testEnv) load(t *testing.T, mapID string, origin Vec2) *MapInfo {
	t.Helper()
	res, err := e.mat.LoadAtOffset(mapID, origin)
	if err != nil {
		t.Fatalf("load %s: %v", mapID, err)
	}
	e.lifecycle.RegisterMap(res.Info.RuntimeID, res.Info.MapID, res.Info.Name,
		res.TilesetTextures, res.SpriteTextures)
	return res.Info
}

func (e *testEnv) taggedCount(runtimeID int32) int {
	return len(e.cs.BelongsTo.CollectIDs(func(b *BelongsToMap) bool {
		return runtimeID == 0 || b.RuntimeID == runtimeID
	}))
}

func TestMaterializeAssignsDistinctRuntimeIDs(t *testing.T) {
	env := newTestEnv(t)
	a := env.load(t, "town", Vec2{})
	b := env.load(t, "route1", Vec2{X: 32, Y: 240})
	c := env.load(t, "town", Vec2{X: 1000, Y: 1000})

	if a.RuntimeID == b.RuntimeID || a.RuntimeID == c.RuntimeID || b.RuntimeID == c.RuntimeID {
		t.Fatalf("runtime ids not distinct: %d %d %d", a.RuntimeID, b.RuntimeID, c.RuntimeID)
	}
	// Two instances of the same definition are separate map instances.
	if env.taggedCount(a.RuntimeID) != 2 || env.taggedCount(c.RuntimeID) != 2 {
		t.Fatal("each town instance should own its own actors")
	}
}

func TestMaterializeSpawnsActorsAndOccupancy(t *testing.T) {
	env := newTestEnv(t)
	info := env.load(t, "town", Vec2{})

	if got := env.taggedCount(info.RuntimeID); got != 2 {
		t.Fatalf("tagged actors = %d, want 2", got)
	}
	if env.tiles.OccupiedCount() != 2 {
		t.Fatalf("occupied tiles = %d, want 2 (both actors are solid)", env.tiles.OccupiedCount())
	}
	// Solid actor blocks its tile; a free tile next to it does not.
	if env.tiles.Passable(Vec2{X: 8 * 16, Y: 6 * 16}) {
		t.Fatal("npc tile should block")
	}
	if !env.tiles.Passable(Vec2{X: 9 * 16, Y: 6 * 16}) {
		t.Fatal("empty neighbor tile should be passable")
	}
}

func TestTransitionToMapKeepsNewAndOutgoing(t *testing.T) {
	env := newTestEnv(t)
	town := env.load(t, "town", Vec2{})
	route := env.load(t, "route1", Vec2{X: 32, Y: 240})
	cave := env.load(t, "cave_entrance", Vec2{X: 96, Y: 720})

	env.lifecycle.TransitionToMap(town.RuntimeID)
	if env.lifecycle.Current() != town.RuntimeID {
		t.Fatalf("current = %d, want town", env.lifecycle.Current())
	}
	// town had no previous; everything else got evicted except town itself.
	if env.lifecycle.Registered(route.RuntimeID) || env.lifecycle.Registered(cave.RuntimeID) {
		t.Fatal("non-current maps should have been unloaded")
	}

	route = env.load(t, "route1", Vec2{X: 32, Y: 240})
	cave = env.load(t, "cave_entrance", Vec2{X: 96, Y: 720})
	env.lifecycle.TransitionToMap(route.RuntimeID)

	// Exactly {new, outgoing} survive.
	if !env.lifecycle.Registered(route.RuntimeID) || !env.lifecycle.Registered(town.RuntimeID) {
		t.Fatal("new and outgoing current must both survive the transition")
	}
	if env.lifecycle.Registered(cave.RuntimeID) {
		t.Fatal("unrelated map must be unloaded by the transition")
	}
	if env.lifecycle.RegisteredCount() != 2 {
		t.Fatalf("registered = %d, want 2", env.lifecycle.RegisteredCount())
	}
}

func TestTransitionToSameMapIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	town := env.load(t, "town", Vec2{})
	env.load(t, "route1", Vec2{X: 32, Y: 240})

	env.lifecycle.TransitionToMap(town.RuntimeID)
	env.load(t, "route1", Vec2{X: 32, Y: 240})

	before := env.lifecycle.RegisteredCount()
	env.lifecycle.TransitionToMap(town.RuntimeID)
	if env.lifecycle.RegisteredCount() != before {
		t.Fatal("transition to the current map must not unload anything")
	}
}

func TestUnloadMapReleasesPooledActors(t *testing.T) {
	env := newTestEnv(t)
	info := env.load(t, "town", Vec2{})

	pooled := env.cs.Actors.CollectIDs(func(a *Actor) bool { return a.Kind == "npc" })
	if len(pooled) != 1 {
		t.Fatalf("npc count = %d, want 1", len(pooled))
	}
	npc := pooled[0]

	env.lifecycle.UnloadMap(info.RuntimeID)

	// Pooled actor survives as an entity but is stripped of per-map state.
	if !env.world.Alive(npc) {
		t.Fatal("pooled npc should stay alive in the pool")
	}
	if _, ok := env.cs.Sprites.Get(npc); ok {
		t.Fatal("released actor must not keep its animation state")
	}
	if _, ok := env.cs.BelongsTo.Get(npc); ok {
		t.Fatal("released actor must not keep its map tag")
	}
	if _, ok := env.cs.Occupiers.Get(npc); ok {
		t.Fatal("released actor must not keep its tile registration")
	}
	if _, ok := env.cs.Transforms.Get(npc); ok {
		t.Fatal("released actor must not keep its position and elevation")
	}
	if env.recycler.IdleCount("npc") != 1 {
		t.Fatalf("idle npc pool = %d, want 1", env.recycler.IdleCount("npc"))
	}
	if env.tiles.OccupiedCount() != 0 {
		t.Fatalf("occupied tiles = %d, want 0 after unload", env.tiles.OccupiedCount())
	}

	// Next town load reuses the parked entity instead of growing the world.
	env.load(t, "town", Vec2{X: 500, Y: 500})
	if env.recycler.IdleCount("npc") != 0 {
		t.Fatal("reload should have acquired the parked npc")
	}
	reused := env.cs.Actors.CollectIDs(func(a *Actor) bool { return a.Kind == "npc" })
	if len(reused) != 1 || reused[0] != npc {
		t.Fatalf("expected entity %d to be reused, got %v", npc, reused)
	}
}

func TestUnloadMapSharedTilesetRefcount(t *testing.T) {
	env := newTestEnv(t)
	town := env.load(t, "town", Vec2{})
	env.load(t, "route1", Vec2{X: 32, Y: 240})

	// town: overworld+buildings, route1: overworld again — two textures.
	if env.tilesets.Loaded() != 2 {
		t.Fatalf("loaded tilesets = %d, want 2", env.tilesets.Loaded())
	}

	env.lifecycle.UnloadMap(town.RuntimeID)

	// buildings goes, the shared overworld texture must survive.
	if env.tilesets.Loaded() != 1 {
		t.Fatalf("loaded tilesets = %d, want 1 (shared overworld kept)", env.tilesets.Loaded())
	}
}

func TestUnloadAllMaps(t *testing.T) {
	env := newTestEnv(t)
	env.load(t, "town", Vec2{})
	env.load(t, "route1", Vec2{X: 32, Y: 240})
	env.lifecycle.TransitionToMap(env.lifecycle.RuntimeIDs()[0])

	env.lifecycle.UnloadAllMaps()

	if env.lifecycle.RegisteredCount() != 0 {
		t.Fatal("no maps may stay registered")
	}
	if env.lifecycle.Current() != 0 {
		t.Fatal("current map must reset")
	}
	if got := env.taggedCount(0); got != 0 {
		t.Fatalf("tagged entities = %d, want 0", got)
	}
	if roots := env.cs.MapInfos.CollectIDs(func(*MapInfo) bool { return true }); len(roots) != 0 {
		t.Fatalf("root entities = %d, want 0", len(roots))
	}
	if env.tilesets.Loaded() != 0 {
		t.Fatalf("loaded tilesets = %d, want 0", env.tilesets.Loaded())
	}
	if env.tiles.StaticCount() != 0 || env.tiles.OccupiedCount() != 0 {
		t.Fatal("tile index must be fully invalidated")
	}
}

func TestUnloadAllMapsTearsDownUnregisteredInstances(t *testing.T) {
	env := newTestEnv(t)
	// Materialized but never registered with the lifecycle.
	res, err := env.mat.LoadAtOffset("town", Vec2{})
	if err != nil {
		t.Fatal(err)
	}

	env.lifecycle.UnloadAllMaps()

	if env.world.Alive(res.Root) {
		t.Fatal("unregistered map root must be destroyed all the same")
	}
	if got := env.taggedCount(0); got != 0 {
		t.Fatalf("tagged entities = %d, want 0", got)
	}
}
