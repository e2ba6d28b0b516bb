package system

import (
	"testing"
	"time"

	"github.com/mono-ball/server/internal/core/event"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/world"
	"go.uber.org/zap"
)

func (tw *testWorld) warp(timeout time.Duration) *WarpSystem {
	return NewWarpSystem(tw.player, tw.cs, tw.mat, tw.lifecycle, tw.tiles, tw.bus, timeout, zap.NewNop())
}

// pump ticks the warp system until the execution finishes or the deadline
// expires, giving the background load goroutine time to deliver.
func pump(t *testing.T, sys *WarpSystem) {
	t.Helper()
	for i := 0; i < 200; i++ {
		sys.Update(0)
		if !sys.Executing() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("warp did not finish")
}

func TestWarpSuccess(t *testing.T) {
	tw := newTestWorld(t)
	sys := tw.warp(10 * time.Second)

	if !tw.player.RequestWarp("cave", 12, 10, data.DefaultElevation) {
		t.Fatal("request should be accepted")
	}
	if !tw.player.MovementLocked {
		t.Fatal("movement must lock while the warp is pending")
	}

	pump(t, sys)

	p := tw.player
	if p.Streaming.CurrentMap != "cave" {
		t.Fatalf("current map = %s, want cave", p.Streaming.CurrentMap)
	}
	if len(p.Streaming.Loaded) != 1 {
		t.Fatalf("loaded = %v, want just the destination", p.Streaming.Loaded)
	}
	tr, _ := tw.cs.Transforms.Get(p.Entity)
	if tr.TileX != 12 || tr.TileY != 10 {
		t.Fatalf("tile = (%d, %d), want (12, 10)", tr.TileX, tr.TileY)
	}
	if tr.Px != 12*16 || tr.Py != 10*16 {
		t.Fatalf("pixels = (%d, %d), want (192, 160)", tr.Px, tr.Py)
	}
	if tr.Elevation != data.DefaultElevation {
		t.Fatalf("elevation = %d, want %d", tr.Elevation, data.DefaultElevation)
	}
	if (p.Camera.Pos != world.Vec2{X: 192, Y: 160}) {
		t.Fatalf("camera = %+v, want snapped to the arrival tile", p.Camera.Pos)
	}
	if p.Warp.Pending != nil || p.Warp.IsWarping {
		t.Fatal("warp state must fully clear")
	}
	if p.MovementLocked || p.Moving {
		t.Fatal("player must be movable on arrival")
	}
	if p.Warp.LastDest != "cave" {
		t.Fatal("arrival must arm the retrigger guard")
	}

	// Old world gone, destination registered and current.
	if world.BuildMapCache(tw.cs)["town"] != nil {
		t.Fatal("pre-warp town must be torn down")
	}
	caveCtx := world.BuildMapCache(tw.cs)["cave"]
	if caveCtx == nil || tw.lifecycle.Current() != caveCtx.Info.RuntimeID {
		t.Fatal("destination must be the lifecycle's current map")
	}
}

func TestWarpRetriggerGuard(t *testing.T) {
	tw := newTestWorld(t)
	sys := tw.warp(10 * time.Second)

	tw.player.RequestWarp("cave", 12, 10, data.DefaultElevation)
	pump(t, sys)

	// Standing on the landing tile, the same warp does not re-fire.
	if tw.player.RequestWarp("cave", 12, 10, data.DefaultElevation) {
		t.Fatal("warp to the arrival map must be suppressed until the player moves")
	}
	// Stepping off the tile re-arms it.
	tw.player.ClearWarpGuard()
	if !tw.player.RequestWarp("cave", 3, 3, data.DefaultElevation) {
		t.Fatal("guard should re-arm after moving off the landing tile")
	}
}

func TestWarpRequestRejectedWhileExecuting(t *testing.T) {
	tw := newTestWorld(t)
	sys := tw.warp(10 * time.Second)

	tw.player.RequestWarp("cave", 12, 10, data.DefaultElevation)
	sys.Update(0) // tryStart: busy, load in flight

	if !sys.Executing() {
		t.Fatal("warp should be executing")
	}
	if tw.player.RequestWarp("route1", 1, 1, data.DefaultElevation) {
		t.Fatal("a second warp must not start mid-execution")
	}
	pump(t, sys)
}

func TestWarpLoadFailureRestoresPreviousMap(t *testing.T) {
	tw := newTestWorld(t)
	sys := tw.warp(10 * time.Second)

	var failed []event.WarpFailed
	event.Subscribe(tw.bus, func(e event.WarpFailed) {
		failed = append(failed, e)
	})

	tw.player.Warp.Pending = &world.WarpRequest{MapID: "nowhere", TileX: 1, TileY: 1}
	tw.player.MovementLocked = true
	pump(t, sys)

	p := tw.player
	if p.Warp.IsWarping || p.Warp.Pending != nil || p.MovementLocked {
		t.Fatal("failed warp must leave the player movable")
	}
	// Best-effort recovery: the pre-warp map is rematerialized and current.
	if p.Streaming.CurrentMap != "town" {
		t.Fatalf("current map = %s, want restored town", p.Streaming.CurrentMap)
	}
	townCtx := world.BuildMapCache(tw.cs)["town"]
	if townCtx == nil || tw.lifecycle.Current() != townCtx.Info.RuntimeID {
		t.Fatal("restored map must be registered and current")
	}

	tw.bus.SwapBuffers()
	tw.bus.DispatchAll()
	if len(failed) != 1 || failed[0].MapID != "nowhere" {
		t.Fatalf("failed events = %+v", failed)
	}

	// The executor is reusable: a valid warp now succeeds.
	if !tw.player.RequestWarp("cave", 5, 5, data.DefaultElevation) {
		t.Fatal("new warp should start after a failure")
	}
	pump(t, sys)
	if p.Streaming.CurrentMap != "cave" {
		t.Fatalf("current map = %s, want cave", p.Streaming.CurrentMap)
	}
}

func TestWarpTimeoutForceCancels(t *testing.T) {
	tw := newTestWorld(t)
	sys := tw.warp(10 * time.Second)

	now := time.Unix(1000, 0)
	sys.clock = func() time.Time { return now }

	tw.player.RequestWarp("cave", 12, 10, data.DefaultElevation)
	sys.Update(0) // tryStart at t=1000s

	if !sys.Executing() {
		t.Fatal("warp should be executing")
	}

	// Cross the ceiling. The poll checks the deadline before the result, so
	// even a completed load is discarded past this point.
	now = now.Add(11 * time.Second)
	sys.Update(0)

	p := tw.player
	if sys.Executing() {
		t.Fatal("timed-out warp must release the executor")
	}
	if p.Warp.IsWarping || p.MovementLocked {
		t.Fatal("timed-out warp must leave the player movable")
	}
	if p.Streaming.CurrentMap != "town" {
		t.Fatalf("current map = %s, want restored town", p.Streaming.CurrentMap)
	}
	// The late result never lands: the world still holds town, not cave.
	time.Sleep(5 * time.Millisecond)
	sys.Update(0)
	if world.BuildMapCache(tw.cs)["cave"] != nil {
		t.Fatal("late load result must be discarded, not applied")
	}
}
