package world

import (
	"testing"

	"github.com/mono-ball/server/internal/data"
)

func TestAdjacentOriginSouthUsesSourceHeight(t *testing.T) {
	town := Dims{Width: 20, Height: 15, TileSize: 16}
	route := Dims{Width: 20, Height: 30, TileSize: 16}

	got := AdjacentOrigin(data.South, 2, town, route, Vec2{})
	want := Vec2{X: 32, Y: 240}
	if got != want {
		t.Fatalf("south origin = %+v, want %+v", got, want)
	}
}

func TestAdjacentOriginNorthUsesAdjacentHeight(t *testing.T) {
	town := Dims{Width: 20, Height: 15, TileSize: 16}
	route := Dims{Width: 20, Height: 30, TileSize: 16}

	// Inverse of the south case: from route1 at (32, 240), town sits north
	// with the negated offset, and must land back at the world origin.
	got := AdjacentOrigin(data.North, -2, route, town, Vec2{X: 32, Y: 240})
	if (got != Vec2{}) {
		t.Fatalf("north origin = %+v, want origin", got)
	}
}

func TestAdjacentOriginEastWest(t *testing.T) {
	src := Dims{Width: 20, Height: 15, TileSize: 16}
	adj := Dims{Width: 18, Height: 15, TileSize: 16}

	east := AdjacentOrigin(data.East, 3, src, adj, Vec2{X: 100, Y: 200})
	if (east != Vec2{X: 100 + 20*16, Y: 200 + 48}) {
		t.Fatalf("east origin = %+v", east)
	}

	// West subtracts the neighbor's own width, not the source's.
	west := AdjacentOrigin(data.West, -1, src, adj, Vec2{X: 100, Y: 200})
	if (west != Vec2{X: 100 - 18*16, Y: 200 - 16}) {
		t.Fatalf("west origin = %+v", west)
	}
}

func TestRectContainsExcludesFarEdges(t *testing.T) {
	r := BoundsAt(Vec2{}, Dims{Width: 20, Height: 15, TileSize: 16})
	if !r.Contains(Vec2{X: 0, Y: 0}) {
		t.Fatal("origin corner should be inside")
	}
	if !r.Contains(Vec2{X: 319, Y: 239}) {
		t.Fatal("last interior pixel should be inside")
	}
	if r.Contains(Vec2{X: 320, Y: 0}) || r.Contains(Vec2{X: 0, Y: 240}) {
		t.Fatal("far edges must be exclusive so seam pixels belong to one map")
	}
}

func TestPixelToTileRoundTrip(t *testing.T) {
	origin := Vec2{X: 32, Y: 240}
	px := TileToPixel(origin, 4, 7, 16)
	x, y := PixelToTile(origin, px, 16)
	if x != 4 || y != 7 {
		t.Fatalf("round trip = (%d, %d), want (4, 7)", x, y)
	}

	// Mid-tile pixels resolve to the containing tile.
	x, y = PixelToTile(origin, Vec2{X: px.X + 15, Y: px.Y + 15}, 16)
	if x != 4 || y != 7 {
		t.Fatalf("mid-tile = (%d, %d), want (4, 7)", x, y)
	}
}

func TestPixelToTileNegativeCoordinates(t *testing.T) {
	// A map north or west of the world origin has negative pixel
	// coordinates; truncating division would round toward zero and put
	// pixels in the wrong tile there.
	x, y := PixelToTile(Vec2{}, Vec2{X: -1, Y: -16}, 16)
	if x != -1 || y != -1 {
		t.Fatalf("negative pixels = (%d, %d), want (-1, -1)", x, y)
	}
	x, y = PixelToTile(Vec2{}, Vec2{X: -17, Y: -32}, 16)
	if x != -2 || y != -2 {
		t.Fatalf("negative pixels = (%d, %d), want (-2, -2)", x, y)
	}
}
