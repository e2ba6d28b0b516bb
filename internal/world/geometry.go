package world

import (
	"github.com/mono-ball/server/internal/data"
)

// Vec2 is a point in world-pixel space.
type Vec2 struct {
	X, Y int32
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Rect is a map instance's bounding rectangle in world-pixel space.
type Rect struct {
	Origin Vec2
	W, H   int32 // pixels
}

// Contains reports whether a pixel lies inside the rect. The right and
// bottom edges are exclusive, so adjacent maps never both claim a seam pixel.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Origin.X && p.X < r.Origin.X+r.W &&
		p.Y >= r.Origin.Y && p.Y < r.Origin.Y+r.H
}

// Dims bundles a map's static size for offset math.
type Dims struct {
	Width    int32 // tiles
	Height   int32 // tiles
	TileSize int32 // pixels
}

// AdjacentOrigin computes the world-pixel origin of a neighboring map so the
// two tile grids align pixel-exactly at the shared seam.
//
// For north and west the neighbor's FAR edge touches the source's near edge,
// so the neighbor's own size is subtracted; for south and east the seam sits
// at the end of the SOURCE map, so the source's size is added. Getting this
// backwards misaligns every seam by the difference of the two map sizes.
//
// offset is shifted along the seam axis in source tile units.
func AdjacentOrigin(dir data.Direction, offset int32, src Dims, adj Dims, origin Vec2) Vec2 {
	t := src.TileSize
	switch dir {
	case data.North:
		return Vec2{origin.X + offset*t, origin.Y - adj.Height*t}
	case data.South:
		return Vec2{origin.X + offset*t, origin.Y + src.Height*t}
	case data.East:
		return Vec2{origin.X + src.Width*t, origin.Y + offset*t}
	case data.West:
		return Vec2{origin.X - adj.Width*t, origin.Y + offset*t}
	}
	return origin
}

// BoundsAt returns a map's bounding rect when placed at origin.
func BoundsAt(origin Vec2, d Dims) Rect {
	return Rect{Origin: origin, W: d.Width * d.TileSize, H: d.Height * d.TileSize}
}

// TileToPixel converts map-local tile coordinates to a world pixel position
// for a map placed at origin.
func TileToPixel(origin Vec2, tileX, tileY, tileSize int32) Vec2 {
	return Vec2{origin.X + tileX*tileSize, origin.Y + tileY*tileSize}
}

// PixelToTile converts a world pixel position to map-local tile coordinates
// for a map placed at origin. Pixel positions between tile corners truncate
// toward the tile they are inside.
func PixelToTile(origin Vec2, p Vec2, tileSize int32) (int32, int32) {
	return floorDiv(p.X-origin.X, tileSize), floorDiv(p.Y-origin.Y, tileSize)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
