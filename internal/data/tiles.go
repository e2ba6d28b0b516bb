package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Tile attribute byte layout.低 4 位是碰撞旗標，高 4 位是 elevation。
const (
	TileBlocked    byte = 0x01 // bit 0 — impassable from every direction
	TileWater      byte = 0x02 // bit 1 — requires surf
	TileLedgeSouth byte = 0x04 // bit 2 — one-way hop, south only
	TileElevMask   byte = 0xF0 // bits 4-7 — elevation layer
)

// DefaultElevation is the ground layer every map places the player on
// unless a tile says otherwise.
const DefaultElevation uint8 = 3

// TileAttrs holds one map's per-tile attribute bytes, row-major [y*width+x].
type TileAttrs struct {
	width  int32
	height int32
	cells  []byte
}

// At returns the attribute byte at map-local tile coordinates, or a plain
// walkable ground byte when out of bounds or unset.
func (a *TileAttrs) At(x, y int32) byte {
	if a == nil || x < 0 || y < 0 || x >= a.width || y >= a.height {
		return DefaultElevation << 4
	}
	return a.cells[y*a.width+x]
}

// Passable reports whether the tile blocks movement.
func (a *TileAttrs) Passable(x, y int32) bool {
	return a.At(x, y)&TileBlocked == 0
}

// Elevation returns the tile's elevation layer.
func (a *TileAttrs) Elevation(x, y int32) uint8 {
	return a.At(x, y) >> 4
}

// LoadAttrs loads per-map tile attribute files from tileDir. Each file is
// {map id}.txt: one CSV line per tile row. A missing file is non-fatal —
// the map simply has flat walkable ground. Returns the number of maps that
// got attribute data.
func (t *MapTable) LoadAttrs(tileDir string) (int, error) {
	loaded := 0
	for id, def := range t.maps {
		attrs, err := loadAttrFile(tileDir, id, def.Width, def.Height)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return loaded, fmt.Errorf("tile attrs for %s: %w", id, err)
		}
		def.attrs = attrs
		loaded++
	}
	return loaded, nil
}

// loadAttrFile reads a CSV attribute file: each line is a row of
// comma-separated byte values, top row first.
func loadAttrFile(dir, mapID string, width, height int32) (*TileAttrs, error) {
	path := filepath.Join(dir, mapID+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cells := make([]byte, width*height)
	// Unset cells default to walkable ground, not zero elevation.
	for i := range cells {
		cells[i] = DefaultElevation << 4
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	y := int32(0)
	for scanner.Scan() && y < height {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		x := int32(0)
		for _, tok := range strings.Split(line, ",") {
			if x >= width {
				break
			}
			val, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 8)
			if err != nil {
				val = uint64(DefaultElevation) << 4
			}
			cells[y*width+x] = byte(val)
			x++
		}
		y++
	}

	return &TileAttrs{width: width, height: height, cells: cells}, scanner.Err()
}
