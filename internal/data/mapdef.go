package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrMapNotFound is returned when a map identifier has no definition.
var ErrMapNotFound = errors.New("data: map not found")

// Direction is a cardinal seam direction between two connected maps.
type Direction int

const (
	North Direction = iota
	South
	East
	West
	DirCount
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Opposite returns the seam direction as seen from the neighbor's side.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return d
}

// ParseDirection parses a YAML direction string.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "north", "up":
		return North, nil
	case "south", "down":
		return South, nil
	case "east", "right":
		return East, nil
	case "west", "left":
		return West, nil
	}
	return 0, fmt.Errorf("data: unknown direction %q", s)
}

func (d *Direction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dir, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// ConnectionDef links a map to a neighbor along one seam. Offset is the
// signed tile shift applied along the shared edge so the two tile grids
// line up pixel-exactly.
type ConnectionDef struct {
	Dir    Direction `yaml:"dir"`
	MapID  string    `yaml:"map"`
	Offset int32     `yaml:"offset"`
}

// ActorDef is a static actor spawn within a map (NPC, sign, berry tree, ...).
type ActorDef struct {
	Kind   string `yaml:"kind"`
	GfxID  int32  `yaml:"gfx"`
	X      int32  `yaml:"x"` // tile coordinates, map-local
	Y      int32  `yaml:"y"`
	Solid  bool   `yaml:"solid"`
	Pooled bool   `yaml:"pooled"`
}

// MapDef is the authoring-time description of one map: grid dimensions,
// display name, texture dependencies, seam connections, and actor spawns.
type MapDef struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Width    int32    `yaml:"width"`  // tiles
	Height   int32    `yaml:"height"` // tiles
	TileSize int32    `yaml:"tile_size"`
	Tilesets []string `yaml:"tilesets"`
	Sprites  []string `yaml:"sprites"`
	OnEnter  string   `yaml:"on_enter"` // lua hook name, optional

	Connections []ConnectionDef `yaml:"connections"`
	Actors      []ActorDef      `yaml:"actors"`

	attrs *TileAttrs // loaded separately, nil when no attribute file exists
}

// Connection returns the definition's connection in the given direction, or nil.
func (d *MapDef) Connection(dir Direction) *ConnectionDef {
	for i := range d.Connections {
		if d.Connections[i].Dir == dir {
			return &d.Connections[i]
		}
	}
	return nil
}

// Attrs returns the map's tile attributes, or nil if none were loaded.
func (d *MapDef) Attrs() *TileAttrs { return d.attrs }

type mapListFile struct {
	Maps []*MapDef `yaml:"maps"`
}

// MapTable is the map definition source: identifier → static definition.
type MapTable struct {
	maps map[string]*MapDef
}

// LoadMapTable loads map definitions from map_list.yaml.
func LoadMapTable(path string) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", path, err)
	}
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	table := &MapTable{maps: make(map[string]*MapDef, len(file.Maps))}
	for _, def := range file.Maps {
		if def.ID == "" || def.Width <= 0 || def.Height <= 0 {
			return nil, fmt.Errorf("map %q: invalid id or dimensions", def.ID)
		}
		if def.TileSize <= 0 {
			def.TileSize = 16
		}
		if _, dup := table.maps[def.ID]; dup {
			return nil, fmt.Errorf("map %q: duplicate id", def.ID)
		}
		table.maps[def.ID] = def
	}

	// Connections must reference defined maps. A dangling reference is not
	// fatal at load time (streaming skips it), but it is worth a validation
	// error here where the author can fix the data.
	for _, def := range table.maps {
		seen := [DirCount]bool{}
		for _, conn := range def.Connections {
			if seen[conn.Dir] {
				return nil, fmt.Errorf("map %q: duplicate %s connection", def.ID, conn.Dir)
			}
			seen[conn.Dir] = true
		}
	}

	return table, nil
}

// Get returns the definition for a map identifier.
func (t *MapTable) Get(id string) (*MapDef, error) {
	def, ok := t.maps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, id)
	}
	return def, nil
}

// Has reports whether a map identifier is defined.
func (t *MapTable) Has(id string) bool {
	_, ok := t.maps[id]
	return ok
}

// Count returns the number of defined maps.
func (t *MapTable) Count() int {
	return len(t.maps)
}

// Each iterates all definitions (load order is not preserved).
func (t *MapTable) Each(fn func(*MapDef)) {
	for _, def := range t.maps {
		fn(def)
	}
}
