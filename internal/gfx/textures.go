package gfx

import (
	"go.uber.org/zap"
)

// TextureID is an opaque handle to a loaded texture.
type TextureID int32

// TilesetRegistry tracks loaded tileset textures by name. Loading is
// idempotent: two maps that share a tileset get the same handle, and the
// lifecycle manager decides when the last reference is gone and the texture
// can actually be unloaded.
// Single-goroutine access only (game loop).
type TilesetRegistry struct {
	log    *zap.Logger
	byName map[string]TextureID
	names  map[TextureID]string
	nextID TextureID
}

func NewTilesetRegistry(log *zap.Logger) *TilesetRegistry {
	return &TilesetRegistry{
		log:    log,
		byName: make(map[string]TextureID, 32),
		names:  make(map[TextureID]string, 32),
	}
}

// Acquire returns the handle for a tileset, loading it on first use.
func (r *TilesetRegistry) Acquire(name string) TextureID {
	if id, ok := r.byName[name]; ok {
		return id
	}
	r.nextID++
	id := r.nextID
	r.byName[name] = id
	r.names[id] = name
	r.log.Debug("tileset loaded", zap.String("name", name), zap.Int32("texture", int32(id)))
	return id
}

// Unload physically releases a tileset texture. Callers are responsible for
// making sure no materialized map still references it.
func (r *TilesetRegistry) Unload(id TextureID) {
	name, ok := r.names[id]
	if !ok {
		return
	}
	delete(r.names, id)
	delete(r.byName, name)
	r.log.Debug("tileset unloaded", zap.String("name", name), zap.Int32("texture", int32(id)))
}

// Loaded returns the number of live tileset textures.
func (r *TilesetRegistry) Loaded() int {
	return len(r.byName)
}

// Name returns the tileset name behind a handle, for logging.
func (r *TilesetRegistry) Name(id TextureID) string {
	return r.names[id]
}

type spriteEntry struct {
	id   TextureID
	refs map[int32]struct{} // map runtime id → referenced
}

// SpriteCache tracks sprite-sheet textures per materialized map instance.
// Sheets shared between instances are loaded once; a sheet is unloaded when
// the last referencing instance goes away.
// Single-goroutine access only (game loop).
type SpriteCache struct {
	log     *zap.Logger
	entries map[string]*spriteEntry
	nextID  TextureID
}

func NewSpriteCache(log *zap.Logger) *SpriteCache {
	return &SpriteCache{
		log:     log,
		entries: make(map[string]*spriteEntry, 32),
	}
}

// Load returns the handle for a sprite sheet and records that the given map
// instance references it.
func (c *SpriteCache) Load(runtimeID int32, sheet string) TextureID {
	e, ok := c.entries[sheet]
	if !ok {
		c.nextID++
		e = &spriteEntry{id: c.nextID, refs: make(map[int32]struct{}, 2)}
		c.entries[sheet] = e
		c.log.Debug("sprite sheet loaded", zap.String("sheet", sheet), zap.Int32("texture", int32(e.id)))
	}
	e.refs[runtimeID] = struct{}{}
	return e.id
}

// IDsForMap returns the sheet handles a map instance references.
func (c *SpriteCache) IDsForMap(runtimeID int32) []TextureID {
	var ids []TextureID
	for _, e := range c.entries {
		if _, ok := e.refs[runtimeID]; ok {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// UnloadForMap drops one map instance's references and unloads every sheet
// that became unreferenced. Returns the number of sheets unloaded.
func (c *SpriteCache) UnloadForMap(runtimeID int32) int {
	unloaded := 0
	for sheet, e := range c.entries {
		if _, ok := e.refs[runtimeID]; !ok {
			continue
		}
		delete(e.refs, runtimeID)
		if len(e.refs) == 0 {
			delete(c.entries, sheet)
			unloaded++
			c.log.Debug("sprite sheet unloaded", zap.String("sheet", sheet), zap.Int32("texture", int32(e.id)))
		}
	}
	return unloaded
}

// ClearCache unloads every sheet regardless of references.
func (c *SpriteCache) ClearCache() {
	n := len(c.entries)
	clear(c.entries)
	if n > 0 {
		c.log.Debug("sprite cache cleared", zap.Int("sheets", n))
	}
}

// Cached returns the number of live sprite sheets.
func (c *SpriteCache) Cached() int {
	return len(c.entries)
}
