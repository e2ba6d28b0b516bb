package ecs

import "errors"

var (
	// ErrNotPooled is returned when releasing an entity the recycler never managed.
	ErrNotPooled = errors.New("ecs: entity is not pool-managed")
	// ErrStaleEntity is returned when releasing an already-destroyed entity.
	ErrStaleEntity = errors.New("ecs: stale entity reference")
)

// Recycler parks managed entities instead of destroying them, so actor
// storage survives map unloads and is reused by later materializations.
// The caller must strip per-map component state before Release; the recycler
// only moves the id between the live world and a per-kind idle list.
// Single-goroutine access only (game loop).
type Recycler struct {
	world *World
	kinds map[EntityID]string
	idle  map[string][]EntityID
}

func NewRecycler(world *World) *Recycler {
	return &Recycler{
		world: world,
		kinds: make(map[EntityID]string, 256),
		idle:  make(map[string][]EntityID, 8),
	}
}

// Manage marks an entity as pool-eligible under the given kind.
func (r *Recycler) Manage(id EntityID, kind string) {
	r.kinds[id] = kind
}

// Managed reports whether the entity is pool-eligible.
func (r *Recycler) Managed(id EntityID) bool {
	_, ok := r.kinds[id]
	return ok
}

// Release parks a managed entity on its kind's idle list. The entity stays
// alive; callers that receive an error destroy the entity instead.
func (r *Recycler) Release(id EntityID) error {
	kind, ok := r.kinds[id]
	if !ok {
		return ErrNotPooled
	}
	if !r.world.Alive(id) {
		delete(r.kinds, id)
		return ErrStaleEntity
	}
	r.idle[kind] = append(r.idle[kind], id)
	return nil
}

// Acquire pops an idle entity of the given kind, or reports none available.
func (r *Recycler) Acquire(kind string) (EntityID, bool) {
	list := r.idle[kind]
	for len(list) > 0 {
		id := list[len(list)-1]
		list = list[:len(list)-1]
		if r.world.Alive(id) {
			r.idle[kind] = list
			return id, true
		}
		// destroyed while idle — drop the stale id
		delete(r.kinds, id)
	}
	r.idle[kind] = list
	return 0, false
}

// Forget drops an entity from pool management (used when the caller decides
// to destroy it outright).
func (r *Recycler) Forget(id EntityID) {
	delete(r.kinds, id)
}

// IdleCount returns the number of parked entities of a kind.
func (r *Recycler) IdleCount(kind string) int {
	return len(r.idle[kind])
}
