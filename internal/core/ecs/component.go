package ecs

// Removable is the minimal interface the Registry needs from a store to
// bulk-remove an entity's data on destroy.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore is a typed map store for components, generics all the
// way down. Components are held by pointer so systems mutate them in place.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// CollectIDs returns the ids of all entities whose component matches pred.
// Mutating the store while ranging it is unsafe, so eviction paths collect
// first and destroy second.
func (s *PtrComponentStore[T]) CollectIDs(pred func(*T) bool) []EntityID {
	ids := make([]EntityID, 0, 16)
	for id, c := range s.data {
		if pred(c) {
			ids = append(ids, id)
		}
	}
	return ids
}
