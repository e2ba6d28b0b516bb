package ecs

// Registry knows every component store so that destroying an entity removes
// it everywhere in one call. Map unload depends on this: stripping a pooled
// actor must not leave a dangling Transform or occupier entry behind.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 16),
	}
}

// Register adds a component store. 所有 store 必須在開機時註冊，
// 之後才建立實體。
func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
}

// RemoveAll clears the entity from every registered store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
