package ecs

// World owns the entity pool, the component registry, and the deferred
// destruction queue. Map eviction queues entities here; CleanupSystem flushes
// the queue once per tick, so a streamed-out actor is still queryable for
// the remainder of the tick that evicted it.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup. Queueing a
// stale id is harmless, the pool's generation check makes the flush a no-op.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// DestroyNow destroys an entity immediately, clearing all its components.
// Map teardown uses this instead of the queue: a warp must see a clean world
// before its destination load starts, not at tick end.
func (w *World) DestroyNow(id EntityID) {
	w.registry.RemoveAll(id)
	w.pool.Destroy(id)
}

// FlushDestroyQueue destroys every queued entity and clears its components.
// 每 tick 結尾由 CleanupSystem 呼叫一次。
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
