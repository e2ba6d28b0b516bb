package system

import (
	"time"

	"github.com/mono-ball/server/internal/core/ecs"
	coresys "github.com/mono-ball/server/internal/core/system"
)

// CleanupSystem flushes the deferred destruction queue at the end of every
// tick, after streaming and warps have finished mutating the world. Entities
// queued mid-tick (evicted actors, torn-down map roots) stay queryable until
// this runs.
type CleanupSystem struct {
	world *ecs.World
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.FlushDestroyQueue()
}
