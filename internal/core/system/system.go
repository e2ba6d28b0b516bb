package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseEvents    Phase = iota // 0: swap + dispatch last tick's events
	PhaseUpdate                 // 1: game logic (movement, actors)
	PhaseStreaming              // 2: map window maintenance, then warps
	PhasePersist                // 3: periodic dirty saves
	PhaseCleanup                // 4: destroy queued entities
)

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
