package event

import "github.com/mono-ball/server/internal/core/ecs"

// World streaming + warp event types.

// MapLoaded fires when a map instance is materialized into the world.
type MapLoaded struct {
	MapID     string
	RuntimeID int32
	Root      ecs.EntityID
}

// MapUnloaded fires after a map instance is torn down.
type MapUnloaded struct {
	MapID     string
	RuntimeID int32
}

// PlayerEnteredMap fires when the player's current map changes, either by
// crossing a seam or by completing a warp.
type PlayerEnteredMap struct {
	MapID     string
	RuntimeID int32
}

// WarpCompleted fires after a successful warp teleport.
type WarpCompleted struct {
	MapID string
	TileX int32
	TileY int32
}

// WarpFailed fires when a warp aborts, fails, or times out.
type WarpFailed struct {
	MapID  string
	Reason string
}
