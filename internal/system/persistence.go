package system

import (
	"context"
	"time"

	coresys "github.com/mono-ball/server/internal/core/system"
	"github.com/mono-ball/server/internal/persist"
	"github.com/mono-ball/server/internal/world"
	"go.uber.org/zap"
)

// PersistenceSystem saves the player's whereabouts when dirty, on a fixed
// interval. Phase 3 (Persist). 存檔失敗只記 log，下一輪再試。
type PersistenceSystem struct {
	log      *zap.Logger
	player   *world.Player
	cs       *world.Components
	repo     *persist.PlayerRepo
	interval time.Duration
	elapsed  time.Duration
}

func NewPersistenceSystem(player *world.Player, cs *world.Components, repo *persist.PlayerRepo, interval time.Duration, log *zap.Logger) *PersistenceSystem {
	return &PersistenceSystem{
		log:      log,
		player:   player,
		cs:       cs,
		repo:     repo,
		interval: interval,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.SaveNow()
}

// SaveNow writes the player record immediately if dirty. Also called once
// at shutdown.
func (s *PersistenceSystem) SaveNow() {
	p := s.player
	if !p.Dirty {
		return
	}
	// Never save mid-warp: the streaming state is intentionally torn down
	// and a crash here must not strand the player in an empty world.
	if p.Warp.IsWarping {
		return
	}
	tr, ok := s.cs.Transforms.Get(p.Entity)
	if !ok {
		return
	}

	rec := &persist.PlayerRecord{
		Name:      p.Name,
		MapID:     p.Streaming.CurrentMap,
		TileX:     tr.TileX,
		TileY:     tr.TileY,
		Elevation: int16(tr.Elevation),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Save(ctx, rec); err != nil {
		s.log.Warn("player save failed", zap.String("name", p.Name), zap.Error(err))
		return
	}
	p.Dirty = false
}
