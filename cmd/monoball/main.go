package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mono-ball/server/internal/config"
	"github.com/mono-ball/server/internal/core/ecs"
	"github.com/mono-ball/server/internal/core/event"
	coresys "github.com/mono-ball/server/internal/core/system"
	"github.com/mono-ball/server/internal/data"
	"github.com/mono-ball/server/internal/gfx"
	"github.com/mono-ball/server/internal/persist"
	"github.com/mono-ball/server/internal/scripting"
	"github.com/mono-ball/server/internal/system"
	"github.com/mono-ball/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Mono-Ball  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m     無接縫地圖串流 · Go 遊戲伺服器        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	// Use rune count for CJK width calculation (each CJK char = 2 columns)
	displayWidth := 0
	for _, r := range title {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	lineLen := 46 - displayWidth - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	// Use display width for CJK characters
	displayWidth := 0
	for _, r := range label {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	dotsLen := 42 - displayWidth - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("MONOBALL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Connect to PostgreSQL and run migrations
	printSection("資料庫")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL 連線成功")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("資料庫遷移完成")
	fmt.Println()

	playerRepo := persist.NewPlayerRepo(db)

	// 4. Load static map data
	printSection("資料載入")

	mapTable, err := data.LoadMapTable(cfg.World.MapList)
	if err != nil {
		return fmt.Errorf("load map table: %w", err)
	}
	printStat("地圖定義", mapTable.Count())

	attrCount, err := mapTable.LoadAttrs(cfg.World.TileDir)
	if err != nil {
		return fmt.Errorf("load tile attrs: %w", err)
	}
	printStat("碰撞圖層", attrCount)

	// 5. ECS core + world services
	ecsWorld := ecs.NewWorld()
	cs := world.NewComponents(ecsWorld.Registry())
	recycler := ecs.NewRecycler(ecsWorld)
	tiles := world.NewTileIndex()
	bus := event.NewBus()

	tilesets := gfx.NewTilesetRegistry(log)
	sprites := gfx.NewSpriteCache(log)

	lifecycle := world.NewLifecycle(ecsWorld, cs, recycler, tilesets, sprites, tiles, bus, log)
	mat := world.NewTableMaterializer(mapTable, ecsWorld, cs, recycler, tilesets, sprites, tiles, bus, log)

	// 6. Lua scripting engine
	luaEngine, err := scripting.NewEngine(cfg.World.ScriptDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua 腳本載入完成")

	// 7. Resolve the player spawn: saved record first, configured start as
	// fallback (also covers records pointing at maps removed from the list).
	playerName := cfg.Server.Name + "-player"
	rec, err := playerRepo.Load(ctx, playerName)
	if err != nil {
		return fmt.Errorf("load player: %w", err)
	}
	startMap := cfg.World.StartMap
	startX, startY := cfg.World.StartX, cfg.World.StartY
	elevation := data.DefaultElevation
	if rec != nil && mapTable.Has(rec.MapID) {
		startMap = rec.MapID
		startX, startY = rec.TileX, rec.TileY
		elevation = uint8(rec.Elevation)
	}
	if sp := luaEngine.GetSpawnPoint(startMap); sp != nil && rec == nil {
		startX, startY = sp.X, sp.Y
	}

	// 8. Materialize the starting map and place the player on it
	player := world.NewPlayer(ecsWorld.CreateEntity(), playerName)

	res, err := mat.LoadAtOffset(startMap, world.Vec2{})
	if err != nil {
		return fmt.Errorf("materialize start map %q: %w", startMap, err)
	}
	lifecycle.RegisterMap(res.Info.RuntimeID, res.Info.MapID, res.Info.Name, res.TilesetTextures, res.SpriteTextures)
	lifecycle.TransitionToMap(res.Info.RuntimeID)
	player.Streaming.Reset(startMap, world.Vec2{})

	px := world.TileToPixel(world.Vec2{}, startX, startY, res.Info.TileSize)
	cs.Transforms.Set(player.Entity, &world.Transform{
		TileX:     startX,
		TileY:     startY,
		Px:        px.X,
		Py:        px.Y,
		Elevation: elevation,
	})
	player.Camera.SnapTo(px)
	printStat("玩家起始地圖", 1)
	fmt.Println()

	// 9. Event subscribers: script hooks + observability
	event.Subscribe(bus, func(e event.PlayerEnteredMap) {
		luaEngine.OnMapEnter(e.MapID)
		if def, err := mapTable.Get(e.MapID); err == nil && def.OnEnter != "" {
			luaEngine.CallMapHook(def.OnEnter, e.MapID)
		}
		log.Info("玩家進入地圖", zap.String("map", e.MapID), zap.Int32("runtime_id", e.RuntimeID))
	})
	event.Subscribe(bus, func(e event.WarpCompleted) {
		luaEngine.OnWarp(e.MapID, e.TileX, e.TileY)
	})
	event.Subscribe(bus, func(e event.WarpFailed) {
		log.Warn("傳送失敗", zap.String("map", e.MapID), zap.String("reason", e.Reason))
	})
	event.Subscribe(bus, func(e event.MapUnloaded) {
		log.Debug("地圖卸載", zap.String("map", e.MapID), zap.Int32("runtime_id", e.RuntimeID))
	})

	// 10. Systems, in registration order within each phase
	runner := coresys.NewRunner()
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewStreamingSystem(player, ecsWorld, cs, mat, lifecycle, tiles, sprites, bus, log))
	runner.Register(system.NewWarpSystem(player, cs, mat, lifecycle, tiles, bus, cfg.World.WarpTimeout, log))
	persistSys := system.NewPersistenceSystem(player, cs, playerRepo, cfg.World.SaveInterval, log)
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(ecsWorld))

	// 11. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.World.TickRate))
	printReady(fmt.Sprintf("起始地圖 %s (%d, %d)", startMap, startX, startY))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.World.TickRate)
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			player.Dirty = true
			persistSys.SaveNow()
			log.Info("伺服器已停止")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
