package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	World    WorldConfig    `toml:"world"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// WorldConfig drives the streamed-overworld core: tick cadence, the warp
// cancellation ceiling, and where map data lives on disk.
type WorldConfig struct {
	TickRate     time.Duration `toml:"tick_rate"`
	WarpTimeout  time.Duration `toml:"warp_timeout"`
	SaveInterval time.Duration `toml:"save_interval"`
	MapList      string        `toml:"map_list"`
	TileDir      string        `toml:"tile_dir"`
	ScriptDir    string        `toml:"script_dir"`
	StartMap     string        `toml:"start_map"`
	StartX       int32         `toml:"start_x"`
	StartY       int32         `toml:"start_y"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.World.TickRate <= 0 {
		return nil, fmt.Errorf("world.tick_rate must be positive, got %s", cfg.World.TickRate)
	}
	if cfg.World.WarpTimeout <= 0 {
		return nil, fmt.Errorf("world.warp_timeout must be positive, got %s", cfg.World.WarpTimeout)
	}
	if cfg.World.StartMap == "" {
		return nil, fmt.Errorf("world.start_map is required")
	}

	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "MonoBall",
			ID:   1,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    8,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		World: WorldConfig{
			TickRate:     50 * time.Millisecond,
			WarpTimeout:  10 * time.Second,
			SaveInterval: 5 * time.Minute,
			MapList:      "data/yaml/map_list.yaml",
			TileDir:      "map",
			ScriptDir:    "scripts",
			StartMap:     "town",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
