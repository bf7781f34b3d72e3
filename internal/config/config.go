package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Client    ClientConfig    `toml:"client"`
	Loop      LoopConfig      `toml:"loop"`
	Arena     ArenaConfig     `toml:"arena"`
	PvP       PvPConfig       `toml:"pvp"`
	Autopilot AutopilotConfig `toml:"autopilot"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	DevServer DevServerConfig `toml:"devserver"`
}

type ClientConfig struct {
	BaseURL        string        `toml:"base_url"`
	Token          string        `toml:"token"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

type LoopConfig struct {
	TickRate          time.Duration `toml:"tick_rate"`
	MaxResultsPerTick int           `toml:"max_results_per_tick"`
	ResultQueueSize   int           `toml:"result_queue_size"`
	MaxRunTime        time.Duration `toml:"max_run_time"` // 0 = until the run ends
}

type ArenaConfig struct {
	MapFile   string `toml:"map_file"`
	MapID     string `toml:"map_id"`
	DuelMapID string `toml:"duel_map_id"`
	Mode      string `toml:"mode"` // "arena" or "pvp"
	BattleID  string `toml:"battle_id"`
	Resume    bool   `toml:"resume"`
	Seed      int64  `toml:"seed"` // 0 = time based
}

type PvPConfig struct {
	Transport    string        `toml:"transport"` // "poll" or "ws"
	PollInterval time.Duration `toml:"poll_interval"`
	PushInterval time.Duration `toml:"push_interval"`
}

type AutopilotConfig struct {
	Enabled     bool   `toml:"enabled"`
	Scripts     string `toml:"scripts"` // Lua scripts dir; empty = built-in Go policy
	AttackRange int    `toml:"attack_range"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables run history
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type DevServerConfig struct {
	BindAddress      string        `toml:"bind_address"`
	MaxBattlesPerDay int           `toml:"max_battles_per_day"`
	DefeatCooldown   time.Duration `toml:"defeat_cooldown"`
	StartLevel       int           `toml:"start_level"`
	BowLevel         int           `toml:"bow_level"`
	MoveSpeedLevel   int           `toml:"move_speed_level"`
	PushInterval     time.Duration `toml:"push_interval"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse overlays TOML data on the defaults. name is used in errors only.
func Parse(data []byte, name string) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if cfg.Arena.Mode != "arena" && cfg.Arena.Mode != "pvp" {
		return nil, fmt.Errorf("config %s: arena.mode must be arena or pvp, got %q", name, cfg.Arena.Mode)
	}
	if cfg.PvP.Transport != "poll" && cfg.PvP.Transport != "ws" {
		return nil, fmt.Errorf("config %s: pvp.transport must be poll or ws, got %q", name, cfg.PvP.Transport)
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"loop.tick_rate", cfg.Loop.TickRate},
		{"pvp.poll_interval", cfg.PvP.PollInterval},
		{"pvp.push_interval", cfg.PvP.PushInterval},
	} {
		if d.val <= 0 {
			return nil, fmt.Errorf("config %s: %s must be positive, got %v", name, d.key, d.val)
		}
	}
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:        "http://127.0.0.1:8080/api",
			RequestTimeout: 5 * time.Second,
		},
		Loop: LoopConfig{
			TickRate:          16 * time.Millisecond,
			MaxResultsPerTick: 32,
			ResultQueueSize:   128,
		},
		Arena: ArenaConfig{
			MapFile:   "data/yaml/arena_maps.yaml",
			MapID:     "arena",
			DuelMapID: "duel",
			Mode:      "arena",
		},
		PvP: PvPConfig{
			Transport:    "poll",
			PollInterval: 100 * time.Millisecond,
			PushInterval: 50 * time.Millisecond,
		},
		Autopilot: AutopilotConfig{
			Enabled:     true,
			AttackRange: 5,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		DevServer: DevServerConfig{
			BindAddress:      "127.0.0.1:8080",
			MaxBattlesPerDay: 10,
			DefeatCooldown:   30 * time.Minute,
			StartLevel:       1,
			PushInterval:     100 * time.Millisecond,
		},
	}
}
