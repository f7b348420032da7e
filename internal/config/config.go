// Package config gathers the server's tunables from defaults and TD_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/td-engine/core"
	"github.com/signalsfoundry/td-engine/internal/observability"
	"github.com/signalsfoundry/td-engine/internal/room"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

// Config is the full set of server tunables.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string
	SSHAddr     string
	SSHHostKey  string
	CatalogPath string

	Cols     int
	Rows     int
	TileSize float64

	TickInterval  time.Duration
	SpawnInterval time.Duration

	StartingCurrency int
	StartingLives    int
	MaxWaves         int
	ZoneSplitRow     int
	MaxPlayers       int
	BroadcastEvery   int
	ReapAfter        time.Duration

	Tracing observability.TracingConfig
}

// Default returns the standard 20x20 two-player setup.
func Default() Config {
	return Config{
		GRPCAddr:    ":50051",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		SSHAddr:     ":2222",
		SSHHostKey:  ".ssh/td_host_ed25519",

		Cols:     20,
		Rows:     20,
		TileSize: 40,

		TickInterval:  50 * time.Millisecond,
		SpawnInterval: 1200 * time.Millisecond,

		StartingCurrency: 150,
		StartingLives:    20,
		MaxWaves:         20,
		ZoneSplitRow:     10,
		MaxPlayers:       2,
		BroadcastEvery:   1,
		ReapAfter:        5 * time.Minute,

		Tracing: observability.DefaultTracingConfig(),
	}
}

// FromEnv overlays TD_* environment variables on the defaults. Every
// malformed variable is reported, not just the first.
func FromEnv() (Config, error) {
	cfg := Default()
	r := &envReader{}

	r.stringVar("TD_GRPC_ADDR", &cfg.GRPCAddr)
	r.stringVar("TD_HTTP_ADDR", &cfg.HTTPAddr)
	r.stringVar("TD_METRICS_ADDR", &cfg.MetricsAddr)
	r.stringVar("TD_SSH_ADDR", &cfg.SSHAddr)
	r.stringVar("TD_SSH_HOST_KEY", &cfg.SSHHostKey)
	r.stringVar("TD_CATALOG", &cfg.CatalogPath)

	r.intVar("TD_GRID_COLS", &cfg.Cols)
	r.intVar("TD_GRID_ROWS", &cfg.Rows)
	r.floatVar("TD_TILE_SIZE", &cfg.TileSize)

	r.durationVar("TD_TICK_INTERVAL", &cfg.TickInterval)
	r.durationVar("TD_SPAWN_INTERVAL", &cfg.SpawnInterval)

	r.intVar("TD_STARTING_CURRENCY", &cfg.StartingCurrency)
	r.intVar("TD_STARTING_LIVES", &cfg.StartingLives)
	r.intVar("TD_MAX_WAVES", &cfg.MaxWaves)
	r.intVar("TD_ZONE_SPLIT_ROW", &cfg.ZoneSplitRow)
	r.intVar("TD_MAX_PLAYERS", &cfg.MaxPlayers)
	r.intVar("TD_BROADCAST_EVERY", &cfg.BroadcastEvery)
	r.durationVar("TD_REAP_AFTER", &cfg.ReapAfter)

	r.boolVar("TD_TRACING_ENABLED", &cfg.Tracing.Enabled)
	r.stringVar("TD_TRACING_EXPORTER", &cfg.Tracing.Exporter)
	r.stringVar("TD_TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	r.stringVar("TD_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	r.floatVar("TD_TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)

	if len(r.errs) > 0 {
		return cfg, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	return cfg, nil
}

// Validate checks the values that the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Cols <= 0 || c.Rows <= 0 {
		errs = append(errs, fmt.Errorf("grid must be positive, got %dx%d", c.Cols, c.Rows))
	}
	if c.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("tile size must be positive, got %v", c.TileSize))
	} else if c.Cols > 0 && c.Rows > 0 {
		if err := core.MustNewPath(core.DefaultWaypoints, c.TileSize).FitsGrid(c.Cols, c.Rows); err != nil {
			errs = append(errs, err)
		}
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", c.TickInterval))
	}
	if c.SpawnInterval <= 0 {
		errs = append(errs, fmt.Errorf("spawn interval must be positive, got %s", c.SpawnInterval))
	}
	if c.StartingCurrency < 0 {
		errs = append(errs, fmt.Errorf("starting currency must not be negative, got %d", c.StartingCurrency))
	}
	if c.StartingLives <= 0 {
		errs = append(errs, fmt.Errorf("starting lives must be positive, got %d", c.StartingLives))
	}
	if c.MaxWaves < 0 {
		errs = append(errs, fmt.Errorf("max waves must not be negative, got %d", c.MaxWaves))
	}
	if c.MaxPlayers < 1 || c.MaxPlayers > 2 {
		errs = append(errs, fmt.Errorf("max players must be 1 or 2, got %d", c.MaxPlayers))
	}
	if c.ZoneSplitRow <= 0 || c.ZoneSplitRow >= c.Rows {
		errs = append(errs, fmt.Errorf("zone split row %d outside (0,%d)", c.ZoneSplitRow, c.Rows))
	}
	if c.BroadcastEvery < 1 {
		errs = append(errs, fmt.Errorf("broadcast divisor must be at least 1, got %d", c.BroadcastEvery))
	}
	if c.ReapAfter < 0 {
		errs = append(errs, fmt.Errorf("reap delay must not be negative, got %s", c.ReapAfter))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MatchSettings projects the per-match rules.
func (c Config) MatchSettings() state.Settings {
	return state.Settings{
		Cols:             c.Cols,
		Rows:             c.Rows,
		TileSize:         c.TileSize,
		StartingCurrency: c.StartingCurrency,
		StartingLives:    c.StartingLives,
		MaxWaves:         c.MaxWaves,
		ZoneSplitRow:     c.ZoneSplitRow,
		MaxPlayers:       c.MaxPlayers,
	}
}

// RoomConfig projects the timer settings shared by all rooms.
func (c Config) RoomConfig() room.Config {
	return room.Config{
		Settings:       c.MatchSettings(),
		TickInterval:   c.TickInterval,
		SpawnInterval:  c.SpawnInterval,
		BroadcastEvery: c.BroadcastEvery,
		ReapAfter:      c.ReapAfter,
	}
}
