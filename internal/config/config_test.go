package config

import (
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TD_TEST_SET", "value")
	t.Setenv("TD_TEST_EMPTY", "")

	if got := GetEnv("TD_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("GetEnv(set) = %q, want value", got)
	}
	if got := GetEnv("TD_TEST_EMPTY", "fallback"); got != "" {
		t.Fatalf("GetEnv(empty) = %q, want empty string", got)
	}
	if got := GetEnv("TD_TEST_UNSET_XYZ", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv(unset) = %q, want fallback", got)
	}
}

func TestDefaultMatchesStandardRules(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if got, want := cfg.MatchSettings(), state.DefaultSettings(); got != want {
		t.Fatalf("MatchSettings = %+v, want %+v", got, want)
	}
	rc := cfg.RoomConfig()
	if rc.TickInterval != 50*time.Millisecond || rc.SpawnInterval != 1200*time.Millisecond || rc.BroadcastEvery != 1 || rc.ReapAfter != 5*time.Minute {
		t.Fatalf("RoomConfig = %+v", rc)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TD_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("TD_TICK_INTERVAL", "25ms")
	t.Setenv("TD_STARTING_LIVES", "5")
	t.Setenv("TD_TILE_SIZE", "32")
	t.Setenv("TD_MAX_PLAYERS", "1")
	t.Setenv("TD_TRACING_ENABLED", "true")
	t.Setenv("TD_TRACING_EXPORTER", "otlp")
	t.Setenv("TD_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TD_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("TD_REAP_AFTER", "90s")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.GRPCAddr != "127.0.0.1:6000" {
		t.Errorf("GRPCAddr = %q", cfg.GRPCAddr)
	}
	if cfg.TickInterval != 25*time.Millisecond {
		t.Errorf("TickInterval = %s", cfg.TickInterval)
	}
	if cfg.StartingLives != 5 || cfg.TileSize != 32 || cfg.MaxPlayers != 1 {
		t.Errorf("lives=%d tile=%v players=%d", cfg.StartingLives, cfg.TileSize, cfg.MaxPlayers)
	}
	if tr := cfg.Tracing; !tr.Enabled || tr.Exporter != "otlp" || tr.Endpoint != "collector:4317" || tr.SampleRatio != 0.25 || tr.ServiceName != "td-engine" {
		t.Errorf("Tracing = %+v", tr)
	}
	if cfg.ReapAfter != 90*time.Second {
		t.Errorf("ReapAfter = %s", cfg.ReapAfter)
	}
	if cfg.SpawnInterval != 1200*time.Millisecond {
		t.Errorf("unset SpawnInterval changed to %s", cfg.SpawnInterval)
	}
}

func TestFromEnvReportsEveryMalformedVariable(t *testing.T) {
	t.Setenv("TD_GRID_COLS", "twenty")
	t.Setenv("TD_SPAWN_INTERVAL", "soon")
	t.Setenv("TD_TRACING_ENABLED", "maybe")

	_, err := FromEnv()
	if err == nil {
		t.Fatalf("FromEnv accepted malformed values")
	}
	for _, key := range []string{"TD_GRID_COLS", "TD_SPAWN_INTERVAL", "TD_TRACING_ENABLED"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero grid", func(c *Config) { c.Cols = 0 }, "grid"},
		{"zero tile", func(c *Config) { c.TileSize = 0 }, "tile size"},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, "tick interval"},
		{"zero spawn", func(c *Config) { c.SpawnInterval = 0 }, "spawn interval"},
		{"negative currency", func(c *Config) { c.StartingCurrency = -1 }, "currency"},
		{"no lives", func(c *Config) { c.StartingLives = 0 }, "lives"},
		{"three players", func(c *Config) { c.MaxPlayers = 3 }, "max players"},
		{"split outside grid", func(c *Config) { c.ZoneSplitRow = 20 }, "zone split"},
		{"split at top", func(c *Config) { c.ZoneSplitRow = 0 }, "zone split"},
		{"zero divisor", func(c *Config) { c.BroadcastEvery = 0 }, "broadcast"},
		{"negative reap delay", func(c *Config) { c.ReapAfter = -time.Second }, "reap delay"},
		{"grid smaller than map", func(c *Config) { c.Cols, c.Rows, c.ZoneSplitRow = 10, 10, 5 }, "outside 10x10 grid"},
		{"exit cut off", func(c *Config) { c.Rows = 19 }, "not adjacent to the 20x19 grid"},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "exporter"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}
