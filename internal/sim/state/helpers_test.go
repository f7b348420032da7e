package state

import (
	"testing"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/core"
	"github.com/signalsfoundry/td-engine/model"
)

const (
	testTick  = 50 * time.Millisecond
	testSpawn = 1200 * time.Millisecond
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestMatch(t *testing.T, cat *catalog.Catalog, settings Settings, opts ...Option) *Match {
	t.Helper()
	if cat == nil {
		cat = catalog.Default()
	}
	path, err := core.NewPath(core.DefaultWaypoints, settings.TileSize)
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	m, err := NewMatch("M1", "test room", cat, path, settings, opts...)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return m
}

func mustJoin(t *testing.T, m *Match, id string) model.Player {
	t.Helper()
	p, err := m.Join(model.PlayerInfo{ID: id, DisplayName: id, Conn: "conn-" + id})
	if err != nil {
		t.Fatalf("Join(%s): %v", id, err)
	}
	return p
}

func mustStart(t *testing.T, m *Match, host string) {
	t.Helper()
	if err := m.Start(host); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func mustPlace(t *testing.T, m *Match, player string, col, row int, kind catalog.TowerKind) Placement {
	t.Helper()
	p, err := m.PlaceTower(player, col, row, kind)
	if err != nil {
		t.Fatalf("PlaceTower(%s, %d,%d, %s): %v", player, col, row, kind, err)
	}
	return p
}

// driver replays the room's two timers against a match on a synthetic clock.
type driver struct {
	t          *testing.T
	m          *Match
	now        time.Time
	sinceSpawn time.Duration
	spawning   bool
}

func newDriver(t *testing.T, m *Match) *driver {
	return &driver{t: t, m: m, now: testEpoch}
}

func (d *driver) startWave(player string) int {
	d.t.Helper()
	n, err := d.m.StartWave(player)
	if err != nil {
		d.t.Fatalf("StartWave: %v", err)
	}
	d.spawning = true
	d.sinceSpawn = 0
	return n
}

func (d *driver) step() *Snapshot {
	d.t.Helper()
	d.now = d.now.Add(testTick)
	if d.spawning {
		d.sinceSpawn += testTick
		if d.sinceSpawn >= testSpawn {
			d.sinceSpawn = 0
			more, err := d.m.DispatchSpawn(d.now)
			if err != nil {
				d.t.Fatalf("DispatchSpawn: %v", err)
			}
			d.spawning = more
		}
	}
	snap, err := d.m.Advance(d.now)
	if err != nil {
		d.t.Fatalf("Advance: %v", err)
	}
	return snap
}

func (d *driver) runUntil(limit time.Duration, done func(*Snapshot) bool) *Snapshot {
	d.t.Helper()
	for elapsed := time.Duration(0); elapsed < limit; elapsed += testTick {
		snap := d.step()
		if done(snap) {
			return snap
		}
	}
	d.t.Fatalf("condition not reached within %v of simulated time", limit)
	return nil
}

func waveSettled(s *Snapshot) bool {
	return !s.WaveInProgress || s.Lifecycle.Terminal()
}

type recordedRejection struct {
	op, reason string
}

type stubMetricsRecorder struct {
	ticks       int
	players     int
	towers      int
	enemies     int
	kills       int
	livesLost   int
	waves       int
	cleared     int
	rejections  []recordedRejection
	transitions []model.Lifecycle
}

func (r *stubMetricsRecorder) ObserveTick(time.Duration) { r.ticks++ }

func (r *stubMetricsRecorder) AddEntityCounts(players, towers, enemies int) {
	r.players += players
	r.towers += towers
	r.enemies += enemies
}

func (r *stubMetricsRecorder) RecordKills(n int)     { r.kills += n }
func (r *stubMetricsRecorder) RecordLivesLost(n int) { r.livesLost += n }
func (r *stubMetricsRecorder) RecordWaveStarted()    { r.waves++ }
func (r *stubMetricsRecorder) RecordWaveCleared()    { r.cleared++ }

func (r *stubMetricsRecorder) RecordRejection(op, reason string) {
	r.rejections = append(r.rejections, recordedRejection{op: op, reason: reason})
}

func (r *stubMetricsRecorder) RecordLifecycle(_, to model.Lifecycle) {
	r.transitions = append(r.transitions, to)
}
