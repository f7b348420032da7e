package state

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/model"
)

func TestWaveOneEndToEnd(t *testing.T) {
	settings := DefaultSettings()
	settings.StartingCurrency = 500
	rec := &stubMetricsRecorder{}
	m := newTestMatch(t, nil, settings, WithMetricsRecorder(rec))
	mustJoin(t, m, "p1")
	mustStart(t, m, "p1")

	// Two mages next to the entrance cover the first 260 units of path.
	mustPlace(t, m, "p1", 2, 1, catalog.Mage)
	mustPlace(t, m, "p1", 2, 2, catalog.Mage)

	d := newDriver(t, m)
	d.startWave("p1")
	snap := d.runUntil(time.Minute, waveSettled)

	if snap.Lifecycle != model.LifecyclePlaying {
		t.Fatalf("lifecycle = %s, want playing", snap.Lifecycle)
	}
	if snap.WaveInProgress || snap.Wave != 1 {
		t.Fatalf("wave=%d inProgress=%v, want wave 1 settled", snap.Wave, snap.WaveInProgress)
	}
	if len(snap.Enemies) != 0 {
		t.Fatalf("enemies left: %+v", snap.Enemies)
	}
	if snap.Lives != settings.StartingLives {
		t.Fatalf("lives = %d, want %d", snap.Lives, settings.StartingLives)
	}
	p, _ := snap.Player("p1")
	if want := 500 - 2*200 + 8*10; p.Currency != want {
		t.Fatalf("currency = %d, want %d", p.Currency, want)
	}
	if m.SpawnsRemaining() != 0 {
		t.Fatalf("spawns remaining = %d", m.SpawnsRemaining())
	}
	if rec.kills != 8 || rec.waves != 1 || rec.cleared != 1 || rec.livesLost != 0 {
		t.Fatalf("metrics kills=%d waves=%d cleared=%d lost=%d", rec.kills, rec.waves, rec.cleared, rec.livesLost)
	}
	if rec.enemies != 0 || rec.towers != 2 {
		t.Fatalf("entity gauges enemies=%d towers=%d", rec.enemies, rec.towers)
	}
}

func TestRewardsCreditEveryPlayer(t *testing.T) {
	settings := DefaultSettings()
	settings.StartingCurrency = 500
	m := newTestMatch(t, nil, settings)
	mustJoin(t, m, "p1")
	mustJoin(t, m, "p2")
	mustStart(t, m, "p1")
	mustPlace(t, m, "p1", 2, 1, catalog.Mage)
	mustPlace(t, m, "p1", 2, 2, catalog.Mage)

	d := newDriver(t, m)
	d.startWave("p1")
	snap := d.runUntil(time.Minute, waveSettled)

	host, _ := snap.Player("p1")
	guest, _ := snap.Player("p2")
	if host.Currency != 100+80 || guest.Currency != 500+80 {
		t.Fatalf("currency host=%d guest=%d, want 180 and 580", host.Currency, guest.Currency)
	}
}

func victoryCatalog(t *testing.T, waves int) *catalog.Catalog {
	t.Helper()
	towers := []catalog.TowerArchetype{{
		Kind: "nova", Cost: 10, Damage: 1000, AttackInterval: 50 * time.Millisecond,
		Range: 2000, Splash: true, SplashRadius: 2000, SellRatio: 0.5,
	}}
	enemies := []catalog.EnemyArchetype{{Kind: catalog.Normal, HP: 3, Speed: 80, Reward: 10, Radius: 12}}
	defs := make([][]catalog.Group, waves)
	for i := range defs {
		defs[i] = []catalog.Group{{Kind: catalog.Normal, Count: 2}}
	}
	cat, err := catalog.New(towers, enemies, defs)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func TestFinalWaveClearedIsVictory(t *testing.T) {
	rec := &stubMetricsRecorder{}
	m := newTestMatch(t, victoryCatalog(t, 20), DefaultSettings(), WithMetricsRecorder(rec))
	mustJoin(t, m, "p1")
	mustStart(t, m, "p1")
	mustPlace(t, m, "p1", 5, 5, "nova")

	d := newDriver(t, m)
	var snap *Snapshot
	for wave := 1; wave <= 20; wave++ {
		if n := d.startWave("p1"); n != wave {
			t.Fatalf("StartWave = %d, want %d", n, wave)
		}
		snap = d.runUntil(time.Minute, waveSettled)
		if wave < 20 && snap.Lifecycle != model.LifecyclePlaying {
			t.Fatalf("wave %d ended match early: %s", wave, snap.Lifecycle)
		}
	}

	if snap.Lifecycle != model.LifecycleVictory {
		t.Fatalf("lifecycle after wave 20 = %s, want victory", snap.Lifecycle)
	}
	if snap.Lives <= 0 || snap.Wave != 20 {
		t.Fatalf("lives=%d wave=%d", snap.Lives, snap.Wave)
	}
	if _, err := m.StartWave("p1"); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("StartWave after victory error = %v, want ErrNotPlaying", err)
	}
	if _, err := m.Advance(d.now.Add(testTick)); !errors.Is(err, ErrLifecycleDefect) {
		t.Fatalf("Advance after victory error = %v, want ErrLifecycleDefect", err)
	}
	if got := rec.transitions[len(rec.transitions)-1]; got != model.LifecycleVictory {
		t.Fatalf("last recorded transition = %s", got)
	}
}

func TestLivesExhaustedIsGameOver(t *testing.T) {
	settings := DefaultSettings()
	settings.StartingLives = 2
	rec := &stubMetricsRecorder{}
	m := newTestMatch(t, nil, settings, WithMetricsRecorder(rec))
	mustJoin(t, m, "p1")
	mustStart(t, m, "p1")

	d := newDriver(t, m)
	d.startWave("p1")
	snap := d.runUntil(2*time.Minute, func(s *Snapshot) bool { return s.Lifecycle.Terminal() })

	if snap.Lifecycle != model.LifecycleGameOver {
		t.Fatalf("lifecycle = %s, want gameover", snap.Lifecycle)
	}
	if snap.Lives != 0 {
		t.Fatalf("lives = %d, want 0", snap.Lives)
	}
	if snap.WaveInProgress {
		t.Fatalf("wave still marked in progress after game over")
	}
	if rec.livesLost != 2 {
		t.Fatalf("lives lost = %d, want 2", rec.livesLost)
	}
	if _, err := m.PlaceTower("p1", 5, 5, catalog.Archer); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("PlaceTower after game over error = %v, want ErrNotPlaying", err)
	}
	if more, err := m.DispatchSpawn(d.now); more || err != nil {
		t.Fatalf("DispatchSpawn after game over = %v, %v", more, err)
	}
}

func TestResetReturnsTerminalMatchToLobby(t *testing.T) {
	settings := DefaultSettings()
	settings.StartingLives = 1
	m := newTestMatch(t, nil, settings)
	mustJoin(t, m, "p1")
	mustJoin(t, m, "p2")

	if err := m.Reset("p1"); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("Reset in lobby error = %v, want ErrNotTerminal", err)
	}
	mustStart(t, m, "p1")
	mustPlace(t, m, "p1", 19, 0, catalog.Archer)

	d := newDriver(t, m)
	d.startWave("p1")
	d.runUntil(2*time.Minute, func(s *Snapshot) bool { return s.Lifecycle.Terminal() })

	if err := m.Reset("p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("Reset by guest error = %v, want ErrNotHost", err)
	}
	if err := m.Reset("p1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := m.Snapshot(d.now)
	if snap.Lifecycle != model.LifecycleLobby || snap.Wave != 0 || snap.Lives != 1 {
		t.Fatalf("after reset: %+v", snap)
	}
	if len(snap.Towers) != 0 || len(snap.Enemies) != 0 {
		t.Fatalf("board not cleared: towers=%d enemies=%d", len(snap.Towers), len(snap.Enemies))
	}
	mustStart(t, m, "p1")
}

func TestPauseFreezesSimulation(t *testing.T) {
	m := newTestMatch(t, nil, DefaultSettings())
	mustJoin(t, m, "p1")
	mustJoin(t, m, "p2")
	mustStart(t, m, "p1")
	if _, err := m.StartWave("p1"); err != nil {
		t.Fatalf("StartWave: %v", err)
	}

	now := testEpoch
	if _, err := m.DispatchSpawn(now); err != nil {
		t.Fatalf("DispatchSpawn: %v", err)
	}
	m.Advance(now)
	now = now.Add(time.Second)
	before, _ := m.Advance(now)
	if got := before.Enemies[0].Y; got != 100 {
		t.Fatalf("enemy y after 1s = %v, want 100", got)
	}

	if err := m.Pause("p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("Pause by guest error = %v, want ErrNotHost", err)
	}
	if err := m.Resume("p1"); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Resume while playing error = %v, want ErrNotPaused", err)
	}
	if err := m.Pause("p1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := m.Pause("p1"); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("second Pause error = %v, want ErrNotPlaying", err)
	}

	now = now.Add(10 * time.Second)
	paused, err := m.Advance(now)
	if err != nil {
		t.Fatalf("Advance while paused: %v", err)
	}
	if paused.Lifecycle != model.LifecyclePaused || paused.Enemies[0].Y != 100 {
		t.Fatalf("paused snapshot moved: %+v", paused.Enemies[0])
	}
	if more, _ := m.DispatchSpawn(now); !more {
		t.Fatalf("DispatchSpawn while paused reported queue exhausted")
	}
	if len(m.Snapshot(now).Enemies) != 1 {
		t.Fatalf("enemy spawned while paused")
	}
	if _, err := m.PlaceTower("p1", 5, 5, catalog.Archer); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("PlaceTower while paused error = %v, want ErrNotPlaying", err)
	}

	if err := m.Resume("p1"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	// The first tick after resuming starts a new baseline.
	now = now.Add(time.Second)
	resumed, _ := m.Advance(now)
	if resumed.Enemies[0].Y != 100 {
		t.Fatalf("enemy jumped after resume: y=%v", resumed.Enemies[0].Y)
	}
	now = now.Add(250 * time.Millisecond)
	moved, _ := m.Advance(now)
	if moved.Enemies[0].Y != 120 {
		t.Fatalf("enemy y after resume tick = %v, want 120", moved.Enemies[0].Y)
	}
}

func TestSnapshotProjection(t *testing.T) {
	m := newTestMatch(t, nil, DefaultSettings())
	mustJoin(t, m, "p1")
	mustStart(t, m, "p1")
	mustPlace(t, m, "p1", 2, 1, catalog.Givre)
	if _, err := m.StartWave("p1"); err != nil {
		t.Fatalf("StartWave: %v", err)
	}

	now := testEpoch
	m.DispatchSpawn(now)
	m.Advance(now)
	now = now.Add(333 * time.Millisecond)
	snap, err := m.Advance(now)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if snap.MatchID != "M1" || snap.MaxWaves != 20 || snap.Wave != 1 || !snap.WaveInProgress {
		t.Fatalf("snapshot header = %+v", snap)
	}
	if snap.ServerTime != now.UnixMilli() || snap.Tick != 2 {
		t.Fatalf("serverTime=%d tick=%d", snap.ServerTime, snap.Tick)
	}
	if len(snap.Towers) != 1 || snap.Towers[0] != (TowerView{ID: "t1", Col: 2, Row: 1, ArchetypeID: "givre", OwnerID: "p1"}) {
		t.Fatalf("towers = %+v", snap.Towers)
	}
	if len(snap.Enemies) != 1 {
		t.Fatalf("enemies = %+v", snap.Enemies)
	}
	e := snap.Enemies[0]
	if e.ID != "e1" || e.ArchetypeID != "normal" || e.MaxHP != 3 || e.Radius != 12 {
		t.Fatalf("enemy = %+v", e)
	}
	if e.X != math.Round(e.X) || e.Y != math.Round(e.Y) {
		t.Fatalf("coordinates not rounded: %v,%v", e.X, e.Y)
	}
	// The frost tower fired on the first tick.
	if e.HP != 2 || e.SlowExpiry != testEpoch.Add(2*time.Second).UnixMilli() {
		t.Fatalf("enemy after frost hit = %+v", e)
	}
}

func TestConcurrentCommandsAndTicks(t *testing.T) {
	settings := DefaultSettings()
	settings.StartingCurrency = 1_000_000
	m := newTestMatch(t, nil, settings)
	mustJoin(t, m, "p1")
	mustJoin(t, m, "p2")
	mustStart(t, m, "p1")
	if _, err := m.StartWave("p1"); err != nil {
		t.Fatalf("StartWave: %v", err)
	}

	var wg sync.WaitGroup
	now := testEpoch
	var clockMu sync.Mutex
	tickAt := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		now = now.Add(testTick)
		return now
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := m.Advance(tickAt()); err != nil {
				t.Errorf("Advance: %v", err)
				return
			}
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 8; i++ {
			m.DispatchSpawn(tickAt())
		}
	}()
	for _, player := range []struct {
		id   string
		rows [2]int
	}{{"p1", [2]int{0, 10}}, {"p2", [2]int{10, 20}}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := player.rows[0]; row < player.rows[1]; row++ {
				for col := 0; col < 20; col++ {
					placed, err := m.PlaceTower(player.id, col, row, catalog.Archer)
					if err != nil {
						continue
					}
					if (col+row)%2 == 0 {
						if _, err := m.SellTower(player.id, placed.Tower.ID); err != nil {
							t.Errorf("SellTower(%s): %v", placed.Tower.ID, err)
						}
					}
				}
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot(now)
	seen := make(map[model.Cell]bool)
	for _, tw := range snap.Towers {
		c := model.Cell{Col: tw.Col, Row: tw.Row}
		if seen[c] {
			t.Fatalf("two towers on %s", c)
		}
		seen[c] = true
		if m.Path().IsPathCell(tw.Col, tw.Row) {
			t.Fatalf("tower on path cell %s", c)
		}
	}
	for _, p := range snap.Players {
		if p.Currency < 0 {
			t.Fatalf("negative currency for %s", p.ID)
		}
	}
}
