package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/core"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
	"github.com/signalsfoundry/td-engine/model"
	"github.com/signalsfoundry/td-engine/timectrl"
)

type simConfig struct {
	Settings    state.Settings
	Catalog     *catalog.Catalog
	Players     int
	Tick        time.Duration
	Spawn       time.Duration
	Limit       time.Duration
	Accelerated bool
}

type simResult struct {
	Outcome model.Lifecycle
	Waves   int
	Lives   int
	Elapsed time.Duration
}

var simEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// runSimulation drives one match with the same two timers a room uses,
// stepped by a TimeController instead of wall-clock tickers. Between waves
// every player spends their currency on towers next to the path.
func runSimulation(cfg simConfig, out io.Writer, log logging.Logger) (simResult, error) {
	if cfg.Players < 1 || cfg.Players > cfg.Settings.MaxPlayers {
		return simResult{}, fmt.Errorf("players must be between 1 and %d", cfg.Settings.MaxPlayers)
	}
	if cfg.Settings.MaxWaves > cfg.Catalog.WaveCount() {
		cfg.Settings.MaxWaves = cfg.Catalog.WaveCount()
	}
	path, err := core.NewPath(core.DefaultWaypoints, cfg.Settings.TileSize)
	if err != nil {
		return simResult{}, err
	}
	m, err := state.NewMatch("SIM", "headless", cfg.Catalog, path, cfg.Settings, state.WithLogger(log))
	if err != nil {
		return simResult{}, err
	}
	ids := make([]string, cfg.Players)
	for i := range ids {
		ids[i] = fmt.Sprintf("bot%d", i+1)
		if _, err := m.Join(model.PlayerInfo{ID: ids[i], DisplayName: ids[i]}); err != nil {
			return simResult{}, err
		}
	}
	if err := m.Start(ids[0]); err != nil {
		return simResult{}, err
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(simEpoch, cfg.Tick, mode)
	b := newBuilder(m)

	var (
		started   bool
		spawning  bool
		nextSpawn time.Time
		inWave    bool
		runErr    error
	)
	beginWave := func(now time.Time) bool {
		b.build(ids)
		n, err := m.StartWave(ids[0])
		if err != nil {
			runErr = err
			return false
		}
		fmt.Fprintf(out, "wave %2d started  towers=%d\n", n, b.placed)
		spawning, inWave, nextSpawn = true, true, now.Add(cfg.Spawn)
		return true
	}

	tc.AddListener(func(now time.Time) bool {
		if !started {
			started = true
			return beginWave(now)
		}
		if spawning && !now.Before(nextSpawn) {
			more, err := m.DispatchSpawn(now)
			if err != nil {
				runErr = err
				return false
			}
			spawning = more
			nextSpawn = nextSpawn.Add(cfg.Spawn)
		}
		snap, err := m.Advance(now)
		if err != nil {
			runErr = err
			return false
		}
		if snap.Lifecycle.Terminal() {
			fmt.Fprintf(out, "wave %2d ended    lives=%d outcome=%s\n", snap.Wave, snap.Lives, snap.Lifecycle)
			return false
		}
		if inWave && !snap.WaveInProgress {
			inWave = false
			fmt.Fprintf(out, "wave %2d cleared  lives=%d currency=%d\n", snap.Wave, snap.Lives, totalCurrency(snap))
			return beginWave(now)
		}
		return true
	})

	<-tc.Start(cfg.Limit)
	if runErr != nil {
		return simResult{}, runErr
	}
	final := m.Snapshot(tc.Now())
	res := simResult{
		Outcome: final.Lifecycle,
		Waves:   final.Wave,
		Lives:   final.Lives,
		Elapsed: tc.Now().Sub(simEpoch),
	}
	if !final.Lifecycle.Terminal() {
		return res, errors.New("simulation limit reached before the match ended")
	}
	return res, nil
}

func totalCurrency(s *state.Snapshot) int {
	total := 0
	for _, p := range s.Players {
		total += p.Currency
	}
	return total
}

// builder places towers on the free cells closest to the path.
type builder struct {
	match      *state.Match
	candidates []model.Cell
	used       map[model.Cell]bool
	towers     []*catalog.TowerArchetype
	placed     int
}

func newBuilder(m *state.Match) *builder {
	settings := m.Settings()
	path := m.Path()
	pathCells := path.Cells()

	var cells []model.Cell
	dist := make(map[model.Cell]float64)
	for row := range settings.Rows {
		for col := range settings.Cols {
			if path.IsPathCell(col, row) {
				continue
			}
			c := model.Cell{Col: col, Row: row}
			best := math.Inf(1)
			for _, pc := range pathCells {
				best = min(best, math.Hypot(float64(pc.Col-col), float64(pc.Row-row)))
			}
			dist[c] = best
			cells = append(cells, c)
		}
	}
	slices.SortStableFunc(cells, func(a, b model.Cell) int {
		return cmp.Compare(dist[a], dist[b])
	})

	towers := m.Catalog().Towers()
	slices.SortFunc(towers, func(a, b *catalog.TowerArchetype) int { return cmp.Compare(b.Cost, a.Cost) })
	return &builder{match: m, candidates: cells, used: make(map[model.Cell]bool), towers: towers}
}

// build spends each player's currency on the most expensive affordable
// tower, cell by cell.
func (b *builder) build(players []string) {
	for _, id := range players {
		for {
			p, ok := b.match.Player(id)
			if !ok {
				break
			}
			kind, ok := b.affordable(p.Currency)
			if !ok || !b.placeOne(id, kind) {
				break
			}
		}
	}
}

func (b *builder) affordable(currency int) (catalog.TowerKind, bool) {
	for _, t := range b.towers {
		if t.Cost <= currency {
			return t.Kind, true
		}
	}
	return "", false
}

func (b *builder) placeOne(playerID string, kind catalog.TowerKind) bool {
	for _, c := range b.candidates {
		if b.used[c] {
			continue
		}
		_, err := b.match.PlaceTower(playerID, c.Col, c.Row, kind)
		switch {
		case err == nil:
			b.used[c] = true
			b.placed++
			return true
		case errors.Is(err, state.ErrOutOfZone):
			continue
		case errors.Is(err, state.ErrCellOccupied):
			b.used[c] = true
			continue
		default:
			return false
		}
	}
	return false
}
