// Package room owns the timers that drive matches and the registry that
// creates and destroys them.
package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
	"github.com/signalsfoundry/td-engine/model"
	"github.com/signalsfoundry/td-engine/timectrl"
)

// Config holds the timer settings shared by every room of a registry.
type Config struct {
	Settings      state.Settings
	TickInterval  time.Duration
	SpawnInterval time.Duration
	// BroadcastEvery publishes one snapshot per this many ticks.
	BroadcastEvery int
	// Waypoints overrides the default path when non-empty.
	Waypoints []model.Cell
	// ReapAfter destroys finished rooms nobody watches once they have been
	// idle this long. Zero disables reaping.
	ReapAfter time.Duration
}

// DefaultConfig matches the standard 20 Hz tick and 1.2s spawn cadence.
func DefaultConfig() Config {
	return Config{
		Settings:       state.DefaultSettings(),
		TickInterval:   50 * time.Millisecond,
		SpawnInterval:  1200 * time.Millisecond,
		BroadcastEvery: 1,
	}
}

// Room binds one match to its tick and spawn timers and fans snapshots out
// to subscribers. Commands go through the room so timers follow the match
// lifecycle.
type Room struct {
	match *state.Match
	cfg   Config
	clock timectrl.SimClock
	log   logging.Logger

	timerMu sync.Mutex
	tick    *timectrl.Ticker
	spawn   *timectrl.Ticker
	closed  bool
	// ticks counts tick callbacks for the broadcast divisor. Only the tick
	// goroutine touches it.
	ticks uint64

	// seatMu orders Join against the final Leave; vacated is set once the
	// last player has left and the room waits to be discarded.
	seatMu  sync.Mutex
	vacated bool

	latest atomic.Pointer[state.Snapshot]
	// finishedAt is the wall time in unix nanoseconds at which the match
	// reached a terminal state, or 0 while it is not finished.
	finishedAt atomic.Int64

	subMu      sync.Mutex
	subs       map[uint64]chan *state.Snapshot
	nextSub    uint64
	subsClosed bool
}

func newRoom(m *state.Match, cfg Config, clock timectrl.SimClock, log logging.Logger) *Room {
	if cfg.BroadcastEvery < 1 {
		cfg.BroadcastEvery = 1
	}
	r := &Room{
		match: m,
		cfg:   cfg,
		clock: clock,
		log:   log.With(logging.MatchID(m.ID())),
		subs:  make(map[uint64]chan *state.Snapshot),
	}
	r.latest.Store(m.Snapshot(clock.Now()))
	return r
}

// ID returns the match id.
func (r *Room) ID() string { return r.match.ID() }

// Match exposes the underlying match for read access.
func (r *Room) Match() *state.Match { return r.match }

// Info returns the lobby summary.
func (r *Room) Info() state.Info { return r.match.Info() }

// Snapshot returns the most recently published snapshot.
func (r *Room) Snapshot() *state.Snapshot { return r.latest.Load() }

// Running reports whether the tick timer is active.
func (r *Room) Running() bool {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	return r.tick != nil
}

// Spawning reports whether the spawn timer is active.
func (r *Room) Spawning() bool {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	return r.spawn != nil && !r.spawn.Stopped()
}

// Join adds a player to the match. A room whose last player has left
// refuses new seats with ErrClosed.
func (r *Room) Join(info model.PlayerInfo) (model.Player, error) {
	r.seatMu.Lock()
	defer r.seatMu.Unlock()
	if r.vacated || r.isClosed() {
		return model.Player{}, ErrClosed
	}
	p, err := r.match.Join(info)
	if err == nil {
		r.refresh()
	}
	return p, err
}

// Leave removes a player. When nobody remains the timers are stopped; the
// registry then discards the room.
func (r *Room) Leave(playerID string) (int, error) {
	r.seatMu.Lock()
	defer r.seatMu.Unlock()
	remaining, err := r.match.Leave(playerID)
	if err != nil {
		return remaining, err
	}
	if remaining == 0 {
		r.vacated = true
		r.stopTimers()
	}
	r.refresh()
	return remaining, nil
}

// Reconnect rebinds a player's connection handle.
func (r *Room) Reconnect(playerID, conn string) (model.Player, error) {
	return r.match.Reconnect(playerID, conn)
}

// SetReady toggles a player's ready flag.
func (r *Room) SetReady(playerID string, ready bool) error {
	if err := r.match.SetReady(playerID, ready); err != nil {
		return err
	}
	r.refresh()
	return nil
}

// Start begins play and the tick timer.
func (r *Room) Start(playerID string) error {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.match.Start(playerID); err != nil {
		return err
	}
	if r.tick != nil {
		r.tick.StopAsync()
	}
	r.ticks = 0
	r.tick = timectrl.NewTicker(r.cfg.TickInterval, r.clock, r.onTick)
	r.tick.Start()
	r.log.Info(context.Background(), "match timers started", logging.Duration("tick_interval", r.cfg.TickInterval))
	r.traceTransition("Start", model.LifecyclePlaying, attribute.String("player_id", playerID))
	r.publish(r.match.Snapshot(r.clock.Now()))
	return nil
}

// Pause freezes the match. Timers keep running but do nothing.
func (r *Room) Pause(playerID string) error {
	if err := r.match.Pause(playerID); err != nil {
		return err
	}
	r.refresh()
	return nil
}

// Resume continues a paused match.
func (r *Room) Resume(playerID string) error {
	if err := r.match.Resume(playerID); err != nil {
		return err
	}
	r.refresh()
	return nil
}

// Reset returns a finished match to the lobby.
func (r *Room) Reset(playerID string) error {
	if err := r.match.Reset(playerID); err != nil {
		return err
	}
	r.finishedAt.Store(0)
	r.traceTransition("Reset", model.LifecycleLobby, attribute.String("player_id", playerID))
	r.refresh()
	return nil
}

// PlaceTower builds a tower. The change is broadcast with the next tick.
func (r *Room) PlaceTower(playerID string, col, row int, kind catalog.TowerKind) (state.Placement, error) {
	return r.match.PlaceTower(playerID, col, row, kind)
}

// SellTower sells a tower. The change is broadcast with the next tick.
func (r *Room) SellTower(playerID, towerID string) (state.Sale, error) {
	return r.match.SellTower(playerID, towerID)
}

// StartWave launches the next wave and its spawn timer.
func (r *Room) StartWave(playerID string) (int, error) {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	n, err := r.match.StartWave(playerID)
	if err != nil {
		return 0, err
	}
	if r.spawn != nil {
		r.spawn.StopAsync()
	}
	var tk *timectrl.Ticker
	tk = timectrl.NewTicker(r.cfg.SpawnInterval, r.clock, func(now time.Time) {
		more, err := r.match.DispatchSpawn(now)
		if err != nil || !more {
			tk.StopAsync()
		}
	})
	r.spawn = tk
	tk.Start()
	return n, nil
}

func (r *Room) onTick(now time.Time) {
	snap, err := r.match.Advance(now)
	if err != nil {
		r.log.Error(context.Background(), "tick failed; stopping match timers", logging.Err(err))
		r.haltFromTick()
		return
	}
	r.ticks++
	terminal := snap.Lifecycle.Terminal()
	if terminal || r.ticks%uint64(r.cfg.BroadcastEvery) == 0 {
		r.publish(snap)
	}
	if terminal {
		r.finishedAt.Store(now.UnixNano())
		r.log.Info(context.Background(), "match finished",
			logging.String("outcome", string(snap.Lifecycle)),
			logging.Int("wave", snap.Wave),
			logging.Int("lives", snap.Lives),
		)
		r.traceTransition("Finish", snap.Lifecycle,
			attribute.Int("wave", snap.Wave),
			attribute.Int("lives", snap.Lives),
		)
		r.haltFromTick()
	}
}

// haltFromTick stops both timers without waiting; it runs on the tick
// goroutine, which cannot wait for itself.
func (r *Room) haltFromTick() {
	r.timerMu.Lock()
	tick, spawn := r.tick, r.spawn
	r.tick, r.spawn = nil, nil
	r.timerMu.Unlock()
	if tick != nil {
		tick.StopAsync()
	}
	if spawn != nil {
		spawn.StopAsync()
	}
}

// stopTimers stops both timers and waits for in-flight callbacks. It is
// idempotent.
func (r *Room) stopTimers() {
	r.timerMu.Lock()
	tick, spawn := r.tick, r.spawn
	r.tick, r.spawn = nil, nil
	r.timerMu.Unlock()
	if tick != nil {
		tick.Stop()
	}
	if spawn != nil {
		spawn.Stop()
	}
}

// Close stops the timers, closes every subscription and releases the
// match's metrics. Safe to call more than once.
func (r *Room) Close() {
	r.timerMu.Lock()
	if r.closed {
		r.timerMu.Unlock()
		return
	}
	r.closed = true
	r.timerMu.Unlock()

	r.stopTimers()

	r.subMu.Lock()
	r.subsClosed = true
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.subMu.Unlock()

	r.match.Retire()
	r.traceTransition("Close", r.match.Lifecycle())
	r.log.Info(context.Background(), "room closed")
}

// FinishedAt returns when the match reached a terminal state.
func (r *Room) FinishedAt() (time.Time, bool) {
	ns := r.finishedAt.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

func (r *Room) isClosed() bool {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	return r.closed
}

// refresh publishes a snapshot outside the tick, after membership or
// lifecycle changes.
func (r *Room) refresh() {
	r.publish(r.match.Snapshot(r.clock.Now()))
}
