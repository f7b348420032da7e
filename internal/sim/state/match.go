// internal/sim/state/match.go
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/core"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/wave"
	"github.com/signalsfoundry/td-engine/model"
)

// Settings are the per-match tunables. They must be consistent with each
// other and with the path; internal/config validates them.
type Settings struct {
	Cols             int
	Rows             int
	TileSize         float64
	StartingCurrency int
	StartingLives    int
	MaxWaves         int
	ZoneSplitRow     int
	MaxPlayers       int
}

// DefaultSettings mirrors the standard 20x20 two-player map.
func DefaultSettings() Settings {
	return Settings{
		Cols:             20,
		Rows:             20,
		TileSize:         40,
		StartingCurrency: 150,
		StartingLives:    20,
		MaxWaves:         20,
		ZoneSplitRow:     10,
		MaxPlayers:       2,
	}
}

// MetricsRecorder receives match activity. Entity counts are reported as
// deltas so one recorder can aggregate any number of matches.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	AddEntityCounts(players, towers, enemies int)
	RecordKills(n int)
	RecordLivesLost(n int)
	RecordWaveStarted()
	RecordWaveCleared()
	RecordRejection(op, reason string)
	RecordLifecycle(from, to model.Lifecycle)
}

// Option customises Match construction.
type Option func(*Match)

// WithMetricsRecorder attaches an optional recorder.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(m *Match) {
		m.metrics = r
	}
}

// WithLogger sets the structured logger. Log lines carry match_id.
func WithLogger(l logging.Logger) Option {
	return func(m *Match) {
		if l != nil {
			m.log = l
		}
	}
}

// Match is the authoritative state of one game. All exported methods are
// safe for concurrent use; they serialise on a single per-match mutex so a
// command never interleaves with a tick.
type Match struct {
	mu sync.Mutex

	id       string
	name     string
	settings Settings
	catalog  *catalog.Catalog
	path     *core.Path
	resolver core.Resolver

	log     logging.Logger
	metrics MetricsRecorder

	lifecycle      model.Lifecycle
	lives          int
	wave           int
	waveInProgress bool

	// players is kept in join order; the first entry is the host.
	players []*model.Player
	// towers is kept in placement order.
	towers      []*model.Tower
	towerByCell map[model.Cell]*model.Tower
	// enemies is kept in spawn order, which the resolver relies on for
	// target tie-breaks.
	enemies []*model.Enemy
	spawner wave.Dispatcher

	towerSeq uint64
	enemySeq uint64
	tick     uint64

	// lastTick is the time of the previous applied tick. The zero value means
	// the next tick starts a new elapsed-time baseline.
	lastTick time.Time

	reported entityCounts
}

type entityCounts struct {
	players, towers, enemies int
}

// NewMatch creates a match in the lobby state.
func NewMatch(id, name string, cat *catalog.Catalog, path *core.Path, settings Settings, opts ...Option) (*Match, error) {
	if id == "" {
		return nil, fmt.Errorf("new match: empty id")
	}
	if cat == nil || path == nil {
		return nil, fmt.Errorf("new match %s: catalog and path are required", id)
	}
	m := &Match{
		id:          id,
		name:        name,
		settings:    settings,
		catalog:     cat,
		path:        path,
		log:         logging.Noop(),
		lifecycle:   model.LifecycleLobby,
		lives:       settings.StartingLives,
		towerByCell: make(map[model.Cell]*model.Tower),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.log = m.log.With(logging.MatchID(id))
	m.resolver.OnKill = m.creditKill
	return m, nil
}

// ID returns the match identifier.
func (m *Match) ID() string { return m.id }

// Name returns the display name of the match.
func (m *Match) Name() string { return m.name }

// Settings returns the tunables the match was created with.
func (m *Match) Settings() Settings { return m.settings }

// Path returns the immutable path geometry.
func (m *Match) Path() *core.Path { return m.path }

// Catalog returns the archetype catalog.
func (m *Match) Catalog() *catalog.Catalog { return m.catalog }

// Lifecycle returns the current lifecycle state.
func (m *Match) Lifecycle() model.Lifecycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifecycle
}

// WaveInProgress reports whether a wave is still spawning or has live enemies.
func (m *Match) WaveInProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waveInProgress
}

// HasPlayer reports whether playerID holds a slot.
func (m *Match) HasPlayer(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerLocked(playerID) != nil
}

// PlayerCount returns the number of participants.
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// Player returns a copy of one participant.
func (m *Match) Player(playerID string) (model.Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.playerLocked(playerID)
	if p == nil {
		return model.Player{}, false
	}
	return *p, true
}

// Info is the lobby-facing summary of a match.
type Info struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	HostID      string          `json:"hostId"`
	PlayerCount int             `json:"playerCount"`
	MaxPlayers  int             `json:"maxPlayers"`
	Lifecycle   model.Lifecycle `json:"state"`
}

// Info returns the lobby summary.
func (m *Match) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := Info{
		ID:          m.id,
		Name:        m.name,
		PlayerCount: len(m.players),
		MaxPlayers:  m.settings.MaxPlayers,
		Lifecycle:   m.lifecycle,
	}
	if host := m.hostLocked(); host != nil {
		info.HostID = host.ID
	}
	return info
}

// Retire zeroes this match's contribution to aggregated entity gauges. The
// registry calls it when the match is destroyed.
func (m *Match) Retire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.AddEntityCounts(-m.reported.players, -m.reported.towers, -m.reported.enemies)
	}
	m.reported = entityCounts{}
}

func (m *Match) playerLocked(playerID string) *model.Player {
	for _, p := range m.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (m *Match) hostLocked() *model.Player {
	if len(m.players) == 0 {
		return nil
	}
	return m.players[0]
}

func (m *Match) isHostLocked(playerID string) bool {
	host := m.hostLocked()
	return host != nil && host.ID == playerID
}

func (m *Match) setLifecycleLocked(to model.Lifecycle) {
	from := m.lifecycle
	if from == to {
		return
	}
	m.lifecycle = to
	m.log.Info(context.Background(), "match lifecycle changed",
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.Int("wave", m.wave),
		logging.Int("lives", m.lives),
	)
	if m.metrics != nil {
		m.metrics.RecordLifecycle(from, to)
	}
}

// reject logs and counts a refused command, returning err unchanged.
func (m *Match) reject(op string, err error, fields ...logging.Field) error {
	reason := ReasonCode(err)
	fields = append(fields, logging.String("op", op), logging.String("reason", reason))
	m.log.Debug(context.Background(), "command rejected", fields...)
	if m.metrics != nil {
		m.metrics.RecordRejection(op, reason)
	}
	return err
}

func (m *Match) reportCountsLocked() {
	if m.metrics == nil {
		return
	}
	now := entityCounts{players: len(m.players), towers: len(m.towers), enemies: len(m.enemies)}
	dp := now.players - m.reported.players
	dt := now.towers - m.reported.towers
	de := now.enemies - m.reported.enemies
	if dp != 0 || dt != 0 || de != 0 {
		m.metrics.AddEntityCounts(dp, dt, de)
	}
	m.reported = now
}

// creditKill pays the enemy's reward to every participant.
func (m *Match) creditKill(victim *model.Enemy, killer *model.Tower) {
	for _, p := range m.players {
		p.Currency += victim.Spec.Reward
	}
	m.log.Debug(context.Background(), "enemy killed",
		logging.String("enemy_id", victim.ID),
		logging.String("tower_id", killer.ID),
		logging.Int("reward", victim.Spec.Reward),
	)
}

// clearBoardLocked drops towers, enemies and any pending spawns.
func (m *Match) clearBoardLocked() {
	m.towers = nil
	m.towerByCell = make(map[model.Cell]*model.Tower)
	m.enemies = nil
	m.spawner.Reset()
	m.waveInProgress = false
	m.wave = 0
	m.lives = m.settings.StartingLives
	m.lastTick = time.Time{}
}
