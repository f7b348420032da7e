package state

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/wave"
	"github.com/signalsfoundry/td-engine/model"
)

// Advance applies one simulation tick at now and returns the snapshot of the
// resulting state, taken under the same lock.
//
// Outside the playing state the tick only refreshes the snapshot. A
// terminal match must not be ticked at all: its owner was expected to stop
// the timers, so ErrLifecycleDefect is returned and logged at error level.
func (m *Match) Advance(now time.Time) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle.Terminal() {
		m.log.Error(context.Background(), "tick on terminal match; timers were not stopped",
			logging.String("lifecycle", string(m.lifecycle)))
		return nil, fmt.Errorf("%w: match %s is %s", ErrLifecycleDefect, m.id, m.lifecycle)
	}
	if m.lifecycle != model.LifecyclePlaying {
		return m.snapshotLocked(now), nil
	}

	started := time.Now()
	var dt time.Duration
	if !m.lastTick.IsZero() && now.After(m.lastTick) {
		dt = now.Sub(m.lastTick)
	}
	m.lastTick = now
	m.tick++

	m.stepLocked(now, dt)
	m.reportCountsLocked()
	if m.metrics != nil {
		m.metrics.ObserveTick(time.Since(started))
	}
	return m.snapshotLocked(now), nil
}

func (m *Match) stepLocked(now time.Time, dt time.Duration) {
	if !m.moveEnemiesLocked(now, dt) {
		return
	}

	res := m.resolver.Resolve(now, m.towers, m.enemies)
	if res.Kills > 0 {
		m.enemies = compactLiving(m.enemies)
		if m.metrics != nil {
			m.metrics.RecordKills(res.Kills)
		}
	}

	m.checkWaveCompleteLocked()
}

// moveEnemiesLocked walks every enemy forward. Enemies reaching the exit cost
// a life each. It returns false when the match ended during the move.
func (m *Match) moveEnemiesLocked(now time.Time, dt time.Duration) bool {
	kept := m.enemies[:0]
	lost := 0
	defer func() {
		if lost > 0 && m.metrics != nil {
			m.metrics.RecordLivesLost(lost)
		}
	}()

	for i, e := range m.enemies {
		if !m.path.MoveEnemy(e, now, dt) {
			kept = append(kept, e)
			continue
		}
		m.lives--
		lost++
		m.log.Debug(context.Background(), "enemy reached exit",
			logging.String("enemy_id", e.ID),
			logging.Int("lives", max(m.lives, 0)),
		)
		if m.lives <= 0 {
			m.lives = 0
			m.enemies = append(kept, m.enemies[i+1:]...)
			m.endLocked(model.LifecycleGameOver)
			return false
		}
	}
	clear(m.enemies[len(kept):])
	m.enemies = kept
	return true
}

func (m *Match) checkWaveCompleteLocked() {
	if !m.waveInProgress || !m.spawner.Exhausted() || len(m.enemies) > 0 {
		return
	}
	m.waveInProgress = false
	if m.metrics != nil {
		m.metrics.RecordWaveCleared()
	}
	m.log.Info(context.Background(), "wave cleared",
		logging.Int("wave", m.wave),
		logging.Int("lives", m.lives),
	)
	if m.wave >= m.settings.MaxWaves {
		m.endLocked(model.LifecycleVictory)
	}
}

func (m *Match) endLocked(outcome model.Lifecycle) {
	m.waveInProgress = false
	m.spawner.Reset()
	m.setLifecycleLocked(outcome)
}

// DispatchSpawn materialises the next queued enemy at the path entrance and
// reports whether more remain. While paused nothing is spawned and the queue
// is kept. Once the match has ended dispatch is over and false is returned.
func (m *Match) DispatchSpawn(now time.Time) (more bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.lifecycle {
	case model.LifecyclePlaying:
	case model.LifecyclePaused:
		return !m.spawner.Exhausted(), nil
	default:
		return false, nil
	}

	kind, ok := m.spawner.Next()
	if !ok {
		return false, nil
	}
	spec, known := m.catalog.Enemy(kind)
	if !known {
		m.log.Warn(context.Background(), "skipping spawn of unknown enemy kind", logging.String("kind", string(kind)))
		return !m.spawner.Exhausted(), nil
	}

	m.enemySeq++
	e := &model.Enemy{
		ID:    fmt.Sprintf("e%d", m.enemySeq),
		Seq:   m.enemySeq,
		Kind:  kind,
		Spec:  spec,
		HP:    spec.HP,
		MaxHP: spec.HP,
		Pos:   m.path.PositionAt(0),
	}
	m.enemies = append(m.enemies, e)
	m.reportCountsLocked()
	return !m.spawner.Exhausted(), nil
}

// SpawnsRemaining returns how many enemies of the current wave are still queued.
func (m *Match) SpawnsRemaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spawner.Remaining()
}

func (m *Match) spawnQueue(n int) []catalog.EnemyKind {
	return wave.SpawnQueue(m.catalog, n)
}

// compactLiving drops dead enemies in place, preserving spawn order.
func compactLiving(enemies []*model.Enemy) []*model.Enemy {
	kept := enemies[:0]
	for _, e := range enemies {
		if e.Alive() {
			kept = append(kept, e)
		}
	}
	clear(enemies[len(kept):])
	return kept
}
