package model

import (
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
)

// Lifecycle is the match state machine position.
type Lifecycle string

const (
	LifecycleLobby    Lifecycle = "lobby"
	LifecyclePlaying  Lifecycle = "playing"
	LifecyclePaused   Lifecycle = "paused"
	LifecycleGameOver Lifecycle = "gameover"
	LifecycleVictory  Lifecycle = "victory"
)

// Terminal reports whether no further mutation is allowed without a reset.
func (l Lifecycle) Terminal() bool {
	return l == LifecycleGameOver || l == LifecycleVictory
}

// PlayerInfo is what the identity/session provider hands over at join time.
// The engine treats every field as opaque.
type PlayerInfo struct {
	ID          string
	DisplayName string
	Conn        string
}

// Player is a participant of one match.
type Player struct {
	ID          string
	DisplayName string
	Conn        string
	Currency    int
	Zone        int
	Ready       bool
}

// Tower is a placed defensive structure. Stats live on the archetype.
type Tower struct {
	ID      string
	Cell    Cell
	Center  Point
	Kind    catalog.TowerKind
	Spec    *catalog.TowerArchetype
	OwnerID string

	// NextAttack is the earliest time the tower may fire again.
	NextAttack time.Time
}

// Enemy is a live attacker walking the path.
type Enemy struct {
	ID   string
	Seq  uint64
	Kind catalog.EnemyKind
	Spec *catalog.EnemyArchetype

	HP       int
	MaxHP    int
	Progress float64
	Pos      Point

	SlowUntil  time.Time
	SlowFactor float64
}

// Alive reports whether the enemy still has hit points.
func (e *Enemy) Alive() bool {
	return e != nil && e.HP > 0
}

// SpeedFactor returns the active slow multiplier at now (1 when not slowed).
func (e *Enemy) SpeedFactor(now time.Time) float64 {
	if e.SlowFactor > 0 && now.Before(e.SlowUntil) {
		return e.SlowFactor
	}
	return 1
}
