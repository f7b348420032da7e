package core

import (
	"time"

	"github.com/signalsfoundry/td-engine/model"
)

// Advance returns the progress reached after moving for dt at speed
// (distance units per second) scaled by factor.
func (p *Path) Advance(progress, speed, factor float64, dt time.Duration) float64 {
	return progress + speed*factor*dt.Seconds()/p.length
}

// MoveEnemy advances e along the path at now. It reports true when the enemy
// has reached the exit; the position is then left at the exit point so the
// caller can settle the life loss before removing it.
func (p *Path) MoveEnemy(e *model.Enemy, now time.Time, dt time.Duration) (exited bool) {
	e.Progress = p.Advance(e.Progress, e.Spec.Speed, e.SpeedFactor(now), dt)
	e.Pos = p.PositionAt(e.Progress)
	return e.Progress >= 1
}
