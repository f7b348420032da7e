package core

import (
	"time"

	"github.com/signalsfoundry/td-engine/model"
)

// KillFunc is invoked once per enemy whose hit points drop to zero, before
// the enemy stops being targetable.
type KillFunc func(victim *model.Enemy, killer *model.Tower)

// CombatResult summarises one resolution pass.
type CombatResult struct {
	Shots  int
	Hits   int
	Kills  int
	Reward int
}

// Resolver evaluates tower attacks against live enemies.
//
// Enemies are expected in spawn order (ascending Seq). Single-target towers
// pick the enemy with the greatest progress; on equal progress the earliest
// spawned enemy wins. Killed enemies are left in the slice with HP <= 0 and
// are skipped by every later query in the same pass; the caller compacts.
type Resolver struct {
	OnKill KillFunc
}

// Resolve runs one combat pass at now.
func (r *Resolver) Resolve(now time.Time, towers []*model.Tower, enemies []*model.Enemy) CombatResult {
	var res CombatResult
	for _, t := range towers {
		if now.Before(t.NextAttack) {
			continue
		}
		spec := t.Spec

		if spec.ZoneAOE() {
			hit := false
			for _, e := range enemies {
				if e.Alive() && t.Center.Within(e.Pos, spec.Range) {
					r.hit(&res, t, e, now)
					hit = true
				}
			}
			if hit {
				res.Shots++
				t.NextAttack = now.Add(spec.AttackInterval)
			}
			continue
		}

		target := selectTarget(t, enemies)
		if target == nil {
			continue
		}
		res.Shots++
		if spec.Splash {
			impact := target.Pos
			for _, e := range enemies {
				if e.Alive() && impact.Within(e.Pos, spec.SplashRadius) {
					r.hit(&res, t, e, now)
				}
			}
		} else {
			r.hit(&res, t, target, now)
		}
		t.NextAttack = now.Add(spec.AttackInterval)
	}
	return res
}

// selectTarget returns the live in-range enemy furthest along the path.
func selectTarget(t *model.Tower, enemies []*model.Enemy) *model.Enemy {
	var best *model.Enemy
	for _, e := range enemies {
		if !e.Alive() || !t.Center.Within(e.Pos, t.Spec.Range) {
			continue
		}
		// Strict comparison keeps the earliest spawned enemy on ties.
		if best == nil || e.Progress > best.Progress {
			best = e
		}
	}
	return best
}

func (r *Resolver) hit(res *CombatResult, t *model.Tower, e *model.Enemy, now time.Time) {
	res.Hits++
	if ApplyDamage(e, t.Spec.Damage, now, t.Spec.Slow) {
		res.Kills++
		res.Reward += e.Spec.Reward
		if r.OnKill != nil {
			r.OnKill(e, t)
		}
	}
}
