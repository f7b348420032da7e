package core

import (
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/model"
)

// EffectiveDamage is raw damage reduced by flat armor, floored at zero.
func EffectiveDamage(raw, armor int) int {
	return max(0, raw-armor)
}

// ApplyDamage hits e and reports whether this hit killed it. A slow effect,
// when present, overwrites any earlier one rather than stacking.
func ApplyDamage(e *model.Enemy, raw int, now time.Time, slow *catalog.Slow) (killed bool) {
	if !e.Alive() {
		return false
	}
	e.HP -= EffectiveDamage(raw, e.Spec.Armor)
	if slow != nil {
		e.SlowUntil = now.Add(slow.Duration)
		e.SlowFactor = slow.Factor
	}
	return e.HP <= 0
}
