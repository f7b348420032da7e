package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/model"
)

var combatEpoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTower(id string, at model.Point, spec *catalog.TowerArchetype) *model.Tower {
	return &model.Tower{ID: id, Center: at, Kind: spec.Kind, Spec: spec, OwnerID: "p1"}
}

func newEnemy(seq uint64, at model.Point, progress float64, spec *catalog.EnemyArchetype) *model.Enemy {
	return &model.Enemy{
		Seq:      seq,
		Kind:     spec.Kind,
		Spec:     spec,
		HP:       spec.HP,
		MaxHP:    spec.HP,
		Progress: progress,
		Pos:      at,
	}
}

func TestEffectiveDamageArmorFloor(t *testing.T) {
	tests := []struct {
		raw, armor, want int
	}{
		{2, 3, 0},
		{5, 2, 3},
		{4, 0, 4},
		{3, 3, 0},
	}
	for _, tt := range tests {
		if got := EffectiveDamage(tt.raw, tt.armor); got != tt.want {
			t.Errorf("EffectiveDamage(%d, %d) = %d, want %d", tt.raw, tt.armor, got, tt.want)
		}
	}
}

func TestApplyDamageArmoredTarget(t *testing.T) {
	armored := &catalog.EnemyArchetype{Kind: "blinde", HP: 10, Armor: 3, Speed: 60}
	e := newEnemy(1, model.Point{}, 0, armored)
	if ApplyDamage(e, 2, combatEpoch, nil) {
		t.Fatalf("ApplyDamage() killed an enemy with armor above damage")
	}
	if e.HP != 10 {
		t.Fatalf("HP = %d, want 10 after fully absorbed hit", e.HP)
	}

	plated := &catalog.EnemyArchetype{Kind: "plated", HP: 10, Armor: 2, Speed: 60}
	e = newEnemy(2, model.Point{}, 0, plated)
	ApplyDamage(e, 5, combatEpoch, nil)
	if e.HP != 7 {
		t.Fatalf("HP = %d, want 7", e.HP)
	}
}

func TestApplyDamageSlowOverwrites(t *testing.T) {
	spec := &catalog.EnemyArchetype{Kind: "normal", HP: 100, Speed: 80}
	e := newEnemy(1, model.Point{}, 0, spec)

	ApplyDamage(e, 1, combatEpoch, &catalog.Slow{Factor: 0.3, Duration: 3 * time.Second})
	later := combatEpoch.Add(time.Second)
	ApplyDamage(e, 1, later, &catalog.Slow{Factor: 0.8, Duration: time.Second})

	if e.SlowFactor != 0.8 {
		t.Fatalf("SlowFactor = %v, want 0.8 (last hit wins)", e.SlowFactor)
	}
	if want := later.Add(time.Second); !e.SlowUntil.Equal(want) {
		t.Fatalf("SlowUntil = %v, want %v", e.SlowUntil, want)
	}
}

func TestApplyDamageIgnoresDeadEnemy(t *testing.T) {
	spec := &catalog.EnemyArchetype{Kind: "normal", HP: 1, Speed: 80}
	e := newEnemy(1, model.Point{}, 0, spec)
	if !ApplyDamage(e, 5, combatEpoch, nil) {
		t.Fatalf("first hit should kill")
	}
	if ApplyDamage(e, 5, combatEpoch, nil) {
		t.Fatalf("second hit on a dead enemy reported a kill")
	}
}

func TestResolveTargetsFurthestThenEarliest(t *testing.T) {
	archer := &catalog.TowerArchetype{Kind: "archer", Damage: 1, AttackInterval: time.Second, Range: 200}
	spec := &catalog.EnemyArchetype{Kind: "normal", HP: 5, Speed: 80, Reward: 5}

	tower := newTower("t1", model.Point{X: 100, Y: 100}, archer)
	behind := newEnemy(1, model.Point{X: 100, Y: 120}, 0.1, spec)
	leadA := newEnemy(2, model.Point{X: 100, Y: 140}, 0.4, spec)
	leadB := newEnemy(3, model.Point{X: 100, Y: 160}, 0.4, spec)
	enemies := []*model.Enemy{behind, leadA, leadB}

	var r Resolver
	res := r.Resolve(combatEpoch, []*model.Tower{tower}, enemies)
	if res.Shots != 1 || res.Hits != 1 {
		t.Fatalf("result = %+v, want one shot and one hit", res)
	}
	if leadA.HP != 4 {
		t.Fatalf("earliest enemy at max progress HP = %d, want 4", leadA.HP)
	}
	if leadB.HP != 5 || behind.HP != 5 {
		t.Fatalf("other enemies damaged: leadB=%d behind=%d", leadB.HP, behind.HP)
	}
}

func TestResolveRespectsCooldownAndRange(t *testing.T) {
	archer := &catalog.TowerArchetype{Kind: "archer", Damage: 1, AttackInterval: 800 * time.Millisecond, Range: 120}
	spec := &catalog.EnemyArchetype{Kind: "normal", HP: 5, Speed: 80}

	tower := newTower("t1", model.Point{}, archer)
	far := newEnemy(1, model.Point{X: 121}, 0.9, spec)
	edge := newEnemy(2, model.Point{X: 120}, 0.5, spec)
	enemies := []*model.Enemy{far, edge}

	var r Resolver
	r.Resolve(combatEpoch, []*model.Tower{tower}, enemies)
	if far.HP != 5 {
		t.Fatalf("out-of-range enemy was hit")
	}
	if edge.HP != 4 {
		t.Fatalf("enemy exactly at range edge HP = %d, want 4", edge.HP)
	}
	if want := combatEpoch.Add(800 * time.Millisecond); !tower.NextAttack.Equal(want) {
		t.Fatalf("NextAttack = %v, want %v", tower.NextAttack, want)
	}

	res := r.Resolve(combatEpoch.Add(400*time.Millisecond), []*model.Tower{tower}, enemies)
	if res.Shots != 0 {
		t.Fatalf("tower fired during cooldown: %+v", res)
	}
	res = r.Resolve(combatEpoch.Add(800*time.Millisecond), []*model.Tower{tower}, enemies)
	if res.Shots != 1 || edge.HP != 3 {
		t.Fatalf("tower did not fire once cooldown elapsed: %+v hp=%d", res, edge.HP)
	}
}

func TestResolveSplashAroundTarget(t *testing.T) {
	canon := &catalog.TowerArchetype{
		Kind: "canon", Damage: 3, AttackInterval: 2 * time.Second,
		Range: 200, Splash: true, SplashRadius: 50,
	}
	spec := &catalog.EnemyArchetype{Kind: "tank", HP: 10, Speed: 40}

	tower := newTower("t1", model.Point{}, canon)
	target := newEnemy(1, model.Point{X: 150}, 0.6, spec)
	near := newEnemy(2, model.Point{X: 190}, 0.5, spec)   // 40 from target
	nearTower := newEnemy(3, model.Point{X: 60}, 0.2, spec) // in tower range, 90 from target
	enemies := []*model.Enemy{target, near, nearTower}

	var r Resolver
	res := r.Resolve(combatEpoch, []*model.Tower{tower}, enemies)
	if res.Shots != 1 || res.Hits != 2 {
		t.Fatalf("result = %+v, want 1 shot, 2 hits", res)
	}
	if target.HP != 7 || near.HP != 7 {
		t.Fatalf("splash HP target=%d near=%d, want 7 each", target.HP, near.HP)
	}
	if nearTower.HP != 10 {
		t.Fatalf("enemy outside splash radius was hit: HP=%d", nearTower.HP)
	}
}

func TestResolveZoneAOECooldownOnlyOnHit(t *testing.T) {
	mage := &catalog.TowerArchetype{
		Kind: "mage", Damage: 2, AttackInterval: 1500 * time.Millisecond,
		Range: 100, Splash: true, SplashRadius: 100,
	}
	spec := &catalog.EnemyArchetype{Kind: "normal", HP: 6, Speed: 80}
	tower := newTower("t1", model.Point{}, mage)

	var r Resolver
	res := r.Resolve(combatEpoch, []*model.Tower{tower}, nil)
	if res.Shots != 0 || !tower.NextAttack.IsZero() {
		t.Fatalf("empty AOE pass consumed cooldown: %+v next=%v", res, tower.NextAttack)
	}

	a := newEnemy(1, model.Point{X: 50}, 0.3, spec)
	b := newEnemy(2, model.Point{Y: -90}, 0.2, spec)
	c := newEnemy(3, model.Point{X: 150}, 0.9, spec)
	res = r.Resolve(combatEpoch, []*model.Tower{tower}, []*model.Enemy{a, b, c})
	if res.Shots != 1 || res.Hits != 2 {
		t.Fatalf("result = %+v, want 1 shot and 2 hits", res)
	}
	if a.HP != 4 || b.HP != 4 || c.HP != 6 {
		t.Fatalf("HP a=%d b=%d c=%d, want 4 4 6", a.HP, b.HP, c.HP)
	}
	if want := combatEpoch.Add(1500 * time.Millisecond); !tower.NextAttack.Equal(want) {
		t.Fatalf("NextAttack = %v, want %v", tower.NextAttack, want)
	}
}

func TestResolveKillCallbackAndRetarget(t *testing.T) {
	sniper := &catalog.TowerArchetype{Kind: "sniper", Damage: 10, AttackInterval: time.Second, Range: 300}
	weak := &catalog.EnemyArchetype{Kind: "normal", HP: 3, Speed: 80, Reward: 5}

	t1 := newTower("t1", model.Point{}, sniper)
	t2 := newTower("t2", model.Point{X: 10}, sniper)
	first := newEnemy(1, model.Point{X: 100}, 0.8, weak)
	second := newEnemy(2, model.Point{X: 120}, 0.5, weak)

	var kills []string
	r := Resolver{OnKill: func(victim *model.Enemy, killer *model.Tower) {
		kills = append(kills, killer.ID+">"+string(victim.Kind))
	}}
	res := r.Resolve(combatEpoch, []*model.Tower{t1, t2}, []*model.Enemy{first, second})

	if res.Kills != 2 || res.Reward != 10 {
		t.Fatalf("result = %+v, want 2 kills worth 10", res)
	}
	if first.Alive() || second.Alive() {
		t.Fatalf("both enemies should be dead: first=%d second=%d", first.HP, second.HP)
	}
	if len(kills) != 2 || kills[0] != "t1>normal" || kills[1] != "t2>normal" {
		t.Fatalf("kill callbacks = %v", kills)
	}
}

func TestResolveSlowTower(t *testing.T) {
	givre := &catalog.TowerArchetype{
		Kind: "givre", Damage: 1, AttackInterval: time.Second, Range: 100,
		Slow: &catalog.Slow{Factor: 0.5, Duration: 2 * time.Second},
	}
	spec := &catalog.EnemyArchetype{Kind: "normal", HP: 5, Speed: 80}
	tower := newTower("t1", model.Point{}, givre)
	e := newEnemy(1, model.Point{X: 10}, 0.1, spec)

	var r Resolver
	r.Resolve(combatEpoch, []*model.Tower{tower}, []*model.Enemy{e})
	if got := e.SpeedFactor(combatEpoch.Add(time.Second)); got != 0.5 {
		t.Fatalf("SpeedFactor during slow = %v, want 0.5", got)
	}
	if got := e.SpeedFactor(combatEpoch.Add(2 * time.Second)); got != 1 {
		t.Fatalf("SpeedFactor after expiry = %v, want 1", got)
	}
}
