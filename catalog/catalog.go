// Package catalog holds the immutable tower, enemy and wave definitions a
// match is played with.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrInvalidCatalog indicates a catalog failed validation.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrUnknownWave indicates a wave number outside 1..WaveCount.
	ErrUnknownWave = errors.New("unknown wave")
)

// TowerKind identifies a tower archetype.
type TowerKind string

// EnemyKind identifies an enemy archetype.
type EnemyKind string

// Slow is a timed multiplicative speed reduction applied on hit.
type Slow struct {
	Factor   float64
	Duration time.Duration
}

// TowerArchetype is the immutable template for a tower kind.
type TowerArchetype struct {
	Kind           TowerKind
	Name           string
	Cost           int
	Damage         int
	AttackInterval time.Duration
	Range          float64
	Splash         bool
	SplashRadius   float64
	Slow           *Slow
	SellRatio      float64
}

// ZoneAOE reports whether the tower damages everything in range rather than
// picking a target.
func (t *TowerArchetype) ZoneAOE() bool {
	return t.Splash && t.SplashRadius == t.Range
}

// Refund is the currency returned when a tower of this kind is sold.
func (t *TowerArchetype) Refund() int {
	// The epsilon keeps 75*0.6 from flooring to 44 on representation error.
	return int(math.Floor(float64(t.Cost)*t.SellRatio + 1e-9))
}

// EnemyArchetype is the immutable template for an enemy kind.
type EnemyArchetype struct {
	Kind   EnemyKind
	Name   string
	HP     int
	Speed  float64
	Armor  int
	Reward int
	Radius float64
}

// Group is one (archetype, count) entry of a wave.
type Group struct {
	Kind  EnemyKind
	Count int
}

// Catalog is a validated, read-only set of archetypes and wave compositions.
// It is safe for concurrent use because nothing mutates it after construction.
type Catalog struct {
	towers     map[TowerKind]*TowerArchetype
	towerOrder []TowerKind
	enemies    map[EnemyKind]*EnemyArchetype
	enemyOrder []EnemyKind
	waves      [][]Group
}

// New builds a catalog from explicit definitions and validates it.
func New(towers []TowerArchetype, enemies []EnemyArchetype, waves [][]Group) (*Catalog, error) {
	c := &Catalog{
		towers:  make(map[TowerKind]*TowerArchetype, len(towers)),
		enemies: make(map[EnemyKind]*EnemyArchetype, len(enemies)),
	}
	for i := range towers {
		t := towers[i]
		if _, dup := c.towers[t.Kind]; dup {
			return nil, fmt.Errorf("%w: duplicate tower %q", ErrInvalidCatalog, t.Kind)
		}
		c.towers[t.Kind] = &t
		c.towerOrder = append(c.towerOrder, t.Kind)
	}
	for i := range enemies {
		e := enemies[i]
		if _, dup := c.enemies[e.Kind]; dup {
			return nil, fmt.Errorf("%w: duplicate enemy %q", ErrInvalidCatalog, e.Kind)
		}
		c.enemies[e.Kind] = &e
		c.enemyOrder = append(c.enemyOrder, e.Kind)
	}
	c.waves = make([][]Group, len(waves))
	for i, w := range waves {
		c.waves[i] = append([]Group(nil), w...)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every archetype and wave for usable values.
func (c *Catalog) Validate() error {
	var errs []error
	if len(c.towers) == 0 {
		errs = append(errs, errors.New("no tower archetypes"))
	}
	for _, kind := range c.towerOrder {
		t := c.towers[kind]
		if kind == "" {
			errs = append(errs, errors.New("tower with empty kind"))
		}
		if t.Cost < 0 {
			errs = append(errs, fmt.Errorf("tower %q: negative cost", kind))
		}
		if t.AttackInterval <= 0 {
			errs = append(errs, fmt.Errorf("tower %q: attack interval must be positive", kind))
		}
		if t.Range <= 0 {
			errs = append(errs, fmt.Errorf("tower %q: range must be positive", kind))
		}
		if t.Splash && t.SplashRadius <= 0 {
			errs = append(errs, fmt.Errorf("tower %q: splash without radius", kind))
		}
		if t.SellRatio < 0 || t.SellRatio > 1 {
			errs = append(errs, fmt.Errorf("tower %q: sell ratio outside [0,1]", kind))
		}
		if t.Slow != nil && (t.Slow.Factor <= 0 || t.Slow.Factor > 1 || t.Slow.Duration <= 0) {
			errs = append(errs, fmt.Errorf("tower %q: invalid slow effect", kind))
		}
	}
	for _, kind := range c.enemyOrder {
		e := c.enemies[kind]
		if kind == "" {
			errs = append(errs, errors.New("enemy with empty kind"))
		}
		if e.HP <= 0 {
			errs = append(errs, fmt.Errorf("enemy %q: hit points must be positive", kind))
		}
		if e.Speed <= 0 {
			errs = append(errs, fmt.Errorf("enemy %q: speed must be positive", kind))
		}
		if e.Armor < 0 {
			errs = append(errs, fmt.Errorf("enemy %q: negative armor", kind))
		}
		if e.Reward < 0 {
			errs = append(errs, fmt.Errorf("enemy %q: negative reward", kind))
		}
		if e.Radius < 0 {
			errs = append(errs, fmt.Errorf("enemy %q: negative radius", kind))
		}
	}
	for i, w := range c.waves {
		for _, g := range w {
			if _, ok := c.enemies[g.Kind]; !ok {
				errs = append(errs, fmt.Errorf("wave %d: unknown enemy %q", i+1, g.Kind))
			}
			if g.Count <= 0 {
				errs = append(errs, fmt.Errorf("wave %d: group %q has non-positive count", i+1, g.Kind))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

// Tower returns the archetype for kind.
func (c *Catalog) Tower(kind TowerKind) (*TowerArchetype, bool) {
	t, ok := c.towers[kind]
	return t, ok
}

// Enemy returns the archetype for kind.
func (c *Catalog) Enemy(kind EnemyKind) (*EnemyArchetype, bool) {
	e, ok := c.enemies[kind]
	return e, ok
}

// Towers lists tower archetypes in declaration order.
func (c *Catalog) Towers() []*TowerArchetype {
	out := make([]*TowerArchetype, 0, len(c.towerOrder))
	for _, k := range c.towerOrder {
		out = append(out, c.towers[k])
	}
	return out
}

// Enemies lists enemy archetypes in declaration order.
func (c *Catalog) Enemies() []*EnemyArchetype {
	out := make([]*EnemyArchetype, 0, len(c.enemyOrder))
	for _, k := range c.enemyOrder {
		out = append(out, c.enemies[k])
	}
	return out
}

// WaveCount is the number of defined waves.
func (c *Catalog) WaveCount() int {
	return len(c.waves)
}

// Wave returns the groups of wave n (1-based). The returned slice is a copy.
func (c *Catalog) Wave(n int) ([]Group, error) {
	if n < 1 || n > len(c.waves) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWave, n)
	}
	return append([]Group(nil), c.waves[n-1]...), nil
}

// TowerKinds returns the sorted tower kinds, handy for help output.
func (c *Catalog) TowerKinds() []string {
	out := make([]string, 0, len(c.towerOrder))
	for _, k := range c.towerOrder {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
