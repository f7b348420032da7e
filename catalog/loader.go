package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// The on-disk format keeps durations in seconds so files stay hand-editable.
type fileCatalog struct {
	Towers  []fileTower   `json:"towers"`
	Enemies []fileEnemy   `json:"enemies"`
	Waves   [][]fileGroup `json:"waves"`
}

type fileTower struct {
	Kind          string   `json:"kind"`
	Name          string   `json:"name"`
	Cost          int      `json:"cost"`
	Damage        int      `json:"damage"`
	AttackSeconds float64  `json:"attackSeconds"`
	Range         float64  `json:"range"`
	SplashRadius  *float64 `json:"splashRadius,omitempty"`
	SlowFactor    *float64 `json:"slowFactor,omitempty"`
	SlowSeconds   float64  `json:"slowSeconds,omitempty"`
	SellRatio     *float64 `json:"sellRatio,omitempty"`
}

type fileEnemy struct {
	Kind   string  `json:"kind"`
	Name   string  `json:"name"`
	HP     int     `json:"hp"`
	Speed  float64 `json:"speed"`
	Armor  int     `json:"armor"`
	Reward int     `json:"reward"`
	Radius float64 `json:"radius"`
}

type fileGroup struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Load parses a JSON catalog. Sections that are absent fall back to the
// built-in definitions, so a file may override only the wave table.
func Load(r io.Reader) (*Catalog, error) {
	var doc fileCatalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}

	towers := defaultTowers()
	if len(doc.Towers) > 0 {
		towers = towers[:0]
		for _, ft := range doc.Towers {
			towers = append(towers, ft.archetype())
		}
	}

	enemies := defaultEnemies()
	if len(doc.Enemies) > 0 {
		enemies = enemies[:0]
		for _, fe := range doc.Enemies {
			enemies = append(enemies, EnemyArchetype{
				Kind:   EnemyKind(fe.Kind),
				Name:   fe.Name,
				HP:     fe.HP,
				Speed:  fe.Speed,
				Armor:  fe.Armor,
				Reward: fe.Reward,
				Radius: fe.Radius,
			})
		}
	}

	waves := defaultWaves()
	if len(doc.Waves) > 0 {
		waves = make([][]Group, 0, len(doc.Waves))
		for _, fw := range doc.Waves {
			groups := make([]Group, 0, len(fw))
			for _, fg := range fw {
				groups = append(groups, Group{Kind: EnemyKind(fg.Kind), Count: fg.Count})
			}
			waves = append(waves, groups)
		}
	}

	return New(towers, enemies, waves)
}

// LoadFile reads a JSON catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func (ft fileTower) archetype() TowerArchetype {
	t := TowerArchetype{
		Kind:           TowerKind(ft.Kind),
		Name:           ft.Name,
		Cost:           ft.Cost,
		Damage:         ft.Damage,
		AttackInterval: seconds(ft.AttackSeconds),
		Range:          ft.Range,
		SellRatio:      defaultSellRatio,
	}
	if ft.SplashRadius != nil {
		t.Splash = true
		t.SplashRadius = *ft.SplashRadius
	}
	if ft.SlowFactor != nil {
		t.Slow = &Slow{Factor: *ft.SlowFactor, Duration: seconds(ft.SlowSeconds)}
	}
	if ft.SellRatio != nil {
		t.SellRatio = *ft.SellRatio
	}
	return t
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
