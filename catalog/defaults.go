package catalog

import "time"

// Default tower kinds.
const (
	Archer TowerKind = "archer"
	Canon  TowerKind = "canon"
	Mage   TowerKind = "mage"
	Sniper TowerKind = "sniper"
	Givre  TowerKind = "givre"
)

// Default enemy kinds.
const (
	Normal EnemyKind = "normal"
	Rapide EnemyKind = "rapide"
	Tank   EnemyKind = "tank"
	Blinde EnemyKind = "blinde"
	Boss   EnemyKind = "boss"
)

const defaultSellRatio = 0.6

func defaultTowers() []TowerArchetype {
	return []TowerArchetype{
		{Kind: Archer, Name: "Archer", Cost: 75, Damage: 1, AttackInterval: 800 * time.Millisecond, Range: 120, SellRatio: defaultSellRatio},
		{Kind: Canon, Name: "Canon", Cost: 150, Damage: 5, AttackInterval: 2500 * time.Millisecond, Range: 110, Splash: true, SplashRadius: 50, SellRatio: defaultSellRatio},
		{Kind: Mage, Name: "Mage", Cost: 200, Damage: 3, AttackInterval: 1500 * time.Millisecond, Range: 130, Splash: true, SplashRadius: 130, SellRatio: defaultSellRatio},
		{Kind: Sniper, Name: "Sniper", Cost: 250, Damage: 8, AttackInterval: 3 * time.Second, Range: 200, SellRatio: defaultSellRatio},
		{
			Kind: Givre, Name: "Givre", Cost: 125, Damage: 1, AttackInterval: 1200 * time.Millisecond, Range: 100,
			Slow: &Slow{Factor: 0.5, Duration: 2 * time.Second}, SellRatio: defaultSellRatio,
		},
	}
}

func defaultEnemies() []EnemyArchetype {
	return []EnemyArchetype{
		{Kind: Normal, Name: "Normal", HP: 3, Speed: 80, Armor: 0, Reward: 10, Radius: 12},
		{Kind: Rapide, Name: "Rapide", HP: 2, Speed: 160, Armor: 0, Reward: 8, Radius: 9},
		{Kind: Tank, Name: "Tank", HP: 15, Speed: 55, Armor: 0, Reward: 20, Radius: 18},
		{Kind: Blinde, Name: "Blindé", HP: 8, Speed: 70, Armor: 2, Reward: 15, Radius: 14},
		{Kind: Boss, Name: "Boss", HP: 100, Speed: 40, Armor: 3, Reward: 100, Radius: 24},
	}
}

func defaultWaves() [][]Group {
	return [][]Group{
		{{Normal, 8}},
		{{Normal, 8}, {Rapide, 4}},
		{{Normal, 10}, {Rapide, 6}},
		{{Normal, 10}, {Rapide, 6}, {Tank, 2}},
		{{Normal, 8}, {Rapide, 8}, {Tank, 4}},
		{{Normal, 10}, {Rapide, 6}, {Tank, 5}, {Blinde, 3}},
		{{Normal, 8}, {Rapide, 8}, {Tank, 5}, {Blinde, 5}},
		{{Rapide, 10}, {Tank, 6}, {Blinde, 6}},
		{{Normal, 6}, {Rapide, 8}, {Tank, 6}, {Blinde, 6}},
		{{Normal, 8}, {Rapide, 6}, {Tank, 4}, {Blinde, 4}, {Boss, 1}},
		{{Normal, 10}, {Rapide, 8}, {Tank, 6}, {Blinde, 6}},
		{{Rapide, 12}, {Tank, 7}, {Blinde, 7}},
		{{Normal, 8}, {Rapide, 10}, {Tank, 7}, {Blinde, 7}},
		{{Rapide, 10}, {Tank, 8}, {Blinde, 8}, {Boss, 1}},
		{{Normal, 8}, {Rapide, 8}, {Tank, 6}, {Blinde, 6}, {Boss, 2}},
		{{Rapide, 12}, {Tank, 8}, {Blinde, 8}, {Boss, 1}},
		{{Normal, 10}, {Rapide, 10}, {Tank, 8}, {Blinde, 8}, {Boss, 2}},
		{{Rapide, 14}, {Tank, 10}, {Blinde, 10}, {Boss, 2}},
		{{Normal, 10}, {Rapide, 12}, {Tank, 10}, {Blinde, 10}, {Boss, 2}},
		{{Normal, 12}, {Rapide, 12}, {Tank, 10}, {Blinde, 10}, {Boss, 3}},
	}
}

// Default returns the built-in catalog: five towers, five enemies and twenty waves.
func Default() *Catalog {
	c, err := New(defaultTowers(), defaultEnemies(), defaultWaves())
	if err != nil {
		// The built-in tables are covered by tests; failing here is a programming error.
		panic(err)
	}
	return c
}
