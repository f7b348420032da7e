package state

import (
	"math"
	"time"

	"github.com/signalsfoundry/td-engine/model"
)

// Snapshot is an immutable, fully-applied view of a match. Nothing in it
// aliases match internals, so it can be shared across goroutines freely.
type Snapshot struct {
	MatchID        string          `json:"matchId" msgpack:"matchId"`
	Tick           uint64          `json:"tick" msgpack:"tick"`
	ServerTime     int64           `json:"serverTime" msgpack:"serverTime"`
	Lifecycle      model.Lifecycle `json:"lifecycle" msgpack:"lifecycle"`
	Lives          int             `json:"lives" msgpack:"lives"`
	Wave           int             `json:"wave" msgpack:"wave"`
	MaxWaves       int             `json:"maxWaves" msgpack:"maxWaves"`
	WaveInProgress bool            `json:"waveInProgress" msgpack:"waveInProgress"`
	Players        []PlayerView    `json:"players" msgpack:"players"`
	Towers         []TowerView     `json:"towers" msgpack:"towers"`
	Enemies        []EnemyView     `json:"enemies" msgpack:"enemies"`
}

// PlayerView is the public projection of a participant.
type PlayerView struct {
	ID          string `json:"id" msgpack:"id"`
	DisplayName string `json:"displayName" msgpack:"displayName"`
	Currency    int    `json:"currency" msgpack:"currency"`
	Zone        int    `json:"zone" msgpack:"zone"`
}

// TowerView is the public projection of a tower.
type TowerView struct {
	ID          string `json:"id" msgpack:"id"`
	Col         int    `json:"col" msgpack:"col"`
	Row         int    `json:"row" msgpack:"row"`
	ArchetypeID string `json:"archetypeId" msgpack:"archetypeId"`
	OwnerID     string `json:"ownerId" msgpack:"ownerId"`
}

// EnemyView is the public projection of an enemy. Coordinates are rounded to
// whole distance units; SlowExpiry is unix milliseconds, zero when unslowed.
type EnemyView struct {
	ID          string  `json:"id" msgpack:"id"`
	ArchetypeID string  `json:"archetypeId" msgpack:"archetypeId"`
	X           float64 `json:"x" msgpack:"x"`
	Y           float64 `json:"y" msgpack:"y"`
	HP          int     `json:"hp" msgpack:"hp"`
	MaxHP       int     `json:"maxHp" msgpack:"maxHp"`
	Radius      float64 `json:"radius" msgpack:"radius"`
	SlowExpiry  int64   `json:"slowExpiry" msgpack:"slowExpiry"`
}

// Snapshot projects the current state at now.
func (m *Match) Snapshot(now time.Time) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(now)
}

func (m *Match) snapshotLocked(now time.Time) *Snapshot {
	s := &Snapshot{
		MatchID:        m.id,
		Tick:           m.tick,
		ServerTime:     now.UnixMilli(),
		Lifecycle:      m.lifecycle,
		Lives:          m.lives,
		Wave:           m.wave,
		MaxWaves:       m.settings.MaxWaves,
		WaveInProgress: m.waveInProgress,
		Players:        make([]PlayerView, 0, len(m.players)),
		Towers:         make([]TowerView, 0, len(m.towers)),
		Enemies:        make([]EnemyView, 0, len(m.enemies)),
	}
	for _, p := range m.players {
		s.Players = append(s.Players, ViewOfPlayer(*p))
	}
	for _, t := range m.towers {
		s.Towers = append(s.Towers, towerView(t))
	}
	for _, e := range m.enemies {
		var slow int64
		if !e.SlowUntil.IsZero() {
			slow = e.SlowUntil.UnixMilli()
		}
		s.Enemies = append(s.Enemies, EnemyView{
			ID:          e.ID,
			ArchetypeID: string(e.Kind),
			X:           math.Round(e.Pos.X),
			Y:           math.Round(e.Pos.Y),
			HP:          e.HP,
			MaxHP:       e.MaxHP,
			Radius:      e.Spec.Radius,
			SlowExpiry:  slow,
		})
	}
	return s
}

// ViewOfPlayer projects a participant for clients.
func ViewOfPlayer(p model.Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Currency:    p.Currency,
		Zone:        p.Zone,
	}
}

func towerView(t *model.Tower) TowerView {
	return TowerView{
		ID:          t.ID,
		Col:         t.Cell.Col,
		Row:         t.Cell.Row,
		ArchetypeID: string(t.Kind),
		OwnerID:     t.OwnerID,
	}
}

// Player looks up a participant in the snapshot.
func (s *Snapshot) Player(id string) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}
