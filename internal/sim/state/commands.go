package state

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/model"
)

// Placement is the result of a successful PlaceTower.
type Placement struct {
	Tower   TowerView `json:"tower"`
	Balance int       `json:"balance"`
}

// Sale is the result of a successful SellTower.
type Sale struct {
	TowerID string `json:"towerId"`
	Refund  int    `json:"refund"`
	Balance int    `json:"balance"`
}

// Join adds a participant. Only lobby matches accept players. The new player
// takes the lowest zone no current participant holds.
func (m *Match) Join(info model.PlayerInfo) (model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info.ID == "" {
		return model.Player{}, m.reject("join", ErrInvalidPlayer)
	}
	if len(m.players) >= m.settings.MaxPlayers {
		return model.Player{}, m.reject("join", fmt.Errorf("%w: %d/%d players", ErrMatchFull, len(m.players), m.settings.MaxPlayers),
			logging.String("player_id", info.ID))
	}
	if m.playerLocked(info.ID) != nil {
		return model.Player{}, m.reject("join", ErrAlreadyJoined, logging.String("player_id", info.ID))
	}
	if m.lifecycle != model.LifecycleLobby {
		return model.Player{}, m.reject("join", fmt.Errorf("%w: match is %s", ErrMatchInProgress, m.lifecycle),
			logging.String("player_id", info.ID))
	}

	p := &model.Player{
		ID:          info.ID,
		DisplayName: info.DisplayName,
		Conn:        info.Conn,
		Currency:    m.settings.StartingCurrency,
		Zone:        m.freeZoneLocked(),
	}
	m.players = append(m.players, p)
	m.reportCountsLocked()
	m.log.Info(context.Background(), "player joined",
		logging.String("player_id", p.ID),
		logging.Int("zone", p.Zone),
		logging.Int("players", len(m.players)),
	)
	return *p, nil
}

func (m *Match) freeZoneLocked() int {
	for zone := 0; ; zone++ {
		taken := slices.ContainsFunc(m.players, func(p *model.Player) bool { return p.Zone == zone })
		if !taken {
			return zone
		}
	}
}

// Leave removes a participant and returns how many remain. Towers the player
// placed stay on the board. If the host leaves, the next player in join
// order becomes host.
func (m *Match) Leave(playerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.players, func(p *model.Player) bool { return p.ID == playerID })
	if idx < 0 {
		return len(m.players), m.reject("leave", ErrNotInMatch, logging.String("player_id", playerID))
	}
	m.players = slices.Delete(m.players, idx, idx+1)
	m.reportCountsLocked()
	m.log.Info(context.Background(), "player left",
		logging.String("player_id", playerID),
		logging.Int("players", len(m.players)),
	)
	return len(m.players), nil
}

// Reconnect rebinds the connection handle of an existing participant.
// Currency, zone and host status are preserved.
func (m *Match) Reconnect(playerID, conn string) (model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.playerLocked(playerID)
	if p == nil {
		return model.Player{}, m.reject("reconnect", ErrNotInMatch, logging.String("player_id", playerID))
	}
	p.Conn = conn
	m.log.Info(context.Background(), "player reconnected", logging.String("player_id", playerID))
	return *p, nil
}

// SetReady toggles a player's lobby ready flag.
func (m *Match) SetReady(playerID string, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.playerLocked(playerID)
	if p == nil {
		return m.reject("set_ready", ErrNotInMatch, logging.String("player_id", playerID))
	}
	if m.lifecycle != model.LifecycleLobby {
		return m.reject("set_ready", ErrNotInLobby, logging.String("player_id", playerID))
	}
	p.Ready = ready
	return nil
}

// Start moves a lobby match into play. Lives, wave counter and the board are
// reset and every player receives the starting currency.
func (m *Match) Start(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isHostLocked(playerID) {
		return m.reject("start", ErrNotHost, logging.String("player_id", playerID))
	}
	if m.lifecycle != model.LifecycleLobby {
		return m.reject("start", fmt.Errorf("%w: match is %s", ErrNotInLobby, m.lifecycle))
	}

	m.clearBoardLocked()
	for _, p := range m.players {
		p.Currency = m.settings.StartingCurrency
		p.Ready = false
	}
	m.reportCountsLocked()
	m.setLifecycleLocked(model.LifecyclePlaying)
	return nil
}

// Pause freezes a playing match. Ticks and spawns are no-ops while paused.
func (m *Match) Pause(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isHostLocked(playerID) {
		return m.reject("pause", ErrNotHost, logging.String("player_id", playerID))
	}
	if m.lifecycle != model.LifecyclePlaying {
		return m.reject("pause", ErrNotPlaying)
	}
	m.setLifecycleLocked(model.LifecyclePaused)
	return nil
}

// Resume continues a paused match. Time spent paused is not simulated.
func (m *Match) Resume(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isHostLocked(playerID) {
		return m.reject("resume", ErrNotHost, logging.String("player_id", playerID))
	}
	if m.lifecycle != model.LifecyclePaused {
		return m.reject("resume", ErrNotPaused)
	}
	m.lastTick = time.Time{}
	m.setLifecycleLocked(model.LifecyclePlaying)
	return nil
}

// Reset returns a finished match to the lobby so it can be started again.
func (m *Match) Reset(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isHostLocked(playerID) {
		return m.reject("reset", ErrNotHost, logging.String("player_id", playerID))
	}
	if !m.lifecycle.Terminal() {
		return m.reject("reset", fmt.Errorf("%w: match is %s", ErrNotTerminal, m.lifecycle))
	}
	m.clearBoardLocked()
	for _, p := range m.players {
		p.Currency = m.settings.StartingCurrency
		p.Ready = false
	}
	m.reportCountsLocked()
	m.setLifecycleLocked(model.LifecycleLobby)
	return nil
}

// PlaceTower builds a tower of kind at (col,row) for playerID. Checks run in
// a fixed order and the first failure is returned.
func (m *Match) PlaceTower(playerID string, col, row int, kind catalog.TowerKind) (Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := []logging.Field{
		logging.String("player_id", playerID),
		logging.Int("col", col),
		logging.Int("row", row),
		logging.String("kind", string(kind)),
	}
	p := m.playerLocked(playerID)
	if p == nil {
		return Placement{}, m.reject("place_tower", ErrNotInMatch, fields...)
	}
	if m.lifecycle != model.LifecyclePlaying {
		return Placement{}, m.reject("place_tower", ErrNotPlaying, fields...)
	}
	spec, ok := m.catalog.Tower(kind)
	if !ok {
		return Placement{}, m.reject("place_tower", fmt.Errorf("%w: %q", ErrUnknownArchetype, kind), fields...)
	}
	if !m.inZoneLocked(p, row) {
		return Placement{}, m.reject("place_tower", fmt.Errorf("%w: row %d not in zone %d", ErrOutOfZone, row, p.Zone), fields...)
	}
	if col < 0 || col >= m.settings.Cols || row < 0 || row >= m.settings.Rows {
		return Placement{}, m.reject("place_tower", fmt.Errorf("%w: %d,%d", ErrOutOfBounds, col, row), fields...)
	}
	if m.path.IsPathCell(col, row) {
		return Placement{}, m.reject("place_tower", ErrOnPath, fields...)
	}
	cell := model.Cell{Col: col, Row: row}
	if _, taken := m.towerByCell[cell]; taken {
		return Placement{}, m.reject("place_tower", ErrCellOccupied, fields...)
	}
	if p.Currency < spec.Cost {
		return Placement{}, m.reject("place_tower", fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, p.Currency, spec.Cost), fields...)
	}

	p.Currency -= spec.Cost
	m.towerSeq++
	t := &model.Tower{
		ID:      fmt.Sprintf("t%d", m.towerSeq),
		Cell:    cell,
		Center:  cell.Center(m.settings.TileSize),
		Kind:    kind,
		Spec:    spec,
		OwnerID: p.ID,
	}
	m.towers = append(m.towers, t)
	m.towerByCell[cell] = t
	m.reportCountsLocked()
	m.log.Debug(context.Background(), "tower placed", append(fields, logging.String("tower_id", t.ID))...)
	return Placement{Tower: towerView(t), Balance: p.Currency}, nil
}

func (m *Match) inZoneLocked(p *model.Player, row int) bool {
	if len(m.players) < 2 {
		return true
	}
	if p.Zone == 0 {
		return row >= 0 && row < m.settings.ZoneSplitRow
	}
	return row >= m.settings.ZoneSplitRow && row < m.settings.Rows
}

// SellTower removes one of the caller's towers and refunds part of its cost.
func (m *Match) SellTower(playerID, towerID string) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := []logging.Field{logging.String("player_id", playerID), logging.String("tower_id", towerID)}
	p := m.playerLocked(playerID)
	if p == nil {
		return Sale{}, m.reject("sell_tower", ErrNotInMatch, fields...)
	}
	if m.lifecycle != model.LifecyclePlaying {
		return Sale{}, m.reject("sell_tower", ErrNotPlaying, fields...)
	}
	idx := slices.IndexFunc(m.towers, func(t *model.Tower) bool { return t.ID == towerID })
	if idx < 0 {
		return Sale{}, m.reject("sell_tower", ErrTowerNotFound, fields...)
	}
	t := m.towers[idx]
	if t.OwnerID != p.ID {
		return Sale{}, m.reject("sell_tower", ErrNotOwner, fields...)
	}

	refund := t.Spec.Refund()
	p.Currency += refund
	m.towers = slices.Delete(m.towers, idx, idx+1)
	delete(m.towerByCell, t.Cell)
	m.reportCountsLocked()
	m.log.Debug(context.Background(), "tower sold", append(fields, logging.Int("refund", refund))...)
	return Sale{TowerID: t.ID, Refund: refund, Balance: p.Currency}, nil
}

// StartWave launches the next wave and returns its number. Only the host may
// launch waves; a caller outside the match is reported as not host.
func (m *Match) StartWave(playerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != model.LifecyclePlaying {
		return 0, m.reject("start_wave", ErrNotPlaying, logging.String("player_id", playerID))
	}
	if !m.isHostLocked(playerID) {
		return 0, m.reject("start_wave", ErrNotHost, logging.String("player_id", playerID))
	}
	if m.waveInProgress {
		return 0, m.reject("start_wave", fmt.Errorf("%w: wave %d", ErrWaveAlreadyActive, m.wave))
	}
	if m.wave >= m.settings.MaxWaves {
		return 0, m.reject("start_wave", ErrAllWavesComplete)
	}

	m.wave++
	m.waveInProgress = true
	m.spawner.Start(m.spawnQueue(m.wave))
	if m.metrics != nil {
		m.metrics.RecordWaveStarted()
	}
	m.log.Info(context.Background(), "wave started",
		logging.Int("wave", m.wave),
		logging.Int("spawns", m.spawner.Total()),
	)
	return m.wave, nil
}
