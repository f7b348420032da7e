package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/core"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
	"github.com/signalsfoundry/td-engine/model"
	"github.com/signalsfoundry/td-engine/timectrl"
)

// MetricsRecorder receives registry-level gauges. Implementations should
// also satisfy state.MetricsRecorder to receive per-match telemetry.
type MetricsRecorder interface {
	SetActiveMatches(n int)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the wall clock used by room timers.
func WithClock(c timectrl.SimClock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the registry logger. Rooms derive theirs from it.
func WithLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics attaches a recorder. If it also implements
// state.MetricsRecorder every match reports through it.
func WithMetrics(m MetricsRecorder) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithIDGenerator replaces the random match id source.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// Registry owns every live room. Rooms are created on first use and
// destroyed when their last player leaves. A player holds at most one seat
// across all rooms; seat changes are serialized under the registry lock.
type Registry struct {
	cfg     Config
	catalog *catalog.Catalog
	path    *core.Path
	clock   timectrl.SimClock
	log     logging.Logger
	metrics MetricsRecorder
	newID   func() string

	reaper *timectrl.Ticker

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
}

// NewRegistry validates the map and catalog once; every room shares them.
// The path must fit the configured grid and the catalog must define every
// wave the settings allow.
func NewRegistry(cfg Config, cat *catalog.Catalog, opts ...RegistryOption) (*Registry, error) {
	if cat == nil {
		cat = catalog.Default()
	}
	waypoints := cfg.Waypoints
	if len(waypoints) == 0 {
		waypoints = core.DefaultWaypoints
	}
	path, err := core.NewPath(waypoints, cfg.Settings.TileSize)
	if err != nil {
		return nil, err
	}
	if err := path.FitsGrid(cfg.Settings.Cols, cfg.Settings.Rows); err != nil {
		return nil, err
	}
	if cfg.Settings.MaxWaves > cat.WaveCount() {
		return nil, fmt.Errorf("%w: max waves %d exceeds the %d waves in the catalog",
			ErrInvalidConfig, cfg.Settings.MaxWaves, cat.WaveCount())
	}
	r := &Registry{
		cfg:     cfg,
		catalog: cat,
		path:    path,
		clock:   timectrl.WallClock{},
		log:     logging.Noop(),
		newID:   newMatchID,
		rooms:   make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(r)
	}
	if cfg.ReapAfter > 0 {
		r.reaper = timectrl.NewTicker(reapInterval(cfg.ReapAfter), r.clock, func(time.Time) {
			r.ReapFinished(cfg.ReapAfter)
		})
		r.reaper.Start()
	}
	return r, nil
}

func reapInterval(idle time.Duration) time.Duration {
	return max(idle/4, time.Second)
}

func newMatchID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// Path returns the shared map geometry.
func (r *Registry) Path() *core.Path { return r.path }

// Catalog returns the shared archetype catalog.
func (r *Registry) Catalog() *catalog.Catalog { return r.catalog }

// Create opens a new room hosted by the given player.
func (r *Registry) Create(host model.PlayerInfo, name string) (*Room, error) {
	if host.ID == "" {
		return nil, state.ErrInvalidPlayer
	}
	if strings.TrimSpace(name) == "" {
		display := host.DisplayName
		if display == "" {
			display = host.ID
		}
		name = display + "'s room"
	}

	r.mu.Lock()
	rm, n, err := r.createLocked(host, name)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r.created(rm, n, host.ID)
	return rm, nil
}

func (r *Registry) createLocked(host model.PlayerInfo, name string) (*Room, int, error) {
	if r.closed {
		return nil, 0, ErrClosed
	}
	if err := r.checkSeatLocked(host.ID, ""); err != nil {
		return nil, 0, err
	}
	id := r.newID()
	for _, taken := r.rooms[id]; taken; _, taken = r.rooms[id] {
		id = r.newID()
	}
	rm, err := r.newRoomLocked(id, name)
	if err != nil {
		return nil, 0, err
	}
	if _, err := rm.Join(host); err != nil {
		rm.Close()
		return nil, 0, err
	}
	r.rooms[id] = rm
	return rm, len(r.rooms), nil
}

func (r *Registry) created(rm *Room, n int, hostID string) {
	r.reportActive(n)
	r.log.Info(context.Background(), "room created",
		logging.MatchID(rm.ID()),
		logging.String("name", rm.Match().Name()),
		logging.String("host_id", hostID),
	)
}

// checkSeatLocked rejects a player already seated in a room other than
// exceptID.
func (r *Registry) checkSeatLocked(playerID, exceptID string) error {
	for id, rm := range r.rooms {
		if id != exceptID && rm.Match().HasPlayer(playerID) {
			return fmt.Errorf("%w: player %q is in match %q", ErrSeatedElsewhere, playerID, id)
		}
	}
	return nil
}

func (r *Registry) newRoomLocked(id, name string) (*Room, error) {
	opts := []state.Option{state.WithLogger(r.log)}
	if rec, ok := r.metrics.(state.MetricsRecorder); ok {
		opts = append(opts, state.WithMetricsRecorder(rec))
	}
	m, err := state.NewMatch(id, name, r.catalog, r.path, r.cfg.Settings, opts...)
	if err != nil {
		return nil, err
	}
	return newRoom(m, r.cfg, r.clock, r.log), nil
}

// Get returns the room with the given id.
func (r *Registry) Get(id string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	return rm, nil
}

// Join adds a player to an existing room.
func (r *Registry) Join(id string, info model.PlayerInfo) (*Room, model.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinLocked(id, info)
}

func (r *Registry) joinLocked(id string, info model.PlayerInfo) (*Room, model.Player, error) {
	rm, ok := r.rooms[id]
	if !ok {
		return nil, model.Player{}, fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	if err := r.checkSeatLocked(info.ID, id); err != nil {
		return nil, model.Player{}, err
	}
	p, err := rm.Join(info)
	if errors.Is(err, ErrClosed) {
		// The room emptied and is on its way out.
		return nil, model.Player{}, fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	if err != nil {
		return nil, model.Player{}, err
	}
	return rm, p, nil
}

// JoinOrCreate joins the room with the given id, creating it when absent
// with the caller as host.
func (r *Registry) JoinOrCreate(id string, info model.PlayerInfo) (*Room, model.Player, error) {
	r.mu.Lock()
	if id != "" {
		rm, p, err := r.joinLocked(id, info)
		if !errors.Is(err, ErrMatchNotFound) {
			r.mu.Unlock()
			return rm, p, err
		}
	}
	rm, n, err := r.createLocked(info, "")
	r.mu.Unlock()
	if err != nil {
		return nil, model.Player{}, err
	}
	r.created(rm, n, info.ID)
	p, _ := rm.Match().Player(info.ID)
	return rm, p, nil
}

// Leave removes a player from a room and destroys the room once empty. The
// last departure and the removal happen under one lock, so no Join can
// seat a player in a room that is being discarded.
func (r *Registry) Leave(id, playerID string) error {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	remaining, err := rm.Leave(playerID)
	if err != nil || remaining > 0 {
		r.mu.Unlock()
		return err
	}
	delete(r.rooms, id)
	n := len(r.rooms)
	r.mu.Unlock()

	r.closeRoom(rm, n, "empty")
	return nil
}

// FindByPlayer scans every room for the player's only seat. Linear in the
// number of rooms.
func (r *Registry) FindByPlayer(playerID string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rm := range r.rooms {
		if rm.Match().HasPlayer(playerID) {
			return rm, true
		}
	}
	return nil, false
}

// Rejoin rebinds a returning player's connection in whichever room holds
// them.
func (r *Registry) Rejoin(playerID, conn string) (*Room, model.Player, error) {
	rm, ok := r.FindByPlayer(playerID)
	if !ok {
		return nil, model.Player{}, fmt.Errorf("%w: player %q", ErrMatchNotFound, playerID)
	}
	p, err := rm.Reconnect(playerID, conn)
	if err != nil {
		return nil, model.Player{}, err
	}
	return rm, p, nil
}

// List returns a summary of every room, ordered by id.
func (r *Registry) List() []state.Info {
	r.mu.RLock()
	out := make([]state.Info, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.Info())
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b state.Info) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Destroy closes a room regardless of who is in it.
func (r *Registry) Destroy(id string) error {
	if !r.destroy(id, "operator") {
		return fmt.Errorf("%w: %q", ErrMatchNotFound, id)
	}
	return nil
}

func (r *Registry) destroy(id, reason string) bool {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	n := len(r.rooms)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.closeRoom(rm, n, reason)
	return true
}

func (r *Registry) closeRoom(rm *Room, n int, reason string) {
	rm.Close()
	r.reportActive(n)
	r.log.Info(context.Background(), "room destroyed", logging.MatchID(rm.ID()), logging.String("reason", reason))
}

// ReapFinished destroys rooms whose match ended more than idle ago and
// that nobody is subscribed to. Players still seated in them lose their
// seat. It returns the number of rooms destroyed.
func (r *Registry) ReapFinished(idle time.Duration) int {
	cutoff := r.clock.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Room
	for id, rm := range r.rooms {
		at, done := rm.FinishedAt()
		if !done || at.After(cutoff) || rm.Subscribers() > 0 {
			continue
		}
		stale = append(stale, rm)
		delete(r.rooms, id)
	}
	n := len(r.rooms)
	r.mu.Unlock()

	for _, rm := range stale {
		r.closeRoom(rm, n, "finished")
	}
	return len(stale)
}

// Shutdown closes every room and refuses further creation.
func (r *Registry) Shutdown() {
	if r.reaper != nil {
		r.reaper.Stop()
	}
	r.mu.Lock()
	r.closed = true
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	clear(r.rooms)
	r.mu.Unlock()

	for _, rm := range rooms {
		rm.Close()
	}
	r.reportActive(0)
	r.log.Info(context.Background(), "registry shut down", logging.Int("rooms", len(rooms)))
}

func (r *Registry) reportActive(n int) {
	if r.metrics != nil {
		r.metrics.SetActiveMatches(n)
	}
}
