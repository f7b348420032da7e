// Package broadcast is the websocket fabric: it fans room snapshots out to
// connected clients and accepts JSON command envelopes from them.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/room"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
	"github.com/signalsfoundry/td-engine/model"
)

const (
	defaultWriteWait = 5 * time.Second
	maxMessageSize   = 4096
)

// Server upgrades HTTP requests to websocket sessions bound to a registry.
//
// The acting player is taken from the "player" query parameter; an
// upstream proxy is expected to have authenticated it.
type Server struct {
	registry  *room.Registry
	log       logging.Logger
	upgrader  websocket.Upgrader
	writeWait time.Duration

	sessions atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWriteWait bounds each frame write.
func WithWriteWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeWait = d
		}
	}
}

// NewServer builds a websocket handler for registry.
func NewServer(registry *room.Registry, opts ...Option) *Server {
	s := &Server{
		registry:  registry,
		log:       logging.Noop(),
		writeWait: defaultWriteWait,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions returns the number of open websocket sessions.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

// ServeHTTP upgrades the request and runs the session until the socket
// closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	playerID := strings.TrimSpace(q.Get("player"))
	if playerID == "" {
		http.Error(w, "player is required", http.StatusBadRequest)
		return
	}
	format, err := ParseFormat(q.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	ctx, log := logging.WithRequestLogger(context.Background(), s.log)

	sess := &session{
		server:      s,
		ws:          ws,
		log:         log.With(logging.String("player_id", playerID)),
		format:      format,
		playerID:    playerID,
		displayName: q.Get("name"),
		connID:      uuid.NewString(),
	}
	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	sess.log.Info(ctx, "websocket session opened", logging.String("format", string(format)))
	sess.run(ctx)
	sess.log.Info(ctx, "websocket session closed")
}

// session is one websocket connection. Writes from the snapshot pump and
// the command loop share writeMu.
type session struct {
	server      *Server
	ws          *websocket.Conn
	log         logging.Logger
	format      Format
	playerID    string
	displayName string
	connID      string

	writeMu sync.Mutex

	subMu     sync.Mutex
	room      *room.Room
	cancelSub func()
}

func (c *session) run(ctx context.Context) {
	defer c.ws.Close()
	defer c.detach(ctx)

	c.ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug(ctx, "websocket read failed", logging.Err(err))
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (c *session) write(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.server.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(msgType, data)
}

func (c *session) reply(ctx context.Context, op string, payload any) {
	data, err := encodeEnvelope(TypeAck, op, payload)
	if err != nil {
		c.log.Error(ctx, "encode reply failed", logging.String("op", op), logging.Err(err))
		return
	}
	_ = c.write(websocket.TextMessage, data)
}

func (c *session) replyError(op string, err error) {
	env := Envelope{Type: TypeError, Op: op, Reason: reasonOf(err), Message: err.Error()}
	data, merr := json.Marshal(env)
	if merr != nil {
		return
	}
	_ = c.write(websocket.TextMessage, data)
}

// attach subscribes the session to rm, replacing any previous subscription.
func (c *session) attach(ctx context.Context, rm *room.Room) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.room == rm {
		return
	}
	if c.cancelSub != nil {
		c.cancelSub()
	}
	snaps, cancel := rm.Subscribe()
	c.room, c.cancelSub = rm, cancel
	go c.pump(ctx, snaps)
}

func (c *session) pump(ctx context.Context, snaps <-chan *state.Snapshot) {
	for snap := range snaps {
		msgType, data, err := EncodeSnapshot(c.format, snap)
		if err != nil {
			c.log.Error(ctx, "encode snapshot failed", logging.Err(err))
			continue
		}
		if err := c.write(msgType, data); err != nil {
			c.log.Debug(ctx, "snapshot write failed", logging.Err(err))
			_ = c.ws.Close()
			return
		}
	}
}

func (c *session) current() *room.Room {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return c.room
}

// detach drops the subscription. A player who disconnects from a lobby
// leaves it; during play the seat is kept so the player can rejoin.
func (c *session) detach(ctx context.Context) {
	c.subMu.Lock()
	rm, cancel := c.room, c.cancelSub
	c.room, c.cancelSub = nil, nil
	c.subMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if rm == nil {
		return
	}
	if info := rm.Info(); info.Lifecycle == model.LifecycleLobby && rm.Match().HasPlayer(c.playerID) {
		if err := c.server.registry.Leave(rm.ID(), c.playerID); err != nil {
			c.log.Debug(ctx, "leave on disconnect failed", logging.MatchID(rm.ID()), logging.Err(err))
		}
	}
}
