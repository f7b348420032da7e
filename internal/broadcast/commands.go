package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/room"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
	"github.com/signalsfoundry/td-engine/model"
)

// ErrBadCommand indicates a frame that is not a well-formed command.
var ErrBadCommand = errors.New("bad command")

// Command is the JSON envelope clients send. The acting player is the
// session's, never a field of the command.
type Command struct {
	Type      string `json:"type"`
	MatchID   string `json:"matchId,omitempty"`
	Name      string `json:"name,omitempty"`
	Ready     bool   `json:"ready,omitempty"`
	Col       *int   `json:"col,omitempty"`
	Row       *int   `json:"row,omitempty"`
	TowerType string `json:"towerType,omitempty"`
	TowerID   string `json:"towerId,omitempty"`
}

// Command types.
const (
	CmdCreate     = "create"
	CmdJoin       = "join"
	CmdRejoin     = "rejoin"
	CmdLeave      = "leave"
	CmdList       = "list"
	CmdReady      = "ready"
	CmdStart      = "start"
	CmdStartWave  = "startWave"
	CmdPlaceTower = "placeTower"
	CmdSellTower  = "sellTower"
	CmdPause      = "pause"
	CmdResume     = "resume"
	CmdReset      = "reset"
)

func reasonOf(err error) string {
	if errors.Is(err, ErrBadCommand) {
		return "bad_command"
	}
	return room.ReasonCode(err)
}

func (c *session) handle(ctx context.Context, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.replyError("", fmt.Errorf("%w: %v", ErrBadCommand, err))
		return
	}
	out, err := c.execute(ctx, cmd)
	if err != nil {
		c.log.Debug(ctx, "command rejected", logging.String("op", cmd.Type), logging.String("reason", reasonOf(err)))
		c.replyError(cmd.Type, err)
		return
	}
	c.reply(ctx, cmd.Type, out)
}

func (c *session) info() model.PlayerInfo {
	return model.PlayerInfo{ID: c.playerID, DisplayName: c.displayName, Conn: c.connID}
}

type membership struct {
	Match  state.Info       `json:"match"`
	Player state.PlayerView `json:"player"`
}

func (c *session) execute(ctx context.Context, cmd Command) (any, error) {
	reg := c.server.registry
	switch cmd.Type {
	case CmdCreate:
		rm, err := reg.Create(c.info(), cmd.Name)
		if err != nil {
			return nil, err
		}
		c.attach(ctx, rm)
		p, _ := rm.Match().Player(c.playerID)
		return membership{Match: rm.Info(), Player: state.ViewOfPlayer(p)}, nil

	case CmdJoin:
		rm, p, err := reg.JoinOrCreate(cmd.MatchID, c.info())
		if err != nil {
			return nil, err
		}
		c.attach(ctx, rm)
		return membership{Match: rm.Info(), Player: state.ViewOfPlayer(p)}, nil

	case CmdRejoin:
		rm, p, err := reg.Rejoin(c.playerID, c.connID)
		if err != nil {
			return nil, err
		}
		c.attach(ctx, rm)
		return membership{Match: rm.Info(), Player: state.ViewOfPlayer(p)}, nil

	case CmdList:
		return reg.List(), nil
	}

	rm := c.current()
	if rm == nil {
		return nil, fmt.Errorf("%w: no match joined", state.ErrNotInMatch)
	}
	switch cmd.Type {
	case CmdLeave:
		c.subMu.Lock()
		cancel := c.cancelSub
		c.room, c.cancelSub = nil, nil
		c.subMu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil, reg.Leave(rm.ID(), c.playerID)
	case CmdReady:
		return nil, rm.SetReady(c.playerID, cmd.Ready)
	case CmdStart:
		return nil, rm.Start(c.playerID)
	case CmdStartWave:
		n, err := rm.StartWave(c.playerID)
		if err != nil {
			return nil, err
		}
		return map[string]int{"wave": n}, nil
	case CmdPlaceTower:
		if cmd.Col == nil || cmd.Row == nil || cmd.TowerType == "" {
			return nil, fmt.Errorf("%w: col, row and towerType are required", ErrBadCommand)
		}
		return rm.PlaceTower(c.playerID, *cmd.Col, *cmd.Row, catalog.TowerKind(cmd.TowerType))
	case CmdSellTower:
		if cmd.TowerID == "" {
			return nil, fmt.Errorf("%w: towerId is required", ErrBadCommand)
		}
		return rm.SellTower(c.playerID, cmd.TowerID)
	case CmdPause:
		return nil, rm.Pause(c.playerID)
	case CmdResume:
		return nil, rm.Resume(c.playerID)
	case CmdReset:
		return nil, rm.Reset(c.playerID)
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrBadCommand, cmd.Type)
}
