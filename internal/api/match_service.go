package api

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/logging"
	"github.com/signalsfoundry/td-engine/internal/room"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
	"github.com/signalsfoundry/td-engine/model"
)

// MatchService implements MatchServiceServer on top of a room.Registry.
//
// Every command names its match and acting player explicitly; identity is
// established upstream and the service trusts the playerId it is given.
type MatchService struct {
	registry *room.Registry
	log      logging.Logger
}

// NewMatchService constructs a MatchService bound to registry.
func NewMatchService(registry *room.Registry, log logging.Logger) *MatchService {
	if log == nil {
		log = logging.Noop()
	}
	return &MatchService{registry: registry, log: log}
}

var _ MatchServiceServer = (*MatchService)(nil)

type membership struct {
	Match  state.Info       `json:"match"`
	Player state.PlayerView `json:"player"`
}

func (s *MatchService) CreateMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, "CreateMatch", in, func(ctx context.Context, req Request) (any, error) {
		if err := require("playerId", req.PlayerID); err != nil {
			return nil, err
		}
		rm, err := s.registry.Create(req.playerInfo(), req.Name)
		if err != nil {
			return nil, err
		}
		p, _ := rm.Match().Player(req.PlayerID)
		return membership{Match: rm.Info(), Player: state.ViewOfPlayer(p)}, nil
	})
}

func (s *MatchService) JoinMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, "JoinMatch", in, func(ctx context.Context, req Request) (any, error) {
		if err := require("playerId", req.PlayerID); err != nil {
			return nil, err
		}
		var (
			rm  *room.Room
			p   model.Player
			err error
		)
		if req.CreateIfMissing {
			rm, p, err = s.registry.JoinOrCreate(req.MatchID, req.playerInfo())
		} else {
			if err := require("matchId", req.MatchID); err != nil {
				return nil, err
			}
			rm, p, err = s.registry.Join(req.MatchID, req.playerInfo())
		}
		if err != nil {
			return nil, err
		}
		return membership{Match: rm.Info(), Player: state.ViewOfPlayer(p)}, nil
	})
}

func (s *MatchService) LeaveMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, "LeaveMatch", in, func(ctx context.Context, req Request) (any, error) {
		if err := require("matchId", req.MatchID, "playerId", req.PlayerID); err != nil {
			return nil, err
		}
		if err := s.registry.Leave(req.MatchID, req.PlayerID); err != nil {
			return nil, err
		}
		return map[string]any{"matchId": req.MatchID}, nil
	})
}

func (s *MatchService) Rejoin(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, "Rejoin", in, func(ctx context.Context, req Request) (any, error) {
		if err := require("playerId", req.PlayerID); err != nil {
			return nil, err
		}
		rm, p, err := s.registry.Rejoin(req.PlayerID, req.Conn)
		if err != nil {
			return nil, err
		}
		return membership{Match: rm.Info(), Player: state.ViewOfPlayer(p)}, nil
	})
}

func (s *MatchService) ListMatches(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, "ListMatches", in, func(ctx context.Context, _ Request) (any, error) {
		return map[string]any{"matches": s.registry.List()}, nil
	})
}

func (s *MatchService) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, "GetSnapshot", in, func(ctx context.Context, req Request) (any, error) {
		if err := require("matchId", req.MatchID); err != nil {
			return nil, err
		}
		rm, err := s.registry.Get(req.MatchID)
		if err != nil {
			return nil, err
		}
		return rm.Snapshot(), nil
	})
}

func (s *MatchService) SetReady(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "SetReady", in, func(rm *room.Room, req Request) (any, error) {
		if err := rm.SetReady(req.PlayerID, req.Ready); err != nil {
			return nil, err
		}
		return rm.Info(), nil
	})
}

func (s *MatchService) StartGame(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "StartGame", in, func(rm *room.Room, req Request) (any, error) {
		if err := rm.Start(req.PlayerID); err != nil {
			return nil, err
		}
		return rm.Info(), nil
	})
}

func (s *MatchService) StartWave(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "StartWave", in, func(rm *room.Room, req Request) (any, error) {
		n, err := rm.StartWave(req.PlayerID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"wave": n}, nil
	})
}

func (s *MatchService) PlaceTower(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "PlaceTower", in, func(rm *room.Room, req Request) (any, error) {
		if req.Col == nil || req.Row == nil {
			return nil, fmt.Errorf("%w: col and row are required", ErrInvalidArgument)
		}
		if err := require("towerType", req.TowerType); err != nil {
			return nil, err
		}
		return rm.PlaceTower(req.PlayerID, *req.Col, *req.Row, catalog.TowerKind(req.TowerType))
	})
}

func (s *MatchService) SellTower(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "SellTower", in, func(rm *room.Room, req Request) (any, error) {
		if err := require("towerId", req.TowerID); err != nil {
			return nil, err
		}
		return rm.SellTower(req.PlayerID, req.TowerID)
	})
}

func (s *MatchService) Pause(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "Pause", in, func(rm *room.Room, req Request) (any, error) {
		if err := rm.Pause(req.PlayerID); err != nil {
			return nil, err
		}
		return rm.Info(), nil
	})
}

func (s *MatchService) Resume(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "Resume", in, func(rm *room.Room, req Request) (any, error) {
		if err := rm.Resume(req.PlayerID); err != nil {
			return nil, err
		}
		return rm.Info(), nil
	})
}

func (s *MatchService) Reset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.roomCommand(ctx, "Reset", in, func(rm *room.Room, req Request) (any, error) {
		if err := rm.Reset(req.PlayerID); err != nil {
			return nil, err
		}
		return rm.Info(), nil
	})
}

// WatchSnapshots streams the match's snapshots until the client goes away
// or the room is destroyed. The latest snapshot is sent immediately.
func (s *MatchService) WatchSnapshots(in *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	req, err := decodeRequest(in)
	if err == nil {
		err = require("matchId", req.MatchID)
	}
	var rm *room.Room
	if err == nil {
		rm, err = s.registry.Get(req.MatchID)
	}
	if err != nil {
		stream.SetTrailer(metadata.Pairs(ReasonTrailer, Reason(err)))
		return ToStatusError(err)
	}

	log := s.logger(ctx)
	snaps, cancel := rm.Subscribe()
	defer cancel()
	log.Debug(ctx, "snapshot watch opened", logging.MatchID(req.MatchID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				log.Debug(ctx, "snapshot watch ended: room closed", logging.MatchID(req.MatchID))
				return nil
			}
			msg, err := ToStruct(snap)
			if err != nil {
				return ToStatusError(err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func (r Request) playerInfo() model.PlayerInfo {
	return model.PlayerInfo{ID: r.PlayerID, DisplayName: r.DisplayName, Conn: r.Conn}
}

// handle decodes the request, runs fn inside a child span and maps any
// failure to a status error with a reason trailer.
func (s *MatchService) handle(ctx context.Context, op string, in *structpb.Struct, fn func(context.Context, Request) (any, error)) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, s.fail(ctx, nil, op, err)
	}
	ctx, span := StartChildSpan(ctx, "MatchService."+op, req.MatchID, req.PlayerID)
	defer span.End()

	out, err := fn(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	resp, err := ToStruct(out)
	if err != nil {
		return nil, s.fail(ctx, span, op, err)
	}
	return resp, nil
}

// roomCommand is handle for commands addressed to one match by one player.
func (s *MatchService) roomCommand(ctx context.Context, op string, in *structpb.Struct, fn func(*room.Room, Request) (any, error)) (*structpb.Struct, error) {
	return s.handle(ctx, op, in, func(ctx context.Context, req Request) (any, error) {
		if err := require("matchId", req.MatchID, "playerId", req.PlayerID); err != nil {
			return nil, err
		}
		rm, err := s.registry.Get(req.MatchID)
		if err != nil {
			return nil, err
		}
		return fn(rm, req)
	})
}

func (s *MatchService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	reason := Reason(err)
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(attribute.String("td.reason", reason))
	}
	log := s.logger(ctx)
	if reason == "internal" || reason == "lifecycle_defect" {
		log.Error(ctx, "command failed", logging.String("op", op), logging.Err(err))
	} else {
		log.Debug(ctx, "command rejected", logging.String("op", op), logging.String("reason", reason))
	}
	setReasonTrailer(ctx, err)
	return ToStatusError(err)
}

func (s *MatchService) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}
