package api

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/td-engine/catalog"
	"github.com/signalsfoundry/td-engine/internal/room"
	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

// ReasonTrailer carries the stable reason code of a failed call.
const ReasonTrailer = "x-td-reason"

// ErrInvalidArgument is used for malformed or incomplete requests.
var ErrInvalidArgument = errors.New("invalid argument")

// Reason returns the client-facing reason code for err.
func Reason(err error) string {
	if errors.Is(err, ErrInvalidArgument) {
		return "invalid_argument"
	}
	return room.ReasonCode(err)
}

// ToStatusError maps engine errors onto gRPC status codes. The message is
// prefixed with the reason code so clients without trailer access can still
// classify the failure.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	msg := Reason(err) + ": " + err.Error()
	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, state.ErrInvalidPlayer),
		errors.Is(err, state.ErrUnknownArchetype),
		errors.Is(err, state.ErrOutOfBounds),
		errors.Is(err, state.ErrOnPath),
		errors.Is(err, catalog.ErrUnknownWave):
		return status.Error(codes.InvalidArgument, msg)

	case errors.Is(err, room.ErrMatchNotFound),
		errors.Is(err, state.ErrNotInMatch),
		errors.Is(err, state.ErrTowerNotFound):
		return status.Error(codes.NotFound, msg)

	case errors.Is(err, state.ErrNotHost),
		errors.Is(err, state.ErrNotOwner),
		errors.Is(err, state.ErrOutOfZone):
		return status.Error(codes.PermissionDenied, msg)

	case errors.Is(err, state.ErrAlreadyJoined),
		errors.Is(err, room.ErrSeatedElsewhere),
		errors.Is(err, state.ErrCellOccupied):
		return status.Error(codes.AlreadyExists, msg)

	case errors.Is(err, state.ErrMatchFull),
		errors.Is(err, state.ErrInsufficientFunds):
		return status.Error(codes.ResourceExhausted, msg)

	case errors.Is(err, state.ErrNotPlaying),
		errors.Is(err, state.ErrWaveAlreadyActive),
		errors.Is(err, state.ErrAllWavesComplete),
		errors.Is(err, state.ErrMatchInProgress),
		errors.Is(err, state.ErrNotInLobby),
		errors.Is(err, state.ErrNotPaused),
		errors.Is(err, state.ErrNotTerminal):
		return status.Error(codes.FailedPrecondition, msg)

	case errors.Is(err, room.ErrClosed):
		return status.Error(codes.Unavailable, msg)

	default:
		return status.Error(codes.Internal, msg)
	}
}

// setReasonTrailer attaches the reason code to a unary call's trailer.
func setReasonTrailer(ctx context.Context, err error) {
	_ = grpc.SetTrailer(ctx, metadata.Pairs(ReasonTrailer, Reason(err)))
}
