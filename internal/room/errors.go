package room

import (
	"errors"

	"github.com/signalsfoundry/td-engine/internal/sim/state"
)

var (
	// ErrMatchNotFound indicates an unknown match id.
	ErrMatchNotFound = errors.New("match not found")
	// ErrClosed indicates the room or registry has been shut down.
	ErrClosed = errors.New("room closed")
	// ErrSeatedElsewhere indicates a player who already holds a seat in
	// another match.
	ErrSeatedElsewhere = errors.New("player already in another match")
	// ErrInvalidConfig indicates registry settings that disagree with the
	// catalog.
	ErrInvalidConfig = errors.New("invalid registry config")
)

// ReasonCode extends state.ReasonCode with the registry's own failures.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return "match_not_found"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrSeatedElsewhere):
		return "already_in_match"
	}
	return state.ReasonCode(err)
}
