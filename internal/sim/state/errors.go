package state

import "errors"

// Rejections returned by Match mutators. None of them leave partial effects
// behind: a mutator either applies fully or returns one of these unchanged.
var (
	// ErrInvalidPlayer indicates join details without a player id.
	ErrInvalidPlayer = errors.New("invalid player")
	// ErrNotInMatch indicates the caller is not a participant.
	ErrNotInMatch = errors.New("not in match")
	// ErrNotPlaying indicates the match is not in the playing state.
	ErrNotPlaying = errors.New("match not playing")
	// ErrUnknownArchetype indicates a tower kind missing from the catalog.
	ErrUnknownArchetype = errors.New("unknown tower archetype")
	// ErrOutOfZone indicates a placement outside the player's half of the grid.
	ErrOutOfZone = errors.New("outside player zone")
	// ErrOutOfBounds indicates a placement outside the grid.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrOnPath indicates a placement on an enemy path cell.
	ErrOnPath = errors.New("cell is on the path")
	// ErrCellOccupied indicates the cell already holds a tower.
	ErrCellOccupied = errors.New("cell occupied")
	// ErrInsufficientFunds indicates the player cannot afford the tower.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTowerNotFound indicates an unknown tower id.
	ErrTowerNotFound = errors.New("tower not found")
	// ErrNotOwner indicates the tower belongs to another player.
	ErrNotOwner = errors.New("not tower owner")
	// ErrNotHost indicates a host-only command from another caller.
	ErrNotHost = errors.New("host only")
	// ErrWaveAlreadyActive indicates a wave is still in flight.
	ErrWaveAlreadyActive = errors.New("wave already active")
	// ErrAllWavesComplete indicates the wave counter is at its maximum.
	ErrAllWavesComplete = errors.New("all waves complete")
	// ErrMatchFull indicates no player slot is left.
	ErrMatchFull = errors.New("match full")
	// ErrAlreadyJoined indicates the player already holds a slot.
	ErrAlreadyJoined = errors.New("already joined")
	// ErrMatchInProgress indicates joins are closed because play has begun.
	ErrMatchInProgress = errors.New("match in progress")
	// ErrNotInLobby indicates a lobby-only command.
	ErrNotInLobby = errors.New("match not in lobby")
	// ErrNotPaused indicates a resume of a match that is not paused.
	ErrNotPaused = errors.New("match not paused")
	// ErrNotTerminal indicates a reset of a match that has not ended.
	ErrNotTerminal = errors.New("match not finished")

	// ErrLifecycleDefect indicates a terminal match was ticked because its
	// timers were not stopped. It is a bug in the caller, not a user error.
	ErrLifecycleDefect = errors.New("terminal match ticked")
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidPlayer, "invalid_player"},
	{ErrNotInMatch, "not_in_match"},
	{ErrNotPlaying, "not_playing"},
	{ErrUnknownArchetype, "unknown_archetype"},
	{ErrOutOfZone, "out_of_zone"},
	{ErrOutOfBounds, "out_of_bounds"},
	{ErrOnPath, "on_path"},
	{ErrCellOccupied, "cell_occupied"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrTowerNotFound, "tower_not_found"},
	{ErrNotOwner, "not_owner"},
	{ErrNotHost, "not_host"},
	{ErrWaveAlreadyActive, "wave_already_active"},
	{ErrAllWavesComplete, "all_waves_complete"},
	{ErrMatchFull, "match_full"},
	{ErrAlreadyJoined, "already_joined"},
	{ErrMatchInProgress, "match_in_progress"},
	{ErrNotInLobby, "not_in_lobby"},
	{ErrNotPaused, "not_paused"},
	{ErrNotTerminal, "not_terminal"},
	{ErrLifecycleDefect, "lifecycle_defect"},
}

// ReasonCode returns the stable snake_case code clients receive for err.
// Nil maps to "" and anything unrecognised to "internal".
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "internal"
}
