package ordering

import "errors"

var (
	// ErrRoundNotOpen is returned when finalizing a round that is neither open nor finalized
	ErrRoundNotOpen = errors.New("round is not open")
	// ErrStaleRound is returned when advancing to a round behind the open one
	ErrStaleRound = errors.New("round is behind the open round")
)
