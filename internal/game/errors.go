package game

import "errors"

// Rule violations are returned as values and never mutate session state. The
// engine has no retry policy; callers decide whether to resubmit.
var (
	// ErrIllegalPlay is returned when the card is not in the legal set for
	// the current trick (wrong suit while able to follow, or not in hand).
	ErrIllegalPlay = errors.New("illegal play")

	// ErrNotYourTurn is returned when a seat plays out of turn.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrInvalidPhase is returned when an action is attempted outside the
	// phase that permits it.
	ErrInvalidPhase = errors.New("invalid phase")

	// ErrNoLegalPlays signals the logic-impossible state of a non-empty hand
	// with no legal card. Modeled as an error rather than a panic.
	ErrNoLegalPlays = errors.New("no legal plays")

	// ErrSeatOccupied is returned when joining a seat that is already taken.
	ErrSeatOccupied = errors.New("seat occupied")
)
