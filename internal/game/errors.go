package game

import "errors"

var (
	// ErrInvalidSquare is returned for queries against an off-board or empty square.
	ErrInvalidSquare = errors.New("invalid square")
	// ErrIllegalMove is returned when a proposed move is rejected. No state changes.
	ErrIllegalMove = errors.New("illegal move")
	// ErrMalformedNotation is returned when a position or move string cannot be parsed.
	ErrMalformedNotation = errors.New("malformed notation")
)
