package game

import (
	"fmt"
	"strings"
)

// Move is a source square, destination square and optional promotion kind.
type Move struct {
	From      Square `json:"from"`
	To        Square `json:"to"`
	Promotion Kind   `json:"promotion,omitempty"`
}

// NoMove is returned by the search when the side to move has no legal moves.
var NoMove = Move{}

// IsNone reports whether m is the NoMove sentinel.
func (m Move) IsNone() bool {
	return m == NoMove
}

// Notation returns the destination form used at the presentation boundary:
// "e4", or "e8=Q" for a promotion.
func (m Move) Notation() string {
	if m.Promotion == NoKind {
		return m.To.String()
	}
	return m.To.String() + "=" + string(m.Promotion.Letter())
}

// String returns the source square followed by Notation, e.g. "e7e8=Q".
func (m Move) String() string {
	if m.IsNone() {
		return "-"
	}
	return m.From.String() + m.Notation()
}

// ParseMoveNotation builds a move from a source square and a destination
// notation of the form "e4" or "e8=Q" (promotion letter of either case).
func ParseMoveNotation(from Square, notation string) (Move, error) {
	dest, promo, hasPromo := strings.Cut(notation, "=")
	to, err := ParseSquare(dest)
	if err != nil {
		return NoMove, fmt.Errorf("%w: move %q", ErrMalformedNotation, notation)
	}
	m := Move{From: from, To: to}
	if hasPromo {
		if len(promo) != 1 {
			return NoMove, fmt.Errorf("%w: promotion %q", ErrMalformedNotation, promo)
		}
		k, ok := KindFromLetter(rune(promo[0]))
		if !ok || k == Pawn || k == King {
			return NoMove, fmt.Errorf("%w: promotion %q", ErrMalformedNotation, promo)
		}
		m.Promotion = k
	}
	return m, nil
}

// ParseMove parses the String form, e.g. "e2e4" or "e7e8=Q".
func ParseMove(s string) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("%w: move %q", ErrMalformedNotation, s)
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return NoMove, err
	}
	return ParseMoveNotation(from, s[2:])
}
