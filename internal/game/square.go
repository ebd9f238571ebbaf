package game

import (
	"fmt"
	"math/bits"
)

// Square is a board coordinate. File and Rank both run 1..8 (a..h, 1..8).
// The zero value is NoSquare.
type Square struct {
	File int
	Rank int
}

// NoSquare is the absent square, used for an unset en-passant target.
var NoSquare = Square{}

// Sq builds a square from 1-based file and rank.
func Sq(file, rank int) Square {
	return Square{File: file, Rank: rank}
}

// Valid reports whether the square lies on the board.
func (s Square) Valid() bool {
	return s.File >= 1 && s.File <= 8 && s.Rank >= 1 && s.Rank <= 8
}

// Offset returns the square df files and dr ranks away. The result may be off-board.
func (s Square) Offset(df, dr int) Square {
	return Square{File: s.File + df, Rank: s.Rank + dr}
}

// ParseSquare converts algebraic notation (e.g. "e4") to a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("%w: square %q", ErrMalformedNotation, s)
	}
	sq := Square{File: int(s[0]-'a') + 1, Rank: int(s[1]-'1') + 1}
	if !sq.Valid() {
		return NoSquare, fmt.Errorf("%w: square %q", ErrMalformedNotation, s)
	}
	return sq, nil
}

// String converts the square to algebraic notation, or "-" when off-board.
func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return fmt.Sprintf("%c%c", 'a'+s.File-1, '1'+s.Rank-1)
}

func (s Square) index() int {
	return (s.Rank-1)*8 + s.File - 1
}

func squareAt(index int) Square {
	return Square{File: index%8 + 1, Rank: index/8 + 1}
}

// SquareSet is a set of on-board squares.
type SquareSet uint64

// Add returns the set with sq included. Off-board squares are ignored.
func (s SquareSet) Add(sq Square) SquareSet {
	if !sq.Valid() {
		return s
	}
	return s | 1<<uint(sq.index())
}

// Has reports whether sq is in the set.
func (s SquareSet) Has(sq Square) bool {
	return sq.Valid() && s&(1<<uint(sq.index())) != 0
}

// Len returns the number of squares in the set.
func (s SquareSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Squares lists the members in a1..h8 order.
func (s SquareSet) Squares() []Square {
	out := make([]Square, 0, s.Len())
	for b := uint64(s); b != 0; b &= b - 1 {
		out = append(out, squareAt(bits.TrailingZeros64(b)))
	}
	return out
}
