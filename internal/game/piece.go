package game

import "unicode"

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// String returns the single-letter form used in position notation.
func (c Color) String() string {
	if c == White {
		return "w"
	}
	return "b"
}

// Kind is the type of a piece, independent of its color.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// PromotionKinds lists promotion choices in the order the generator emits them.
var PromotionKinds = [4]Kind{Queen, Rook, Bishop, Knight}

var kindLetters = [...]rune{NoKind: 0, Pawn: 'P', Knight: 'N', Bishop: 'B', Rook: 'R', Queen: 'Q', King: 'K'}

// Letter returns the uppercase letter for the kind, or 0 for NoKind.
func (k Kind) Letter() rune {
	if int(k) >= len(kindLetters) {
		return 0
	}
	return kindLetters[k]
}

// KindFromLetter maps a piece letter of either case to its kind.
func KindFromLetter(r rune) (Kind, bool) {
	up := unicode.ToUpper(r)
	for k := Pawn; k <= King; k++ {
		if kindLetters[k] == up {
			return k, true
		}
	}
	return NoKind, false
}

// Piece is a value combining kind and color. The zero value is an empty square.
type Piece struct {
	Kind  Kind
	Color Color
}

// NoPiece marks an empty square.
var NoPiece = Piece{}

// IsEmpty reports whether p represents an empty square.
func (p Piece) IsEmpty() bool {
	return p.Kind == NoKind
}

// Letter returns the notation letter: uppercase for white, lowercase for black.
func (p Piece) Letter() rune {
	l := p.Kind.Letter()
	if p.Color == Black {
		return unicode.ToLower(l)
	}
	return l
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return ""
	}
	return string(p.Letter())
}

// PieceFromLetter parses a notation letter into a piece.
func PieceFromLetter(r rune) (Piece, bool) {
	k, ok := KindFromLetter(r)
	if !ok {
		return NoPiece, false
	}
	c := White
	if unicode.IsLower(r) {
		c = Black
	}
	return Piece{Kind: k, Color: c}, true
}
