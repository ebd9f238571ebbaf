package game

import "fmt"

// CastlingRights holds the four independent castling flags.
type CastlingRights struct {
	WhiteKingSide  bool `json:"whiteKingSide" bson:"whiteKingSide"`
	WhiteQueenSide bool `json:"whiteQueenSide" bson:"whiteQueenSide"`
	BlackKingSide  bool `json:"blackKingSide" bson:"blackKingSide"`
	BlackQueenSide bool `json:"blackQueenSide" bson:"blackQueenSide"`
}

// KingSide returns the king-side flag for c.
func (cr CastlingRights) KingSide(c Color) bool {
	if c == White {
		return cr.WhiteKingSide
	}
	return cr.BlackKingSide
}

// QueenSide returns the queen-side flag for c.
func (cr CastlingRights) QueenSide(c Color) bool {
	if c == White {
		return cr.WhiteQueenSide
	}
	return cr.BlackQueenSide
}

func (cr *CastlingRights) clear(c Color) {
	if c == White {
		cr.WhiteKingSide, cr.WhiteQueenSide = false, false
	} else {
		cr.BlackKingSide, cr.BlackQueenSide = false, false
	}
}

// clearCorner drops the right tied to a rook home square, if sq is one.
func (cr *CastlingRights) clearCorner(sq Square) {
	switch sq {
	case Sq(1, 1):
		cr.WhiteQueenSide = false
	case Sq(8, 1):
		cr.WhiteKingSide = false
	case Sq(1, 8):
		cr.BlackQueenSide = false
	case Sq(8, 8):
		cr.BlackKingSide = false
	}
}

// String returns the canonical notation field: a subset of "KQkq" or "-".
func (cr CastlingRights) String() string {
	s := ""
	if cr.WhiteKingSide {
		s += "K"
	}
	if cr.WhiteQueenSide {
		s += "Q"
	}
	if cr.BlackKingSide {
		s += "k"
	}
	if cr.BlackQueenSide {
		s += "q"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Position is a complete game position. It is a plain value: assigning it
// copies the board, so a scratch copy never aliases the original.
type Position struct {
	squares        [8][8]Piece // [rank-1][file-1]
	SideToMove     Color
	Castling       CastlingRights
	EnPassant      Square // NoSquare unless the last move was a double pawn step
	HalfMoveClock  int
	FullMoveNumber int
}

// PieceAt returns the piece on sq, or NoPiece for empty or off-board squares.
func (p *Position) PieceAt(sq Square) Piece {
	if !sq.Valid() {
		return NoPiece
	}
	return p.squares[sq.Rank-1][sq.File-1]
}

// Put places piece on sq (NoPiece clears it). Used to set up positions.
func (p *Position) Put(sq Square, piece Piece) {
	if !sq.Valid() {
		panic("game: Put on off-board square " + sq.String())
	}
	p.squares[sq.Rank-1][sq.File-1] = piece
}

// KingSquare locates the king of color c, or NoSquare if there is none.
func (p *Position) KingSquare(c Color) Square {
	for r := 1; r <= 8; r++ {
		for f := 1; f <= 8; f++ {
			if pc := p.squares[r-1][f-1]; pc.Kind == King && pc.Color == c {
				return Sq(f, r)
			}
		}
	}
	return NoSquare
}

// countKings returns the number of kings of each color.
func (p *Position) countKings() (white, black int) {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if pc := p.squares[r][f]; pc.Kind == King {
				if pc.Color == White {
					white++
				} else {
					black++
				}
			}
		}
	}
	return white, black
}

// validate rejects boards a game cannot start from: a missing or extra king,
// an en-passant target with no pawn that could have just passed it, or the
// side not to move standing in check.
func (p *Position) validate() error {
	if w, b := p.countKings(); w != 1 || b != 1 {
		return fmt.Errorf("%w: need one king per side, have %d white and %d black", ErrMalformedNotation, w, b)
	}

	if ep := p.EnPassant; ep != NoSquare {
		side := p.SideToMove
		mover := side.Other()
		if ep.Rank != enPassantRank(side) {
			return fmt.Errorf("%w: en-passant square %s on the wrong rank", ErrMalformedNotation, ep)
		}
		victim := p.PieceAt(ep.Offset(0, -pawnDirection(side)))
		origin := p.PieceAt(ep.Offset(0, pawnDirection(side)))
		if !p.PieceAt(ep).IsEmpty() || !origin.IsEmpty() || victim != (Piece{Kind: Pawn, Color: mover}) {
			return fmt.Errorf("%w: en-passant square %s without a pawn that just passed it", ErrMalformedNotation, ep)
		}
	}

	idle := p.SideToMove.Other()
	if king := p.KingSquare(idle); IsAttacked(p, king, p.SideToMove) {
		return fmt.Errorf("%w: %s is in check but not to move", ErrMalformedNotation, colorName(idle))
	}
	return nil
}

// Fingerprint is the repetition key: placement, side to move, castling rights
// and en-passant target. Clocks are excluded.
func (p *Position) Fingerprint() string {
	return p.placement() + " " + p.SideToMove.String() + " " + p.Castling.String() + " " + p.EnPassant.String()
}

// Material sums piece values for c using the search weights.
func (p *Position) Material(c Color) int {
	total := 0
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if pc := p.squares[r][f]; !pc.IsEmpty() && pc.Color == c {
				total += PieceValue(pc.Kind)
			}
		}
	}
	return total
}

// PieceValue is the material weight of a kind: pawn 1, minor 3, rook 5,
// queen 9, king 100.
func PieceValue(k Kind) int {
	switch k {
	case Pawn:
		return 1
	case Knight, Bishop:
		return 3
	case Rook:
		return 5
	case Queen:
		return 9
	case King:
		return 100
	}
	return 0
}

func homeRank(c Color) int {
	if c == White {
		return 1
	}
	return 8
}

func pawnDirection(c Color) int {
	if c == White {
		return 1
	}
	return -1
}

func promotionRank(c Color) int {
	if c == White {
		return 8
	}
	return 1
}
