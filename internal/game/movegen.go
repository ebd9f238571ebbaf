package game

import "fmt"

type genMode uint8

const (
	// legalMode produces candidate moves that are later filtered for self-check.
	legalMode genMode = iota
	// attackMode produces every square a piece controls, friendly-occupied
	// squares included, with no castling and no self-check filtering.
	attackMode
)

type generator func(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move

// generators is filled in init because kingMoves reaches back into the table
// through AttackedSquares.
var generators [King + 1]generator

func init() {
	generators = [King + 1]generator{
		Pawn:   pawnMoves,
		Knight: knightMoves,
		Bishop: bishopMoves,
		Rook:   rookMoves,
		Queen:  queenMoves,
		King:   kingMoves,
	}
}

var (
	bishopDirs    = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	rookDirs      = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	queenDirs     = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	knightOffsets = [][2]int{{2, 1}, {2, -1}, {-2, 1}, {-2, -1}, {1, 2}, {1, -2}, {-1, 2}, {-1, -2}}
)

func pseudoMoves(p *Position, from Square, mode genMode, out []Move) []Move {
	pc := p.PieceAt(from)
	if pc.IsEmpty() {
		return out
	}
	return generators[pc.Kind](p, from, pc, mode, out)
}

// LegalMoves returns the legal moves of the piece on from, whichever color it
// is. An off-board or empty square yields ErrInvalidSquare and an empty slice.
func LegalMoves(p *Position, from Square) ([]Move, error) {
	if !from.Valid() || p.PieceAt(from).IsEmpty() {
		return []Move{}, fmt.Errorf("%w: no piece on %s", ErrInvalidSquare, from)
	}
	return legalFrom(p, from, nil), nil
}

func legalFrom(p *Position, from Square, out []Move) []Move {
	mover := p.PieceAt(from).Color
	var buf [32]Move
	for _, m := range pseudoMoves(p, from, legalMode, buf[:0]) {
		if !leavesKingAttacked(p, m, mover) {
			out = append(out, m)
		}
	}
	if out == nil {
		out = []Move{}
	}
	return out
}

// leavesKingAttacked simulates m on a scratch copy and reports whether the
// mover's king is attacked afterwards.
func leavesKingAttacked(p *Position, m Move, mover Color) bool {
	scratch := p.Play(m)
	king := scratch.KingSquare(mover)
	if !king.Valid() {
		return false
	}
	threats, _ := AttackedSquares(&scratch, mover.Other())
	return threats.Has(king)
}

// Attacks returns the squares the piece on from attacks, ignoring whether the
// attacker's own king would be exposed.
func Attacks(p *Position, from Square) ([]Square, error) {
	if !from.Valid() || p.PieceAt(from).IsEmpty() {
		return []Square{}, fmt.Errorf("%w: no piece on %s", ErrInvalidSquare, from)
	}
	var set SquareSet
	var buf [32]Move
	for _, m := range pseudoMoves(p, from, attackMode, buf[:0]) {
		set = set.Add(m.To)
	}
	return set.Squares(), nil
}

// AllLegalMoves returns every legal move for color c, scanning a1..h8.
func AllLegalMoves(p *Position, c Color) []Move {
	moves := []Move{}
	for r := 1; r <= 8; r++ {
		for f := 1; f <= 8; f++ {
			from := Sq(f, r)
			if pc := p.PieceAt(from); !pc.IsEmpty() && pc.Color == c {
				moves = legalFrom(p, from, moves)
			}
		}
	}
	return moves
}

// HasLegalMoves reports whether c has at least one legal move. It stops at
// the first one found.
func HasLegalMoves(p *Position, c Color) bool {
	var buf [32]Move
	for r := 1; r <= 8; r++ {
		for f := 1; f <= 8; f++ {
			from := Sq(f, r)
			pc := p.PieceAt(from)
			if pc.IsEmpty() || pc.Color != c {
				continue
			}
			for _, m := range pseudoMoves(p, from, legalMode, buf[:0]) {
				if !leavesKingAttacked(p, m, c) {
					return true
				}
			}
		}
	}
	return false
}

// InCheck reports whether c's king is attacked.
func InCheck(p *Position, c Color) bool {
	threats, king := AttackedSquares(p, c.Other())
	return threats.Has(king)
}

func pawnMoves(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move {
	dir := pawnDirection(pc.Color)

	if mode == legalMode {
		one := from.Offset(0, dir)
		if one.Valid() && p.PieceAt(one).IsEmpty() {
			out = addPawnMove(out, from, one, pc.Color)
			two := from.Offset(0, 2*dir)
			if from.Rank == homeRank(pc.Color)+dir && p.PieceAt(two).IsEmpty() {
				out = append(out, Move{From: from, To: two})
			}
		}
	}

	for _, df := range []int{-1, 1} {
		to := from.Offset(df, dir)
		if !to.Valid() {
			continue
		}
		if mode == attackMode {
			out = append(out, Move{From: from, To: to})
			continue
		}
		target := p.PieceAt(to)
		capture := !target.IsEmpty() && target.Color != pc.Color
		enPassant := to == p.EnPassant && to.Rank == enPassantRank(pc.Color)
		if capture || enPassant {
			out = addPawnMove(out, from, to, pc.Color)
		}
	}
	return out
}

// addPawnMove emits four promotion moves when to is the last rank, else one.
func addPawnMove(out []Move, from, to Square, c Color) []Move {
	if to.Rank != promotionRank(c) {
		return append(out, Move{From: from, To: to})
	}
	for _, k := range PromotionKinds {
		out = append(out, Move{From: from, To: to, Promotion: k})
	}
	return out
}

// enPassantRank is the rank of an en-passant target capturable by c.
func enPassantRank(c Color) int {
	if c == White {
		return 6
	}
	return 3
}

func knightMoves(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move {
	return stepMoves(p, from, pc, mode, knightOffsets, out)
}

func stepMoves(p *Position, from Square, pc Piece, mode genMode, offsets [][2]int, out []Move) []Move {
	for _, off := range offsets {
		to := from.Offset(off[0], off[1])
		if !to.Valid() {
			continue
		}
		if target := p.PieceAt(to); mode == legalMode && !target.IsEmpty() && target.Color == pc.Color {
			continue
		}
		out = append(out, Move{From: from, To: to})
	}
	return out
}

func bishopMoves(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move {
	return slidingMoves(p, from, pc, mode, bishopDirs, out)
}

func rookMoves(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move {
	return slidingMoves(p, from, pc, mode, rookDirs, out)
}

func queenMoves(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move {
	return slidingMoves(p, from, pc, mode, queenDirs, out)
}

func slidingMoves(p *Position, from Square, pc Piece, mode genMode, dirs [][2]int, out []Move) []Move {
	for _, d := range dirs {
		for to := from.Offset(d[0], d[1]); to.Valid(); to = to.Offset(d[0], d[1]) {
			target := p.PieceAt(to)
			if target.IsEmpty() {
				out = append(out, Move{From: from, To: to})
				continue
			}
			if target.Color != pc.Color || mode == attackMode {
				out = append(out, Move{From: from, To: to})
			}
			break
		}
	}
	return out
}

var kingOffsets = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

func kingMoves(p *Position, from Square, pc Piece, mode genMode, out []Move) []Move {
	if mode == attackMode {
		return stepMoves(p, from, pc, mode, kingOffsets, out)
	}

	threats, _ := AttackedSquares(p, pc.Color.Other())
	for _, off := range kingOffsets {
		to := from.Offset(off[0], off[1])
		if !to.Valid() || threats.Has(to) {
			continue
		}
		if target := p.PieceAt(to); !target.IsEmpty() && target.Color == pc.Color {
			continue
		}
		out = append(out, Move{From: from, To: to})
	}

	return castlingMoves(p, from, pc.Color, threats, out)
}

// castlingMoves emits the king's two-file move for each side whose right is
// set, whose path is empty, and whose king squares are not attacked.
func castlingMoves(p *Position, from Square, c Color, threats SquareSet, out []Move) []Move {
	rank := homeRank(c)
	if from != Sq(5, rank) || threats.Has(from) {
		return out
	}
	rook := Piece{Kind: Rook, Color: c}

	if p.Castling.KingSide(c) && p.PieceAt(Sq(8, rank)) == rook &&
		emptyAndSafe(p, threats, rank, 6, 7) {
		out = append(out, Move{From: from, To: Sq(7, rank)})
	}
	if p.Castling.QueenSide(c) && p.PieceAt(Sq(1, rank)) == rook &&
		p.PieceAt(Sq(2, rank)).IsEmpty() && emptyAndSafe(p, threats, rank, 3, 4) {
		out = append(out, Move{From: from, To: Sq(3, rank)})
	}
	return out
}

func emptyAndSafe(p *Position, threats SquareSet, rank, fromFile, toFile int) bool {
	for f := fromFile; f <= toFile; f++ {
		sq := Sq(f, rank)
		if !p.PieceAt(sq).IsEmpty() || threats.Has(sq) {
			return false
		}
	}
	return true
}
