package game

import "fmt"

// moveEffect describes what a board mutation did beyond moving one piece.
type moveEffect struct {
	moved      Piece
	captured   Piece
	capturedOn Square
	enPassant  bool
	castle     bool
	promotedTo Kind
}

// Play returns the position after m. The receiver is a copy, so the caller's
// position is untouched. m is assumed pseudo-legal; Play does not check legality.
func (p Position) Play(m Move) Position {
	p.apply(m)
	return p
}

// apply mutates p in place. Moving from an empty square or onto a friendly
// piece means the caller corrupted its board and panics.
func (p *Position) apply(m Move) moveEffect {
	moved := p.PieceAt(m.From)
	if moved.IsEmpty() {
		panic(fmt.Sprintf("game: move %s from empty square", m))
	}
	target := p.PieceAt(m.To)
	if !target.IsEmpty() && target.Color == moved.Color {
		panic(fmt.Sprintf("game: move %s onto friendly %c", m, target.Letter()))
	}

	eff := moveEffect{moved: moved, captured: target, capturedOn: m.To}

	if moved.Kind == Pawn && m.To == p.EnPassant && m.From.File != m.To.File && target.IsEmpty() {
		eff.enPassant = true
		eff.capturedOn = Sq(m.To.File, m.From.Rank)
		eff.captured = p.PieceAt(eff.capturedOn)
		if eff.captured != (Piece{Kind: Pawn, Color: moved.Color.Other()}) {
			panic(fmt.Sprintf("game: en passant %s without an enemy pawn on %s", m, eff.capturedOn))
		}
		p.Put(eff.capturedOn, NoPiece)
	}

	if moved.Kind == King && abs(m.To.File-m.From.File) == 2 {
		eff.castle = true
		rookFrom, rookTo := Sq(8, m.From.Rank), Sq(6, m.From.Rank)
		if m.To.File < m.From.File {
			rookFrom, rookTo = Sq(1, m.From.Rank), Sq(4, m.From.Rank)
		}
		rook := p.PieceAt(rookFrom)
		if rook.Kind != Rook || rook.Color != moved.Color {
			panic(fmt.Sprintf("game: castle %s without rook on %s", m, rookFrom))
		}
		p.Put(rookFrom, NoPiece)
		p.Put(rookTo, rook)
	}

	placed := moved
	if moved.Kind == Pawn && m.To.Rank == promotionRank(moved.Color) {
		placed.Kind = m.Promotion
		if placed.Kind == NoKind {
			placed.Kind = Queen
		}
		eff.promotedTo = placed.Kind
	}
	p.Put(m.From, NoPiece)
	p.Put(m.To, placed)

	if moved.Kind == King {
		p.Castling.clear(moved.Color)
	}
	p.Castling.clearCorner(m.From)
	p.Castling.clearCorner(m.To)

	p.EnPassant = NoSquare
	if moved.Kind == Pawn && abs(m.To.Rank-m.From.Rank) == 2 {
		p.EnPassant = Sq(m.From.File, (m.From.Rank+m.To.Rank)/2)
	}

	if moved.Kind == Pawn || !eff.captured.IsEmpty() {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}
	if moved.Color == Black {
		p.FullMoveNumber++
	}
	p.SideToMove = moved.Color.Other()

	return eff
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
