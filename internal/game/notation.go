package game

import "strings"

// SAN generates standard algebraic notation for a legal move m in p,
// including the check (+) or mate (#) suffix.
func SAN(p *Position, m Move) string {
	piece := p.PieceAt(m.From)
	if piece.IsEmpty() {
		return ""
	}

	var notation strings.Builder

	if piece.Kind == King && abs(m.To.File-m.From.File) == 2 {
		if m.To.File == 7 {
			notation.WriteString("O-O")
		} else {
			notation.WriteString("O-O-O")
		}
	} else {
		isCapture := !p.PieceAt(m.To).IsEmpty() || (piece.Kind == Pawn && m.From.File != m.To.File)

		if piece.Kind != Pawn {
			notation.WriteRune(piece.Kind.Letter())
			if piece.Kind != King {
				needFile, needRank := needsDisambiguation(p, m, piece)
				if needFile {
					notation.WriteByte(byte('a' + m.From.File - 1))
				}
				if needRank {
					notation.WriteByte(byte('1' + m.From.Rank - 1))
				}
			}
		} else if isCapture {
			notation.WriteByte(byte('a' + m.From.File - 1))
		}

		if isCapture {
			notation.WriteByte('x')
		}
		notation.WriteString(m.To.String())

		if piece.Kind == Pawn && m.To.Rank == promotionRank(piece.Color) {
			promo := m.Promotion
			if promo == NoKind {
				promo = Queen
			}
			notation.WriteByte('=')
			notation.WriteRune(promo.Letter())
		}
	}

	after := p.Play(m)
	opponent := piece.Color.Other()
	if InCheck(&after, opponent) {
		if HasLegalMoves(&after, opponent) {
			notation.WriteByte('+')
		} else {
			notation.WriteByte('#')
		}
	}

	return notation.String()
}

// needsDisambiguation decides whether the source file and/or rank must be
// written: file when it tells the candidates apart, else rank, else both.
func needsDisambiguation(p *Position, m Move, piece Piece) (needFile, needRank bool) {
	ambiguous, sameFile, sameRank := false, false, false

	for r := 1; r <= 8; r++ {
		for f := 1; f <= 8; f++ {
			from := Sq(f, r)
			if from == m.From || p.PieceAt(from) != piece {
				continue
			}
			for _, other := range legalFrom(p, from, nil) {
				if other.To != m.To {
					continue
				}
				ambiguous = true
				if f == m.From.File {
					sameFile = true
				}
				if r == m.From.Rank {
					sameRank = true
				}
				break
			}
		}
	}

	switch {
	case !ambiguous:
		return false, false
	case !sameFile:
		return true, false
	case !sameRank:
		return false, true
	default:
		return true, true
	}
}
