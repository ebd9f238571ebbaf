package game

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses six-field position notation into a Position.
func ParseFEN(fen string) (Position, error) {
	var pos Position

	parts := strings.Split(fen, " ")
	if len(parts) != 6 {
		return pos, fmt.Errorf("%w: expected 6 fields, got %d", ErrMalformedNotation, len(parts))
	}

	if err := pos.parsePlacement(parts[0]); err != nil {
		return pos, err
	}

	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return pos, fmt.Errorf("%w: side to move %q", ErrMalformedNotation, parts[1])
	}

	if err := pos.parseCastling(parts[2]); err != nil {
		return pos, err
	}

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return pos, fmt.Errorf("%w: en-passant square %q", ErrMalformedNotation, parts[3])
		}
		pos.EnPassant = sq
	}

	var err error
	if pos.HalfMoveClock, err = parseCounter(parts[4]); err != nil {
		return pos, err
	}
	if pos.FullMoveNumber, err = parseCounter(parts[5]); err != nil {
		return pos, err
	}

	return pos, nil
}

// MustParseFEN is ParseFEN for constant inputs; it panics on error.
func MustParseFEN(fen string) Position {
	pos, err := ParseFEN(fen)
	if err != nil {
		panic(err)
	}
	return pos
}

func (p *Position) parsePlacement(field string) error {
	ranks := strings.Split(field, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: expected 8 ranks, got %d", ErrMalformedNotation, len(ranks))
	}

	for i, row := range ranks {
		rank := 8 - i
		file := 1
		prevDigit := false
		for _, c := range row {
			if c >= '1' && c <= '8' {
				if prevDigit {
					return fmt.Errorf("%w: adjacent digits in rank %d", ErrMalformedNotation, rank)
				}
				file += int(c - '0')
				prevDigit = true
				continue
			}
			prevDigit = false
			piece, ok := PieceFromLetter(c)
			if !ok {
				return fmt.Errorf("%w: unknown piece %q", ErrMalformedNotation, c)
			}
			if file > 8 {
				return fmt.Errorf("%w: rank %d overflows", ErrMalformedNotation, rank)
			}
			p.squares[rank-1][file-1] = piece
			file++
		}
		if file != 9 {
			return fmt.Errorf("%w: rank %d has %d files", ErrMalformedNotation, rank, file-1)
		}
	}
	return nil
}

func (p *Position) parseCastling(field string) error {
	if field == "-" {
		return nil
	}
	if field == "" {
		return fmt.Errorf("%w: empty castling field", ErrMalformedNotation)
	}
	seen := map[rune]bool{}
	for _, c := range field {
		if seen[c] {
			return fmt.Errorf("%w: repeated castling flag %q", ErrMalformedNotation, c)
		}
		seen[c] = true
		switch c {
		case 'K':
			p.Castling.WhiteKingSide = true
		case 'Q':
			p.Castling.WhiteQueenSide = true
		case 'k':
			p.Castling.BlackKingSide = true
		case 'q':
			p.Castling.BlackQueenSide = true
		default:
			return fmt.Errorf("%w: castling flag %q", ErrMalformedNotation, c)
		}
	}
	return nil
}

// parseCounter accepts canonical non-negative decimals only ("0", "12", not "012").
func parseCounter(s string) (int, error) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, fmt.Errorf("%w: counter %q", ErrMalformedNotation, s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: counter %q", ErrMalformedNotation, s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: counter %q", ErrMalformedNotation, s)
	}
	return n, nil
}

func (p *Position) placement() string {
	var sb strings.Builder
	for r := 8; r >= 1; r-- {
		empty := 0
		for f := 1; f <= 8; f++ {
			piece := p.squares[r-1][f-1]
			if piece.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteRune(rune('0' + empty))
				empty = 0
			}
			sb.WriteRune(piece.Letter())
		}
		if empty > 0 {
			sb.WriteRune(rune('0' + empty))
		}
		if r > 1 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// FEN serializes the position in canonical six-field notation.
func (p *Position) FEN() string {
	return fmt.Sprintf("%s %d %d", p.Fingerprint(), p.HalfMoveClock, p.FullMoveNumber)
}
