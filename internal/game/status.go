package game

// Status is the state of the game state machine.
type Status string

const (
	StatusInProgress           Status = "in_progress"
	StatusCheckmate            Status = "checkmate"
	StatusStalemate            Status = "stalemate"
	StatusFiftyMoves           Status = "fifty_moves"
	StatusThreefoldRepetition  Status = "threefold_repetition"
	StatusInsufficientMaterial Status = "insufficient_material"
)

// Result codes reported at the presentation boundary.
const (
	ResultWhiteWins = "w"
	ResultBlackWins = "b"
	ResultDraw      = "d"
	ResultOngoing   = "-"
)

// IsOver reports whether the status is terminal.
func (s Status) IsOver() bool {
	return s != StatusInProgress && s != ""
}

// IsDraw reports whether the status is a drawn terminal state.
func (s Status) IsDraw() bool {
	return s.IsOver() && s != StatusCheckmate
}

// DisplayText returns a human-readable description of the status.
func (s Status) DisplayText() string {
	switch s {
	case StatusInProgress:
		return "Game in progress"
	case StatusCheckmate:
		return "Checkmate"
	case StatusStalemate:
		return "Draw by stalemate"
	case StatusFiftyMoves:
		return "Draw by 50-move rule"
	case StatusThreefoldRepetition:
		return "Draw by threefold repetition"
	case StatusInsufficientMaterial:
		return "Draw by insufficient material"
	default:
		return "Unknown"
	}
}

// Rules holds the tunable draw thresholds.
type Rules struct {
	// FiftyMovePlies is the half-move clock value that ends the game.
	FiftyMovePlies int `json:"fiftyMovePlies"`
	// RepetitionLimit is the occurrence count of one position that ends the game.
	RepetitionLimit int `json:"repetitionLimit"`
	// InsufficientMaterialDraw ends the game when neither side can mate.
	InsufficientMaterialDraw bool `json:"insufficientMaterialDraw"`
}

// DefaultRules returns the half-move threshold of 50 and threefold repetition.
func DefaultRules() Rules {
	return Rules{FiftyMovePlies: 50, RepetitionLimit: 3}
}

func (r Rules) normalized() Rules {
	d := DefaultRules()
	if r.FiftyMovePlies <= 0 {
		r.FiftyMovePlies = d.FiftyMovePlies
	}
	if r.RepetitionLimit <= 0 {
		r.RepetitionLimit = d.RepetitionLimit
	}
	return r
}

// IsInsufficientMaterial checks if neither player can checkmate:
// K v K, K+minor v K, and K+B v K+B with bishops on the same square color.
func IsInsufficientMaterial(p *Position) bool {
	var white, black []Kind
	var whiteBishopLight, blackBishopLight []bool

	for r := 1; r <= 8; r++ {
		for f := 1; f <= 8; f++ {
			pc := p.PieceAt(Sq(f, r))
			if pc.IsEmpty() || pc.Kind == King {
				continue
			}
			light := (r+f)%2 == 1
			if pc.Color == White {
				white = append(white, pc.Kind)
				if pc.Kind == Bishop {
					whiteBishopLight = append(whiteBishopLight, light)
				}
			} else {
				black = append(black, pc.Kind)
				if pc.Kind == Bishop {
					blackBishopLight = append(blackBishopLight, light)
				}
			}
		}
	}

	switch {
	case len(white) == 0 && len(black) == 0:
		return true
	case len(white) == 0 && len(black) == 1:
		return black[0] == Bishop || black[0] == Knight
	case len(black) == 0 && len(white) == 1:
		return white[0] == Bishop || white[0] == Knight
	case len(white) == 1 && len(black) == 1 && white[0] == Bishop && black[0] == Bishop:
		return whiteBishopLight[0] == blackBishopLight[0]
	}
	return false
}
