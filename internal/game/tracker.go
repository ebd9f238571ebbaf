package game

import (
	"fmt"
	"log"
)

// MoveResult describes a committed move.
type MoveResult struct {
	Move      Move   `json:"move"`
	Piece     Piece  `json:"-"`
	Captured  Piece  `json:"-"`
	EnPassant bool   `json:"enPassant"`
	Castle    bool   `json:"castle"`
	SAN       string `json:"san"`
	Check     bool   `json:"check"`
	FEN       string `json:"fen"`
	Status    Status `json:"status"`
	Result    string `json:"result"`
}

// pendingMove is the one-shot record of the last accepted legality check,
// consumed by the next commit.
type pendingMove struct {
	move             Move
	enPassantCapture bool
	enPassantTarget  Square
}

// Tracker owns the authoritative Position of one game. It applies committed
// moves, maintains the repetition table and detects the end of the game.
// A Tracker is not safe for concurrent use; callers serialize access.
type Tracker struct {
	rules       Rules
	startFEN    string
	pos         Position
	fen         string
	repetitions map[string]int
	history     []MoveResult
	status      Status
	winner      Color
	threats     SquareSet // squares attacked by the opponent of the side to move
	pending     *pendingMove
}

// NewTracker starts a game from fen. The position must hold exactly one king
// of each color.
func NewTracker(fen string, rules Rules) (*Tracker, error) {
	t := &Tracker{rules: rules.normalized()}
	if err := t.Reset(fen); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset discards the game and starts again from fen, clearing the clocks,
// history and repetition table. On error the tracker is unchanged.
func (t *Tracker) Reset(fen string) error {
	pos, err := ParseFEN(fen)
	if err != nil {
		return err
	}
	if err := pos.validate(); err != nil {
		return err
	}

	t.startFEN = fen
	t.pos = pos
	t.fen = pos.FEN()
	// The starting position is its own first occurrence, so two full cycles
	// back to it end the game.
	t.repetitions = map[string]int{pos.Fingerprint(): 1}
	t.history = nil
	t.pending = nil
	t.refresh()
	return nil
}

// refresh recomputes the attack map for the side to move and the game status.
func (t *Tracker) refresh() {
	side := t.pos.SideToMove
	threats, king := AttackedSquares(&t.pos, side.Other())
	t.threats = threats

	switch {
	case !HasLegalMoves(&t.pos, side):
		if threats.Has(king) {
			t.status = StatusCheckmate
			t.winner = side.Other()
		} else {
			t.status = StatusStalemate
		}
	case t.pos.HalfMoveClock >= t.rules.FiftyMovePlies:
		t.status = StatusFiftyMoves
	case t.repetitions[t.pos.Fingerprint()] >= t.rules.RepetitionLimit:
		t.status = StatusThreefoldRepetition
	case t.rules.InsufficientMaterialDraw && IsInsufficientMaterial(&t.pos):
		t.status = StatusInsufficientMaterial
	default:
		t.status = StatusInProgress
	}
}

// CheckMove validates a move given as a source square and destination
// notation ("e4", "e8=Q"). A promoting pawn move without a suffix is taken as
// a queen promotion. On success the move is recorded for the next commit; on
// failure nothing changes.
func (t *Tracker) CheckMove(from Square, notation string) (Move, error) {
	if t.status.IsOver() {
		return NoMove, fmt.Errorf("%w: game is over (%s)", ErrIllegalMove, t.status)
	}
	if !from.Valid() {
		return NoMove, fmt.Errorf("%w: %s", ErrInvalidSquare, from)
	}
	piece := t.pos.PieceAt(from)
	if piece.IsEmpty() {
		log.Printf("Move attempted from empty square %s", from)
		return NoMove, fmt.Errorf("%w: no piece on %s", ErrInvalidSquare, from)
	}
	if piece.Color != t.pos.SideToMove {
		return NoMove, fmt.Errorf("%w: not %s's turn", ErrIllegalMove, colorName(piece.Color))
	}

	m, err := ParseMoveNotation(from, notation)
	if err != nil {
		return NoMove, err
	}
	if m.From == m.To {
		return NoMove, fmt.Errorf("%w: source equals destination", ErrIllegalMove)
	}
	if piece.Kind == Pawn && m.To.Rank == promotionRank(piece.Color) && m.Promotion == NoKind {
		m.Promotion = Queen
	}

	found := false
	for _, legal := range legalFrom(&t.pos, from, nil) {
		if legal == m {
			found = true
			break
		}
	}
	if !found {
		return NoMove, fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}

	pend := &pendingMove{move: m, enPassantTarget: NoSquare}
	if piece.Kind == Pawn {
		pend.enPassantCapture = m.To == t.pos.EnPassant && m.From.File != m.To.File &&
			t.pos.PieceAt(m.To).IsEmpty()
		if abs(m.To.Rank-m.From.Rank) == 2 {
			pend.enPassantTarget = Sq(m.From.File, (m.From.Rank+m.To.Rank)/2)
		}
	}
	t.pending = pend
	return m, nil
}

// IsMoveLegal reports whether the move is legal for the side to move.
func (t *Tracker) IsMoveLegal(from Square, notation string) bool {
	_, err := t.CheckMove(from, notation)
	return err == nil
}

// ApplyMove validates and commits a move. Rejected moves leave the game
// untouched and return an error wrapping ErrIllegalMove, ErrInvalidSquare or
// ErrMalformedNotation.
func (t *Tracker) ApplyMove(from Square, notation string) (MoveResult, error) {
	m, err := t.CheckMove(from, notation)
	if err != nil {
		return MoveResult{}, err
	}
	return t.commit(m), nil
}

// Apply commits m; it is ApplyMove for an already-built Move.
func (t *Tracker) Apply(m Move) (MoveResult, error) {
	return t.ApplyMove(m.From, m.Notation())
}

func (t *Tracker) commit(m Move) MoveResult {
	pend := t.pending
	t.pending = nil
	if pend == nil || pend.move != m {
		panic(fmt.Sprintf("game: commit of %s without a matching legality check", m))
	}

	san := SAN(&t.pos, m)
	eff := t.pos.apply(m)
	if eff.enPassant != pend.enPassantCapture || t.pos.EnPassant != pend.enPassantTarget {
		panic(fmt.Sprintf("game: en-passant bookkeeping diverged on %s", m))
	}

	t.fen = t.pos.FEN()
	t.repetitions[t.pos.Fingerprint()]++
	t.refresh()

	res := MoveResult{
		Move:      m,
		Piece:     eff.moved,
		Captured:  eff.captured,
		EnPassant: eff.enPassant,
		Castle:    eff.castle,
		SAN:       san,
		Check:     t.InCheck(),
		FEN:       t.fen,
		Status:    t.status,
		Result:    t.Result(),
	}
	t.history = append(t.history, res)
	return res
}

// LegalMoves returns the legal moves of the piece on sq. Once the game is over
// every piece has an empty move set. An empty or off-board square is logged
// and reported as ErrInvalidSquare together with an empty slice.
func (t *Tracker) LegalMoves(sq Square) ([]Move, error) {
	moves, err := LegalMoves(&t.pos, sq)
	if err != nil {
		log.Printf("Legal move query on %s: %v", sq, err)
		return moves, err
	}
	if t.status.IsOver() {
		return []Move{}, nil
	}
	return moves, nil
}

// MovesOrAttacks answers the presentation layer's per-square query with
// destination notations: legal moves, or attacked squares when attacksOnly.
func (t *Tracker) MovesOrAttacks(sq Square, attacksOnly bool) ([]string, error) {
	if attacksOnly {
		squares, err := Attacks(&t.pos, sq)
		out := make([]string, len(squares))
		for i, s := range squares {
			out[i] = s.String()
		}
		return out, err
	}
	moves, err := t.LegalMoves(sq)
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.Notation()
	}
	return out, err
}

// AllLegalMoves returns every legal move of the side to move, or none once the
// game is over.
func (t *Tracker) AllLegalMoves() []Move {
	if t.status.IsOver() {
		return []Move{}
	}
	return AllLegalMoves(&t.pos, t.pos.SideToMove)
}

// Snapshot returns a copy of the current position. Changes to the copy never
// reach the tracker.
func (t *Tracker) Snapshot() Position {
	return t.pos
}

// FEN returns the current position notation.
func (t *Tracker) FEN() string {
	return t.fen
}

// StartFEN returns the position the game was started or last reset from.
func (t *Tracker) StartFEN() string {
	return t.startFEN
}

// SideToMove returns the color to move.
func (t *Tracker) SideToMove() Color {
	return t.pos.SideToMove
}

// Status returns the current state machine state.
func (t *Tracker) Status() Status {
	return t.status
}

// Winner returns the winning color when the game ended in checkmate.
func (t *Tracker) Winner() (Color, bool) {
	return t.winner, t.status == StatusCheckmate
}

// Result returns "w" or "b" for a win, "d" for a draw, "-" while in progress.
func (t *Tracker) Result() string {
	switch {
	case t.status == StatusCheckmate && t.winner == White:
		return ResultWhiteWins
	case t.status == StatusCheckmate:
		return ResultBlackWins
	case t.status.IsDraw():
		return ResultDraw
	default:
		return ResultOngoing
	}
}

// InCheck reports whether the side to move is in check.
func (t *Tracker) InCheck() bool {
	return t.threats.Has(t.pos.KingSquare(t.pos.SideToMove))
}

// Threats returns the squares attacked by the opponent of the side to move.
func (t *Tracker) Threats() SquareSet {
	return t.threats
}

// CastlingRights returns the current castling flags.
func (t *Tracker) CastlingRights() CastlingRights {
	return t.pos.Castling
}

// Clocks returns the half-move clock and full-move number.
func (t *Tracker) Clocks() (halfMove, fullMove int) {
	return t.pos.HalfMoveClock, t.pos.FullMoveNumber
}

// Repetitions returns how many times the current position has occurred.
func (t *Tracker) Repetitions() int {
	return t.repetitions[t.pos.Fingerprint()]
}

// History returns the committed moves since the last reset.
func (t *Tracker) History() []MoveResult {
	out := make([]MoveResult, len(t.history))
	copy(out, t.history)
	return out
}

func colorName(c Color) string {
	if c == White {
		return "white"
	}
	return "black"
}
