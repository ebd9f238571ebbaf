package game

import (
	"errors"
	"sort"
	"testing"
)

// destinations returns the sorted notations of moves, e.g. ["d2", "e8=Q"].
func destinations(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.Notation()
	}
	sort.Strings(out)
	return out
}

func squareNames(squares []Square) []string {
	out := make([]string, len(squares))
	for i, s := range squares {
		out[i] = s.String()
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustSquare(t *testing.T, s string) Square {
	t.Helper()
	sq, err := ParseSquare(s)
	if err != nil {
		t.Fatal(err)
	}
	return sq
}

func TestStartPositionHasTwentyMoves(t *testing.T) {
	pos := MustParseFEN(StartFEN)
	if n := len(AllLegalMoves(&pos, White)); n != 20 {
		t.Errorf("white has %d legal moves, want 20", n)
	}
	if n := len(AllLegalMoves(&pos, Black)); n != 20 {
		t.Errorf("black has %d legal moves, want 20", n)
	}
}

func TestPieceMoves(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		from string
		want []string
	}{
		{
			name: "knight in the corner",
			fen:  "4k3/8/8/8/8/8/8/N3K3 w - - 0 1",
			from: "a1",
			want: []string{"b3", "c2"},
		},
		{
			name: "knight skips friendly squares",
			fen:  "4k3/8/8/8/8/1P6/2P5/N3K3 w - - 0 1",
			from: "a1",
			want: []string{},
		},
		{
			name: "rook stops at blockers",
			fen:  "4k3/8/8/3p4/8/8/3P4/3RK3 w - - 0 1",
			from: "d1",
			want: []string{"a1", "b1", "c1"},
		},
		{
			name: "bishop captures and stops",
			fen:  "4k3/8/8/8/8/2p5/8/K3B3 w - - 0 1",
			from: "e1",
			want: []string{"c3", "d2", "f2", "g3", "h4"},
		},
		{
			name: "pawn single and double step",
			fen:  "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1",
			from: "e2",
			want: []string{"e3", "e4"},
		},
		{
			name: "pawn blocked double step",
			fen:  "4k3/8/8/8/4n3/8/4P3/4K3 w - - 0 1",
			from: "e2",
			want: []string{"e3"},
		},
		{
			name: "black pawn captures",
			fen:  "4k3/4p3/3B1B2/8/8/8/8/4K3 b - - 0 1",
			from: "e7",
			want: []string{"d6", "e5", "e6", "f6"},
		},
		{
			name: "pinned rook slides along the pin",
			fen:  "4r1k1/8/8/8/8/8/4R3/4K3 w - - 0 1",
			from: "e2",
			want: []string{"e3", "e4", "e5", "e6", "e7", "e8"},
		},
		{
			name: "pinned knight cannot move",
			fen:  "4k3/4r3/8/8/8/8/4N3/4K3 w - - 0 1",
			from: "e2",
			want: []string{},
		},
		{
			name: "king cannot step along the checking ray",
			fen:  "4k3/8/8/8/8/8/8/r3K3 w - - 0 1",
			from: "e1",
			want: []string{"d2", "e2", "f2"},
		},
		{
			name: "king cannot capture a defended piece",
			fen:  "3rk3/8/8/8/8/8/3q4/4K3 w - - 0 1",
			from: "e1",
			want: []string{"f1"},
		},
		{
			name: "only blocking moves while in check",
			fen:  "4k3/8/8/8/7b/8/8/R3K3 w - - 0 1",
			from: "a1",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := MustParseFEN(tt.fen)
			moves, err := LegalMoves(&pos, mustSquare(t, tt.from))
			if err != nil {
				t.Fatal(err)
			}
			if got := destinations(moves); !equalStrings(got, tt.want) {
				t.Errorf("moves from %s = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestPromotionYieldsFourMoves(t *testing.T) {
	pos := MustParseFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	moves, err := LegalMoves(&pos, Sq(1, 7))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a8=B", "a8=N", "a8=Q", "a8=R"}
	if got := destinations(moves); !equalStrings(got, want) {
		t.Errorf("promotion moves = %v, want %v", got, want)
	}

	pos = MustParseFEN("1r6/P7/8/8/8/8/8/k6K w - - 0 1")
	moves, _ = LegalMoves(&pos, Sq(1, 7))
	if len(moves) != 8 {
		t.Fatalf("got %d moves, want 8 (push and capture, four each)", len(moves))
	}
	for _, m := range moves {
		if m.Promotion == NoKind {
			t.Errorf("bare move %s to the last rank", m)
		}
	}
}

func TestAttacksIncludeDefendedSquares(t *testing.T) {
	pos := MustParseFEN("3rk3/8/8/8/8/8/3q4/4K3 w - - 0 1")

	rook, err := Attacks(&pos, Sq(4, 8))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a8", "b8", "c8", "d2", "d3", "d4", "d5", "d6", "d7", "e8"}
	if got := squareNames(rook); !equalStrings(got, want) {
		t.Errorf("rook attacks = %v, want %v", got, want)
	}

	pos = MustParseFEN("4k3/8/8/8/8/8/3P4/4K3 w - - 0 1")
	pawn, _ := Attacks(&pos, Sq(4, 2))
	if got := squareNames(pawn); !equalStrings(got, []string{"c3", "e3"}) {
		t.Errorf("pawn attacks = %v, want [c3 e3]", got)
	}
	king, _ := Attacks(&pos, Sq(5, 1))
	if got := squareNames(king); !equalStrings(got, []string{"d1", "d2", "e2", "f1", "f2"}) {
		t.Errorf("king attacks = %v", got)
	}
}

func TestAttackedSquaresLocatesKing(t *testing.T) {
	pos := MustParseFEN("4k3/8/8/8/8/8/8/R3K3 b - - 0 1")
	set, king := AttackedSquares(&pos, White)
	if king != Sq(5, 8) {
		t.Errorf("king = %s, want e8", king)
	}
	if !set.Has(Sq(1, 8)) || !set.Has(Sq(4, 1)) {
		t.Errorf("attack map missing rook rays: %v", squareNames(set.Squares()))
	}
	if set.Has(Sq(8, 1)) {
		t.Error("rook ray passed through its own king")
	}
	if set.Has(Sq(5, 8)) {
		t.Error("e8 reported attacked")
	}
}

func TestInvalidSquareQueries(t *testing.T) {
	pos := MustParseFEN(StartFEN)
	for _, sq := range []Square{Sq(5, 4), Sq(0, 3), Sq(9, 9)} {
		moves, err := LegalMoves(&pos, sq)
		if !errors.Is(err, ErrInvalidSquare) {
			t.Errorf("LegalMoves(%v) error = %v", sq, err)
		}
		if moves == nil || len(moves) != 0 {
			t.Errorf("LegalMoves(%v) = %v, want empty", sq, moves)
		}
		if _, err := Attacks(&pos, sq); !errors.Is(err, ErrInvalidSquare) {
			t.Errorf("Attacks(%v) error = %v", sq, err)
		}
	}
}

func TestCastlingEligibility(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want []string
	}{
		{"both sides", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", []string{"c1", "g1"}},
		{"no rights", "r3k2r/8/8/8/8/8/8/R3K2R w kq - 0 1", nil},
		{"king side only", "r3k2r/8/8/8/8/8/8/R3K2R w Kkq - 0 1", []string{"g1"}},
		{"crossing square attacked", "4k3/8/8/8/8/8/5r2/R3K2R w KQ - 0 1", []string{"c1"}},
		{"destination attacked", "4k3/8/8/8/8/8/2r5/R3K2R w KQ - 0 1", []string{"g1"}},
		{"in check", "4k3/4r3/8/8/8/8/8/R3K2R w KQ - 0 1", nil},
		{"path blocked", "4k3/8/8/8/8/8/8/RN2K1NR w KQ - 0 1", nil},
		{"b-file may be attacked", "1r2k3/8/8/8/8/8/8/R3K3 w Q - 0 1", []string{"c1"}},
		{"rook missing", "4k3/8/8/8/8/8/8/4K2R w KQ - 0 1", []string{"g1"}},
		{"black castles", "r3k2r/8/8/8/8/8/8/4K3 b kq - 0 1", []string{"c8", "g8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := MustParseFEN(tt.fen)
			king := pos.KingSquare(pos.SideToMove)
			moves, err := LegalMoves(&pos, king)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, m := range moves {
				if abs(m.To.File-m.From.File) == 2 {
					got = append(got, m.To.String())
				}
			}
			sort.Strings(got)
			if !equalStrings(got, tt.want) {
				t.Errorf("castling moves = %v, want %v", got, tt.want)
			}
		})
	}
}

// Every move the generator returns must leave the mover's king safe.
func TestLegalMovesNeverLeaveKingAttacked(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
		"8/8/8/2k5/3Pp3/8/8/4K2Q b - d3 0 1",
	}
	for _, fen := range fens {
		pos := MustParseFEN(fen)
		mover := pos.SideToMove
		for _, m := range AllLegalMoves(&pos, mover) {
			after := pos.Play(m)
			if InCheck(&after, mover) {
				t.Errorf("%s: %s leaves the king attacked", fen, m)
			}
		}
	}
}

func TestPlayDoesNotMutateSource(t *testing.T) {
	pos := MustParseFEN(StartFEN)
	_ = pos.Play(Move{From: Sq(5, 2), To: Sq(5, 4)})
	if got := pos.FEN(); got != StartFEN {
		t.Errorf("source position changed to %s", got)
	}
}

func TestPlayPanicsOnFriendlyCapture(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	pos := MustParseFEN(StartFEN)
	pos.Play(Move{From: Sq(1, 1), To: Sq(1, 2)})
}
