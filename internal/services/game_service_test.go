package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"chess-core/internal/agent"
	"chess-core/internal/auth"
	"chess-core/internal/db"
	"chess-core/internal/game"
	"chess-core/internal/models"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	joined   int
	moves    []string
	gameOver []string
	resets   int
}

func (b *recordingBroadcaster) BroadcastPlayerJoined(sessionID string, g *models.Game) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joined++
}

func (b *recordingBroadcaster) BroadcastMove(sessionID string, g *models.Game, mv *models.Move) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moves = append(b.moves, mv.SAN)
}

func (b *recordingBroadcaster) BroadcastGameOver(sessionID string, g *models.Game) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gameOver = append(b.gameOver, g.EndReason)
}

func (b *recordingBroadcaster) BroadcastReset(sessionID string, g *models.Game) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
}

type recordingNotifier struct {
	started  []string
	notified []string
	stopped  []string
}

func (n *recordingNotifier) StartGame(id string)  { n.started = append(n.started, id) }
func (n *recordingNotifier) NotifyTurn(id string) { n.notified = append(n.notified, id) }
func (n *recordingNotifier) StopGame(id string)   { n.stopped = append(n.stopped, id) }

func firstMove(int) int { return 0 }

type fixture struct {
	svc   *GameService
	store *db.MemoryStore
	bc    *recordingBroadcaster
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: db.NewMemoryStore(),
		bc:    &recordingBroadcaster{},
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewGameService(f.store, auth.NewJWTService("test-secret", time.Hour), game.DefaultRules(),
		agent.Options{Depth: 1, Rand: firstMove})
	f.svc.now = func() time.Time { return f.clock }
	f.svc.SetBroadcaster(f.bc)
	return f
}

// startGame creates a two-player game and returns the white and black seats.
func (f *fixture) startGame(t *testing.T, opts CreateOptions) (white, black *Seat) {
	t.Helper()
	ctx := context.Background()
	first, err := f.svc.Create(ctx, opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := f.svc.Join(ctx, first.SessionID, "second", opts.Passphrase)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if first.Color == models.White {
		return first, second
	}
	return second, first
}

func (f *fixture) play(t *testing.T, seat *Seat, from, to string) *MoveOutcome {
	t.Helper()
	out, err := f.svc.MakeMove(context.Background(), seat.SessionID, seat.PlayerID, from, to)
	if err != nil {
		t.Fatalf("%s %s-%s: %v", seat.Color, from, to, err)
	}
	return out
}

func TestCreateAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seat, err := f.svc.Create(ctx, CreateOptions{DisplayName: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if seat.Color != models.White || seat.Game.Status != models.GameStatusWaiting {
		t.Errorf("creator seat = %s/%s, want white/waiting", seat.Color, seat.Game.Status)
	}
	if seat.Game.FEN != game.StartFEN || seat.Game.Result != game.ResultOngoing {
		t.Errorf("new game fen=%q result=%q", seat.Game.FEN, seat.Game.Result)
	}

	claims, err := f.svc.tokens.ValidatePlayerToken(seat.Token)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if claims.SessionID != seat.SessionID || claims.PlayerID != seat.PlayerID || claims.Color != "white" {
		t.Errorf("claims = %+v", claims)
	}

	joined, err := f.svc.Join(ctx, seat.SessionID, "bob", "")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Color != models.Black || joined.Game.Status != models.GameStatusActive {
		t.Errorf("joined seat = %s/%s, want black/active", joined.Color, joined.Game.Status)
	}
	if f.bc.joined != 1 {
		t.Errorf("joined broadcasts = %d", f.bc.joined)
	}

	if _, err := f.svc.Join(ctx, seat.SessionID, "carol", ""); !errors.Is(err, ErrGameFull) {
		t.Errorf("third join: got %v, want ErrGameFull", err)
	}
}

func TestCreateAsBlack(t *testing.T) {
	f := newFixture(t)
	seat, err := f.svc.Create(context.Background(), CreateOptions{Color: models.Black})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	joined, err := f.svc.Join(context.Background(), seat.SessionID, "", "")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if seat.Color != models.Black || joined.Color != models.White {
		t.Errorf("colors = %s/%s", seat.Color, joined.Color)
	}
}

func TestCreateRejectsBadPositions(t *testing.T) {
	f := newFixture(t)
	for _, fen := range []string{
		"not a fen",
		"8/8/8/8/8/8/8/4K3 w - - 0 1",       // no black king
		"4k3/8/8/3PN3/8/8/8/4K3 w - e6 0 1", // no pawn behind the en-passant target
	} {
		if _, err := f.svc.Create(context.Background(), CreateOptions{FEN: fen}); !errors.Is(err, game.ErrMalformedNotation) {
			t.Errorf("%q: got %v, want ErrMalformedNotation", fen, err)
		}
	}
	if _, err := f.svc.Create(context.Background(), CreateOptions{EngineColor: "green"}); !errors.Is(err, ErrInvalidEngineColor) {
		t.Errorf("engine color: got %v", err)
	}
}

func TestJoinPrivateGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat, err := f.svc.Create(ctx, CreateOptions{Passphrase: "open sesame"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if seat.Game.PassphraseHash == "" || seat.Game.PassphraseHash == "open sesame" {
		t.Fatalf("passphrase not hashed: %q", seat.Game.PassphraseHash)
	}
	if _, err := f.svc.Join(ctx, seat.SessionID, "", "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("wrong passphrase: got %v", err)
	}
	if _, err := f.svc.Join(ctx, seat.SessionID, "", "open sesame"); err != nil {
		t.Errorf("right passphrase: %v", err)
	}
}

func TestMakeMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	white, black := f.startGame(t, CreateOptions{})

	out := f.play(t, white, "e2", "e4")
	if out.Move.SAN != "e4" || out.Move.Ply != 1 || out.Move.Piece != "P" {
		t.Errorf("move = %+v", out.Move)
	}
	if out.Game.CurrentTurn != models.Black || out.Result != game.ResultOngoing {
		t.Errorf("after e4: turn=%s result=%s", out.Game.CurrentTurn, out.Result)
	}

	if _, err := f.svc.MakeMove(ctx, white.SessionID, white.PlayerID, "d2", "d4"); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("white twice: got %v, want ErrNotYourTurn", err)
	}
	if _, err := f.svc.MakeMove(ctx, white.SessionID, "stranger", "e7", "e5"); !errors.Is(err, ErrNotAPlayer) {
		t.Errorf("stranger: got %v, want ErrNotAPlayer", err)
	}
	if _, err := f.svc.MakeMove(ctx, black.SessionID, black.PlayerID, "e7", "e4"); !errors.Is(err, game.ErrIllegalMove) {
		t.Errorf("blocked pawn: got %v, want ErrIllegalMove", err)
	}
	if _, err := f.svc.MakeMove(ctx, black.SessionID, black.PlayerID, "e9", "e5"); !errors.Is(err, game.ErrInvalidSquare) {
		t.Errorf("bad square: got %v, want ErrInvalidSquare", err)
	}

	f.play(t, black, "e7", "e5")
	f.play(t, white, "g1", "f3")

	moves, err := f.svc.History(ctx, white.SessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var sans []string
	for _, mv := range moves {
		sans = append(sans, mv.SAN)
	}
	if len(sans) != 3 || sans[0] != "e4" || sans[1] != "e5" || sans[2] != "Nf3" {
		t.Errorf("history = %v", sans)
	}
	if len(f.bc.moves) != 3 {
		t.Errorf("broadcast %d moves, want 3", len(f.bc.moves))
	}

	state, err := f.svc.State(ctx, white.SessionID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	want := "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2"
	if state.FEN != want || state.Game.FEN != want {
		t.Errorf("fen = %q, stored %q", state.FEN, state.Game.FEN)
	}
	if state.HalfMove != 1 || state.FullMove != 2 || state.Castling != "KQkq" || state.Turn != models.Black {
		t.Errorf("state = %+v", state)
	}
}

func TestMoveBeforeOpponentJoins(t *testing.T) {
	f := newFixture(t)
	seat, err := f.svc.Create(context.Background(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.MakeMove(context.Background(), seat.SessionID, seat.PlayerID, "e2", "e4"); !errors.Is(err, ErrGameNotStarted) {
		t.Errorf("got %v, want ErrGameNotStarted", err)
	}
}

func TestCheckmateEndsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	white, black := f.startGame(t, CreateOptions{})

	f.play(t, white, "f2", "f3")
	f.play(t, black, "e7", "e5")
	f.play(t, white, "g2", "g4")
	out := f.play(t, black, "d8", "h4")

	if out.Move.SAN != "Qh4#" {
		t.Errorf("san = %s", out.Move.SAN)
	}
	g := out.Game
	if g.Status != models.GameStatusComplete || g.Result != game.ResultBlackWins || g.Winner != models.Black ||
		g.EndReason != string(game.StatusCheckmate) || g.CompletedAt == nil {
		t.Errorf("game = %+v", g)
	}
	if len(f.bc.gameOver) != 1 || f.bc.gameOver[0] != "checkmate" {
		t.Errorf("game over broadcasts = %v", f.bc.gameOver)
	}

	if _, err := f.svc.MakeMove(ctx, white.SessionID, white.PlayerID, "a2", "a3"); !errors.Is(err, ErrGameOver) {
		t.Errorf("move after mate: got %v, want ErrGameOver", err)
	}
	moves, _ := f.svc.LegalMoves(ctx, white.SessionID)
	if len(moves) != 0 {
		t.Errorf("legal moves after mate: %v", moves)
	}
	if _, err := f.svc.Suggest(ctx, white.SessionID); !errors.Is(err, ErrGameOver) {
		t.Errorf("suggest after mate: got %v", err)
	}
}

func TestRebuildKeepsRepetitionCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	white, black := f.startGame(t, CreateOptions{})

	shuffle := func() {
		f.play(t, white, "g1", "f3")
		f.play(t, black, "g8", "f6")
		f.play(t, white, "f3", "g1")
		f.play(t, black, "f6", "g8")
	}
	shuffle()

	f.clock = f.clock.Add(time.Hour)
	if n := f.svc.EvictIdle(time.Minute); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if f.svc.CachedSessions() != 0 {
		t.Fatalf("cache not empty")
	}

	state, err := f.svc.State(ctx, white.SessionID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Repetitions != 2 || state.FEN != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 4 3" {
		t.Errorf("rebuilt state: reps=%d fen=%s", state.Repetitions, state.FEN)
	}

	shuffle()
	state, _ = f.svc.State(ctx, white.SessionID)
	if state.Game.Result != game.ResultDraw || state.Game.EndReason != string(game.StatusThreefoldRepetition) {
		t.Errorf("after third occurrence: result=%s reason=%s", state.Game.Result, state.Game.EndReason)
	}
}

func TestEvictIdleKeepsRecentSessions(t *testing.T) {
	f := newFixture(t)
	white, _ := f.startGame(t, CreateOptions{})
	if n := f.svc.EvictIdle(time.Minute); n != 0 {
		t.Errorf("evicted %d fresh sessions", n)
	}
	f.clock = f.clock.Add(2 * time.Minute)
	sweeper := NewSessionSweeper(f.svc, time.Hour, time.Minute)
	if n := sweeper.runPass(); n != 1 {
		t.Errorf("sweeper evicted %d, want 1", n)
	}
	f.play(t, white, "e2", "e4")
}

func TestResign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	white, black := f.startGame(t, CreateOptions{})

	g, err := f.svc.Resign(ctx, white.SessionID, white.PlayerID)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if g.Result != game.ResultBlackWins || g.Winner != models.Black || g.EndReason != "resignation" {
		t.Errorf("game = %+v", g)
	}
	if _, err := f.svc.MakeMove(ctx, black.SessionID, black.PlayerID, "e7", "e5"); !errors.Is(err, ErrGameOver) {
		t.Errorf("move after resign: got %v", err)
	}
	if _, err := f.svc.Resign(ctx, black.SessionID, black.PlayerID); !errors.Is(err, ErrGameOver) {
		t.Errorf("second resign: got %v", err)
	}
}

func TestResignBeforeOpponentJoins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat, err := f.svc.Create(ctx, CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Resign(ctx, seat.SessionID, seat.PlayerID); !errors.Is(err, ErrGameNotStarted) {
		t.Errorf("resign while waiting: got %v", err)
	}
	state, err := f.svc.State(ctx, seat.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Game.Status != models.GameStatusWaiting || state.Result != game.ResultOngoing {
		t.Errorf("state after refused resign: status=%s result=%s", state.Game.Status, state.Result)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	white, black := f.startGame(t, CreateOptions{})
	f.play(t, white, "e2", "e4")
	f.play(t, black, "e7", "e5")

	g, err := f.svc.Reset(ctx, black.SessionID, black.PlayerID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if g.FEN != game.StartFEN || g.MoveCount != 0 || g.Status != models.GameStatusActive || g.CurrentTurn != models.White {
		t.Errorf("game = %+v", g)
	}
	moves, _ := f.svc.History(ctx, white.SessionID)
	if len(moves) != 0 {
		t.Errorf("history after reset: %d moves", len(moves))
	}
	if f.bc.resets != 1 {
		t.Errorf("reset broadcasts = %d", f.bc.resets)
	}
	f.play(t, white, "d2", "d4")

	if _, err := f.svc.Reset(ctx, white.SessionID, "stranger"); !errors.Is(err, ErrNotAPlayer) {
		t.Errorf("stranger reset: got %v", err)
	}
}

func TestSquareMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	white, _ := f.startGame(t, CreateOptions{})

	got, err := f.svc.SquareMoves(ctx, white.SessionID, "e2", false)
	if err != nil {
		t.Fatalf("e2: %v", err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "e3" || got[1] != "e4" {
		t.Errorf("e2 moves = %v", got)
	}

	got, err = f.svc.SquareMoves(ctx, white.SessionID, "g1", true)
	if err != nil {
		t.Fatalf("g1 attacks: %v", err)
	}
	sort.Strings(got)
	if len(got) != 3 || got[0] != "e2" || got[1] != "f3" || got[2] != "h3" {
		t.Errorf("g1 attacks = %v", got)
	}

	for _, sq := range []string{"e5", "z9", ""} {
		got, err := f.svc.SquareMoves(ctx, white.SessionID, sq, false)
		if !errors.Is(err, game.ErrInvalidSquare) || len(got) != 0 {
			t.Errorf("%q: got %v, %v", sq, got, err)
		}
	}

	all, err := f.svc.LegalMoves(ctx, white.SessionID)
	if err != nil || len(all) != 20 {
		t.Errorf("legal moves = %d, %v", len(all), err)
	}
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.State(ctx, "missing"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("State: got %v", err)
	}
	if _, err := f.svc.MakeMove(ctx, "missing", "p", "e2", "e4"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("MakeMove: got %v", err)
	}
	if f.svc.CachedSessions() != 0 {
		t.Errorf("unknown sessions left %d cache entries", f.svc.CachedSessions())
	}
}

func TestSuggestDoesNotPlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fen := "4k3/8/8/3q4/8/8/8/3RK3 w - - 0 1"
	seat, err := f.svc.Create(ctx, CreateOptions{FEN: fen})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m, err := f.svc.Suggest(ctx, seat.SessionID)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if m.String() != "d1d5" {
		t.Errorf("suggestion = %s, want d1d5", m)
	}
	state, _ := f.svc.State(ctx, seat.SessionID)
	if state.FEN != fen {
		t.Errorf("suggest changed the position to %s", state.FEN)
	}
}

func TestEngineDriver(t *testing.T) {
	f := newFixture(t)
	n := &recordingNotifier{}
	f.svc.SetTurnNotifier(n)
	ctx := context.Background()

	seat, err := f.svc.Create(ctx, CreateOptions{EngineColor: models.Black})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if seat.Color != models.White || seat.Game.Status != models.GameStatusActive || len(seat.Game.Players) != 2 {
		t.Fatalf("seat = %+v", seat)
	}
	if len(n.started) != 1 || n.started[0] != seat.SessionID {
		t.Errorf("started = %v", n.started)
	}
	if _, err := f.svc.Join(ctx, seat.SessionID, "", ""); !errors.Is(err, ErrGameFull) {
		t.Errorf("join engine game: got %v", err)
	}

	ids, _ := f.svc.EngineSessions(ctx)
	if len(ids) != 1 || ids[0] != seat.SessionID {
		t.Errorf("engine sessions = %v", ids)
	}

	if turn, _ := f.svc.EngineTurn(ctx, seat.SessionID); turn != agent.TurnWait {
		t.Errorf("turn before human move = %v", turn)
	}
	if err := f.svc.PlayEngineMove(ctx, seat.SessionID); err != nil {
		t.Fatalf("out-of-turn engine move: %v", err)
	}

	f.play(t, seat, "e2", "e4")
	if len(n.notified) != 1 {
		t.Errorf("notified = %v", n.notified)
	}
	if turn, _ := f.svc.EngineTurn(ctx, seat.SessionID); turn != agent.TurnMove {
		t.Errorf("turn after human move = %v", turn)
	}
	if err := f.svc.PlayEngineMove(ctx, seat.SessionID); err != nil {
		t.Fatalf("PlayEngineMove: %v", err)
	}

	moves, _ := f.svc.History(ctx, seat.SessionID)
	if len(moves) != 2 || moves[1].PlayerID != EnginePlayerID {
		t.Fatalf("history = %+v", moves)
	}
	if turn, _ := f.svc.EngineTurn(ctx, seat.SessionID); turn != agent.TurnWait {
		t.Errorf("turn after engine move = %v", turn)
	}

	if _, err := f.svc.Resign(ctx, seat.SessionID, seat.PlayerID); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if len(n.stopped) != 1 {
		t.Errorf("stopped = %v", n.stopped)
	}
	if turn, _ := f.svc.EngineTurn(ctx, seat.SessionID); turn != agent.TurnOver {
		t.Errorf("turn after resign = %v", turn)
	}
	if ids, _ := f.svc.EngineSessions(ctx); len(ids) != 0 {
		t.Errorf("finished game still listed: %v", ids)
	}
}

func TestEngineOpensAsWhite(t *testing.T) {
	f := newFixture(t)
	seat, err := f.svc.Create(context.Background(), CreateOptions{EngineColor: models.White})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if seat.Color != models.Black {
		t.Errorf("human color = %s", seat.Color)
	}
	if turn, _ := f.svc.EngineTurn(context.Background(), seat.SessionID); turn != agent.TurnMove {
		t.Errorf("turn = %v, want TurnMove", turn)
	}
}

func TestBuiltinAgentPlaysThroughService(t *testing.T) {
	f := newFixture(t)
	f.svc.now = time.Now
	a := agent.NewBuiltinAgent(f.svc, 0)
	defer a.Stop()
	f.svc.SetTurnNotifier(a)
	ctx := context.Background()

	seat, err := f.svc.Create(ctx, CreateOptions{EngineColor: models.Black})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.play(t, seat, "e2", "e4")

	deadline := time.Now().Add(5 * time.Second)
	for {
		g, err := f.store.FindGame(ctx, seat.SessionID)
		if err != nil {
			t.Fatalf("FindGame: %v", err)
		}
		if g.MoveCount == 2 {
			if g.CurrentTurn != models.White {
				t.Errorf("turn = %s", g.CurrentTurn)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("engine did not reply")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
