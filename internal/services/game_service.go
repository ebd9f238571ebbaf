package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"chess-core/internal/agent"
	"chess-core/internal/auth"
	"chess-core/internal/db"
	"chess-core/internal/game"
	"chess-core/internal/models"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrGameOver           = errors.New("game is over")
	ErrGameFull           = errors.New("game is full")
	ErrGameNotStarted     = errors.New("waiting for an opponent")
	ErrBadPassphrase      = errors.New("wrong passphrase")
	ErrNotAPlayer         = errors.New("not a player in this game")
	ErrInvalidEngineColor = errors.New("engine color must be white or black")
)

// EnginePlayerID identifies the engine seat in stored games and moves.
const EnginePlayerID = "engine"

// Store is the persistence the service needs. db.MongoDB and db.MemoryStore
// both satisfy it.
type Store interface {
	InsertGame(ctx context.Context, g *models.Game) error
	FindGame(ctx context.Context, sessionID string) (*models.Game, error)
	SaveGame(ctx context.Context, g *models.Game) error
	InsertMove(ctx context.Context, mv *models.Move) error
	FindMoves(ctx context.Context, sessionID string) ([]models.Move, error)
	DeleteMoves(ctx context.Context, sessionID string) error
	EngineSessions(ctx context.Context) ([]string, error)
}

// Broadcaster pushes session events to connected clients.
type Broadcaster interface {
	BroadcastPlayerJoined(sessionID string, g *models.Game)
	BroadcastMove(sessionID string, g *models.Game, mv *models.Move)
	BroadcastGameOver(sessionID string, g *models.Game)
	BroadcastReset(sessionID string, g *models.Game)
}

// TurnNotifier is told when a session with an engine side changes hands.
// agent.BuiltinAgent implements it.
type TurnNotifier interface {
	StartGame(sessionID string)
	NotifyTurn(sessionID string)
	StopGame(sessionID string)
}

// session is the in-memory half of a game: the tracker rebuilt from the
// store. mu serializes every operation on the game.
type session struct {
	mu       sync.Mutex
	tracker  *game.Tracker
	lastUsed time.Time
	evicted  bool
}

// GameService runs game sessions. Every operation on one session holds that
// session's lock, so a tracker only ever has a single writer.
type GameService struct {
	store       Store
	tokens      *auth.JWTService
	passphrases *auth.PassphraseService
	rules       game.Rules
	engine      agent.Options
	broadcaster Broadcaster
	notifier    TurnNotifier
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewGameService(store Store, tokens *auth.JWTService, rules game.Rules, engine agent.Options) *GameService {
	return &GameService{
		store:       store,
		tokens:      tokens,
		passphrases: auth.NewPassphraseService(),
		rules:       rules,
		engine:      engine,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// SetBroadcaster wires the websocket fan-out.
func (s *GameService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetTurnNotifier wires the engine auto-player.
func (s *GameService) SetTurnNotifier(n TurnNotifier) {
	s.notifier = n
}

// Seat is a player's place in a game together with the bearer token that
// proves it.
type Seat struct {
	SessionID string             `json:"sessionId"`
	PlayerID  string             `json:"playerId"`
	Color     models.PlayerColor `json:"color"`
	Token     string             `json:"playerToken"`
	Game      *models.Game       `json:"game"`
}

type CreateOptions struct {
	FEN         string             `json:"fen,omitempty"`
	DisplayName string             `json:"displayName,omitempty"`
	Color       models.PlayerColor `json:"color,omitempty"`
	EngineColor models.PlayerColor `json:"engineColor,omitempty"`
	Passphrase  string             `json:"passphrase,omitempty"`
}

// GameState is the full view of a session's position.
type GameState struct {
	Game        *models.Game       `json:"game"`
	FEN         string             `json:"fen"`
	Turn        models.PlayerColor `json:"turn"`
	Status      game.Status        `json:"status"`
	StatusText  string             `json:"statusText"`
	Result      string             `json:"result"`
	Check       bool               `json:"check"`
	Castling    string             `json:"castling"`
	HalfMove    int                `json:"halfMoveClock"`
	FullMove    int                `json:"fullMoveNumber"`
	Repetitions int                `json:"repetitions"`
}

// MoveOutcome is the result of a committed move.
type MoveOutcome struct {
	Move   *models.Move `json:"move"`
	Game   *models.Game `json:"game"`
	Status game.Status  `json:"status"`
	Result string       `json:"result"`
}

func generateID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Create starts a session. With an engine color the creator takes the other
// side and the game starts at once; otherwise it waits for a second player.
func (s *GameService) Create(ctx context.Context, opts CreateOptions) (*Seat, error) {
	fen := opts.FEN
	if fen == "" {
		fen = game.StartFEN
	}
	tracker, err := game.NewTracker(fen, s.rules)
	if err != nil {
		return nil, err
	}

	color := opts.Color
	if opts.EngineColor != "" {
		if !opts.EngineColor.Valid() {
			return nil, ErrInvalidEngineColor
		}
		color = opts.EngineColor.Opponent()
	}
	if !color.Valid() {
		color = models.White
	}

	now := s.now()
	g := &models.Game{
		SessionID:   generateID(),
		Players:     []models.Player{{ID: generateID(), DisplayName: opts.DisplayName, Color: color, JoinedAt: now}},
		Status:      models.GameStatusWaiting,
		CurrentTurn: models.ColorOf(tracker.SideToMove()),
		StartFEN:    fen,
		FEN:         tracker.FEN(),
		Result:      game.ResultOngoing,
		EngineColor: opts.EngineColor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.Passphrase != "" {
		hash, err := s.passphrases.Hash(opts.Passphrase)
		if err != nil {
			return nil, err
		}
		g.PassphraseHash = hash
	}
	if g.EngineColor.Valid() {
		g.Players = append(g.Players, models.Player{
			ID:          EnginePlayerID,
			DisplayName: "Engine",
			Engine:      true,
			Color:       g.EngineColor,
			JoinedAt:    now,
		})
		g.Status = models.GameStatusActive
		g.StartedAt = &now
	}
	s.finishIfOver(g, tracker)

	if err := s.store.InsertGame(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	sess := s.acquire(g.SessionID)
	sess.tracker = tracker
	sess.mu.Unlock()

	seat, err := s.seat(g, g.Players[0])
	if err != nil {
		return nil, err
	}
	if g.EngineColor.Valid() && g.Status != models.GameStatusComplete && s.notifier != nil {
		s.notifier.StartGame(g.SessionID)
	}
	log.Printf("Game %s created (engine=%q)", g.SessionID, g.EngineColor)
	return seat, nil
}

// Join seats a second player on the free color. Private games require the
// passphrase they were created with.
func (s *GameService) Join(ctx context.Context, sessionID, displayName, passphrase string) (*Seat, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	if g.PassphraseHash != "" {
		if err := s.passphrases.Compare(g.PassphraseHash, passphrase); err != nil {
			return nil, ErrBadPassphrase
		}
	}
	if len(g.Players) >= 2 {
		return nil, ErrGameFull
	}

	now := s.now()
	player := models.Player{
		ID:          generateID(),
		DisplayName: displayName,
		Color:       g.Players[0].Color.Opponent(),
		JoinedAt:    now,
	}
	g.Players = append(g.Players, player)
	if g.Status == models.GameStatusWaiting {
		g.Status = models.GameStatusActive
		g.StartedAt = &now
	}
	g.UpdatedAt = now
	if err := s.store.SaveGame(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to join game: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastPlayerJoined(sessionID, g)
	}
	return s.seat(g, player)
}

func (s *GameService) seat(g *models.Game, p models.Player) (*Seat, error) {
	token, err := s.tokens.GeneratePlayerToken(g.SessionID, p.ID, string(p.Color))
	if err != nil {
		return nil, fmt.Errorf("failed to issue player token: %w", err)
	}
	return &Seat{SessionID: g.SessionID, PlayerID: p.ID, Color: p.Color, Token: token, Game: g}, nil
}

// State returns the stored game with the live position details.
func (s *GameService) State(ctx context.Context, sessionID string) (*GameState, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	t := sess.tracker
	half, full := t.Clocks()
	return &GameState{
		Game:        g,
		FEN:         t.FEN(),
		Turn:        models.ColorOf(t.SideToMove()),
		Status:      t.Status(),
		StatusText:  t.Status().DisplayText(),
		Result:      g.Result,
		Check:       t.InCheck(),
		Castling:    t.CastlingRights().String(),
		HalfMove:    half,
		FullMove:    full,
		Repetitions: t.Repetitions(),
	}, nil
}

// SquareMoves lists the destinations of the piece on square, or the squares it
// attacks when attacks is set. A bad or empty square yields an empty list and
// an error wrapping game.ErrInvalidSquare.
func (s *GameService) SquareMoves(ctx context.Context, sessionID, square string, attacks bool) ([]string, error) {
	sq, err := parseSquare(square)
	if err != nil {
		log.Printf("Square query on %q: %v", square, err)
		return []string{}, err
	}

	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	if g.Status == models.GameStatusComplete && !attacks {
		return []string{}, nil
	}
	return sess.tracker.MovesOrAttacks(sq, attacks)
}

// LegalMoves lists every legal move of the side to move in coordinate form.
func (s *GameService) LegalMoves(ctx context.Context, sessionID string) ([]string, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	out := []string{}
	if g.Status == models.GameStatusComplete {
		return out, nil
	}
	for _, m := range sess.tracker.AllLegalMoves() {
		out = append(out, m.String())
	}
	return out, nil
}

// MakeMove validates and commits a human move. notation is the destination
// square with an optional promotion suffix ("e4", "e8=N").
func (s *GameService) MakeMove(ctx context.Context, sessionID, playerID, from, notation string) (*MoveOutcome, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	player, ok := g.PlayerByID(playerID)
	if !ok || player.Engine {
		return nil, ErrNotAPlayer
	}
	if err := checkPlayable(g); err != nil {
		return nil, err
	}
	if player.Color.Engine() != sess.tracker.SideToMove() {
		return nil, ErrNotYourTurn
	}
	fromSq, err := parseSquare(from)
	if err != nil {
		return nil, err
	}

	outcome, err := s.commit(ctx, sessionID, sess, g, playerID, fromSq, notation)
	if err != nil {
		return nil, err
	}
	if g.EngineColor.Valid() && g.Status != models.GameStatusComplete && s.notifier != nil {
		s.notifier.NotifyTurn(sessionID)
	}
	return outcome, nil
}

// parseSquare reports unreadable squares as game.ErrInvalidSquare.
func parseSquare(s string) (game.Square, error) {
	sq, err := game.ParseSquare(s)
	if err != nil {
		return game.NoSquare, fmt.Errorf("%w: %q", game.ErrInvalidSquare, s)
	}
	return sq, nil
}

func checkPlayable(g *models.Game) error {
	switch g.Status {
	case models.GameStatusComplete:
		return ErrGameOver
	case models.GameStatusWaiting:
		return ErrGameNotStarted
	}
	return nil
}

// commit applies a move to the tracker, records it and updates the stored
// game. If the store rejects the move the cached tracker is dropped, so the
// next request rebuilds it from what was actually persisted.
func (s *GameService) commit(ctx context.Context, sessionID string, sess *session, g *models.Game, playerID string, from game.Square, notation string) (*MoveOutcome, error) {
	res, err := sess.tracker.ApplyMove(from, notation)
	if err != nil {
		return nil, err
	}

	now := s.now()
	mv := &models.Move{
		SessionID: sessionID,
		PlayerID:  playerID,
		Ply:       g.MoveCount + 1,
		From:      res.Move.From.String(),
		Notation:  res.Move.Notation(),
		SAN:       res.SAN,
		Piece:     string(res.Piece.Kind.Letter()),
		Capture:   !res.Captured.IsEmpty(),
		Check:     res.Check,
		FENAfter:  res.FEN,
		CreatedAt: now,
	}
	if err := s.store.InsertMove(ctx, mv); err != nil {
		s.drop(sessionID, sess)
		return nil, fmt.Errorf("failed to record move: %w", err)
	}

	g.MoveCount = mv.Ply
	g.FEN = res.FEN
	g.CurrentTurn = models.ColorOf(sess.tracker.SideToMove())
	g.UpdatedAt = now
	s.finishIfOver(g, sess.tracker)
	if err := s.store.SaveGame(ctx, g); err != nil {
		s.drop(sessionID, sess)
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMove(sessionID, g, mv)
		if g.Status == models.GameStatusComplete {
			s.broadcaster.BroadcastGameOver(sessionID, g)
		}
	}
	return &MoveOutcome{Move: mv, Game: g, Status: res.Status, Result: res.Result}, nil
}

// finishIfOver copies a terminal tracker state into g.
func (s *GameService) finishIfOver(g *models.Game, t *game.Tracker) {
	status := t.Status()
	if !status.IsOver() {
		return
	}
	now := s.now()
	g.Status = models.GameStatusComplete
	g.Result = t.Result()
	g.EndReason = string(status)
	g.CompletedAt = &now
	if winner, ok := t.Winner(); ok {
		g.Winner = models.ColorOf(winner)
	}
	log.Printf("Game %s over: %s (%s)", g.SessionID, status.DisplayText(), g.Result)
}

// Suggest returns the engine's choice for the side to move without playing
// it. The search runs on a snapshot outside the session lock.
func (s *GameService) Suggest(ctx context.Context, sessionID string) (game.Move, error) {
	sess := s.acquire(sessionID)
	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		sess.mu.Unlock()
		return game.NoMove, err
	}
	if g.Status == models.GameStatusComplete {
		sess.mu.Unlock()
		return game.NoMove, ErrGameOver
	}
	pos := sess.tracker.Snapshot()
	sess.mu.Unlock()

	return agent.ChooseMove(pos, pos.SideToMove, s.engine), nil
}

// Resign ends the game in favor of the resigning player's opponent.
func (s *GameService) Resign(ctx context.Context, sessionID, playerID string) (*models.Game, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	player, ok := g.PlayerByID(playerID)
	if !ok || player.Engine {
		return nil, ErrNotAPlayer
	}
	switch g.Status {
	case models.GameStatusWaiting:
		return nil, ErrGameNotStarted
	case models.GameStatusComplete:
		return nil, ErrGameOver
	}

	now := s.now()
	g.Status = models.GameStatusComplete
	g.Winner = player.Color.Opponent()
	g.Result = game.ResultWhiteWins
	if g.Winner == models.Black {
		g.Result = game.ResultBlackWins
	}
	g.EndReason = "resignation"
	g.CompletedAt = &now
	g.UpdatedAt = now
	if err := s.store.SaveGame(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to resign game: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGameOver(sessionID, g)
	}
	if g.EngineColor.Valid() && s.notifier != nil {
		s.notifier.StopGame(sessionID)
	}
	log.Printf("Game %s: %s resigned", sessionID, player.Color)
	return g, nil
}

// Reset restarts the game from its starting position. The move history,
// clocks and repetition table are cleared; the seats are kept.
func (s *GameService) Reset(ctx context.Context, sessionID, playerID string) (*models.Game, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	if p, ok := g.PlayerByID(playerID); !ok || p.Engine {
		return nil, ErrNotAPlayer
	}

	if err := s.store.DeleteMoves(ctx, sessionID); err != nil {
		s.drop(sessionID, sess)
		return nil, fmt.Errorf("failed to clear moves: %w", err)
	}
	if err := sess.tracker.Reset(g.StartFEN); err != nil {
		s.drop(sessionID, sess)
		return nil, err
	}

	now := s.now()
	g.FEN = sess.tracker.FEN()
	g.CurrentTurn = models.ColorOf(sess.tracker.SideToMove())
	g.MoveCount = 0
	g.Result = game.ResultOngoing
	g.Winner = ""
	g.EndReason = ""
	g.CompletedAt = nil
	g.Status = models.GameStatusWaiting
	if len(g.Players) >= 2 {
		g.Status = models.GameStatusActive
		g.StartedAt = &now
	}
	g.UpdatedAt = now
	s.finishIfOver(g, sess.tracker)
	if err := s.store.SaveGame(ctx, g); err != nil {
		s.drop(sessionID, sess)
		return nil, fmt.Errorf("failed to reset game: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastReset(sessionID, g)
	}
	if g.EngineColor.Valid() && g.Status != models.GameStatusComplete && s.notifier != nil {
		s.notifier.StartGame(sessionID)
		s.notifier.NotifyTurn(sessionID)
	}
	return g, nil
}

// History returns the committed moves in ply order.
func (s *GameService) History(ctx context.Context, sessionID string) ([]models.Move, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	if _, err := s.load(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	return s.store.FindMoves(ctx, sessionID)
}

// acquire returns the locked session entry for sessionID, creating it if
// needed. Entries evicted while we waited for the lock are skipped.
func (s *GameService) acquire(sessionID string) *session {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[sessionID]
		if !ok {
			sess = &session{}
			s.sessions[sessionID] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if !sess.evicted {
			sess.lastUsed = s.now()
			return sess
		}
		sess.mu.Unlock()
	}
}

// drop removes a locked session from the cache.
func (s *GameService) drop(sessionID string, sess *session) {
	sess.evicted = true
	sess.tracker = nil
	s.mu.Lock()
	if s.sessions[sessionID] == sess {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
}

// load fetches the stored game and makes sure the session has a tracker,
// replaying the stored moves from the starting position when it does not.
// The caller holds sess.mu.
func (s *GameService) load(ctx context.Context, sessionID string, sess *session) (*models.Game, error) {
	g, err := s.store.FindGame(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		s.drop(sessionID, sess)
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.tracker != nil {
		return g, nil
	}

	tracker, err := game.NewTracker(g.StartFEN, s.rules)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", sessionID, err)
	}
	moves, err := s.store.FindMoves(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, mv := range moves {
		from, err := game.ParseSquare(mv.From)
		if err != nil {
			return nil, fmt.Errorf("rebuild %s at ply %d: %w", sessionID, mv.Ply, err)
		}
		if _, err := tracker.ApplyMove(from, mv.Notation); err != nil {
			return nil, fmt.Errorf("rebuild %s at ply %d: %w", sessionID, mv.Ply, err)
		}
	}
	sess.tracker = tracker
	return g, nil
}

// EvictIdle drops cached trackers not used for maxIdle. Sessions busy at the
// time are left alone. It returns the number evicted.
func (s *GameService) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUsed.Before(cutoff) {
			sess.evicted = true
			sess.tracker = nil
			delete(s.sessions, id)
			evicted++
		}
		sess.mu.Unlock()
	}
	return evicted
}

// CachedSessions returns the number of sessions with a live tracker entry.
func (s *GameService) CachedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
