package agent

import (
	"context"
	"log"
	"sync"
	"time"
)

// Turn is what the engine should do next in a session.
type Turn int

const (
	TurnWait Turn = iota // the human side is to move
	TurnMove             // the engine side is to move
	TurnOver             // the game has ended
)

// Driver is the session layer as seen by the agent. Engine moves go through
// the same validation and persistence path as human moves.
type Driver interface {
	EngineTurn(ctx context.Context, sessionID string) (Turn, error)
	PlayEngineMove(ctx context.Context, sessionID string) error
	EngineSessions(ctx context.Context) ([]string, error)
}

// activeGame tracks a running game's cancel func and turn notification channel.
type activeGame struct {
	cancel context.CancelFunc
	turnCh chan struct{}
}

// BuiltinAgent plays the engine side of every session that has one, one
// goroutine per session.
type BuiltinAgent struct {
	driver       Driver
	thinkTime    time.Duration
	initialDelay time.Duration
	pollInterval time.Duration
	mu           sync.Mutex
	activeGames  map[string]*activeGame // sessionID -> game info
	stopCh       chan struct{}          // signals periodic check to stop
	stopOnce     sync.Once
}

const maxConsecutiveErrors = 5 // agent exits game loop after this many consecutive EngineTurn failures

// NewBuiltinAgent creates an agent. thinkTime is the pause before each engine
// move so replies do not arrive instantly.
func NewBuiltinAgent(driver Driver, thinkTime time.Duration) *BuiltinAgent {
	return &BuiltinAgent{
		driver:       driver,
		thinkTime:    thinkTime,
		initialDelay: 100 * time.Millisecond,
		pollInterval: 5 * time.Second,
		activeGames:  make(map[string]*activeGame),
		stopCh:       make(chan struct{}),
	}
}

// ResumeActiveGames finds sessions with an engine side and resumes playing
// them. Called on server startup to recover from restarts.
func (a *BuiltinAgent) ResumeActiveGames() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, err := a.driver.EngineSessions(ctx)
	if err != nil {
		log.Printf("[Agent] ResumeActiveGames: error listing sessions: %v", err)
		return
	}
	for _, id := range ids {
		log.Printf("[Agent] resuming game %s", id)
		a.StartGame(id)
	}
	if len(ids) == 0 {
		log.Printf("[Agent] ResumeActiveGames: no active games to resume")
	}
}

// StartGame begins the agent playing in a session. Starting twice is a no-op.
func (a *BuiltinAgent) StartGame(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.activeGames[sessionID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	turnCh := make(chan struct{}, 1)
	a.activeGames[sessionID] = &activeGame{cancel: cancel, turnCh: turnCh}

	log.Printf("[Agent] starting game %s", sessionID)
	go a.playGame(ctx, sessionID, turnCh)
}

// StopGame stops the agent from playing a specific game.
func (a *BuiltinAgent) StopGame(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ag, exists := a.activeGames[sessionID]; exists {
		ag.cancel()
		delete(a.activeGames, sessionID)
	}
}

// NotifyTurn wakes the game loop of a session after a move or reset.
func (a *BuiltinAgent) NotifyTurn(sessionID string) {
	a.mu.Lock()
	ag, exists := a.activeGames[sessionID]
	a.mu.Unlock()
	if exists {
		select {
		case ag.turnCh <- struct{}{}:
		default:
			// Already has a pending notification
		}
	}
}

// IsPlaying reports whether a game loop is running for the session.
func (a *BuiltinAgent) IsPlaying(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.activeGames[sessionID]
	return ok
}

// playGame is the main game loop for the agent.
func (a *BuiltinAgent) playGame(ctx context.Context, sessionID string, turnCh <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Agent] PANIC in game %s: %v", sessionID, r)
		}
		a.mu.Lock()
		if ag, ok := a.activeGames[sessionID]; ok && ag.turnCh == turnCh {
			delete(a.activeGames, sessionID)
		}
		a.mu.Unlock()
		log.Printf("[Agent] finished game %s", sessionID)
	}()

	if !a.sleep(ctx, a.initialDelay) {
		return
	}

	consecutiveErrors := 0
	for {
		if ctx.Err() != nil {
			return
		}

		turn, err := a.driver.EngineTurn(ctx, sessionID)
		if err != nil {
			consecutiveErrors++
			log.Printf("[Agent] error fetching game %s (attempt %d/%d): %v",
				sessionID, consecutiveErrors, maxConsecutiveErrors, err)
			if consecutiveErrors >= maxConsecutiveErrors {
				log.Printf("[Agent] giving up on game %s after %d consecutive errors", sessionID, consecutiveErrors)
				return
			}
			// Exponential backoff: 1s, 2s, 4s, 8s
			backoff := time.Duration(1<<uint(consecutiveErrors-1)) * time.Second
			if !a.sleep(ctx, backoff) {
				return
			}
			continue
		}
		consecutiveErrors = 0

		switch turn {
		case TurnOver:
			log.Printf("[Agent] game %s is over, exiting", sessionID)
			return
		case TurnWait:
			select {
			case <-ctx.Done():
				return
			case <-turnCh:
			case <-time.After(a.pollInterval):
				// Safety fallback in case a notification is missed
			}
			continue
		}

		if !a.sleep(ctx, a.thinkTime) {
			return
		}
		if err := a.driver.PlayEngineMove(ctx, sessionID); err != nil {
			log.Printf("[Agent] error making move in game %s: %v", sessionID, err)
			if !a.sleep(ctx, time.Second) {
				return
			}
		}
	}
}

// sleep waits d and reports false if ctx ended first.
func (a *BuiltinAgent) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// StartPeriodicCheck launches a background goroutine that every interval
// restarts the loop of any engine session whose goroutine has exited while
// the game is still running.
func (a *BuiltinAgent) StartPeriodicCheck(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				a.checkForStuckGames()
			}
		}
	}()
	log.Printf("[Agent] periodic stuck-game check started (interval: %v)", interval)
}

func (a *BuiltinAgent) checkForStuckGames() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ids, err := a.driver.EngineSessions(ctx)
	if err != nil {
		log.Printf("[Agent] periodic check: error listing sessions: %v", err)
		return
	}

	resumed := 0
	for _, id := range ids {
		if !a.IsPlaying(id) {
			log.Printf("[Agent] periodic check: restarting stalled game %s", id)
			a.StartGame(id)
			resumed++
		}
	}
	if resumed > 0 {
		log.Printf("[Agent] periodic check: resumed %d stalled game(s)", resumed)
	}
}

// Stop shuts down the periodic check goroutine and cancels all game loops.
func (a *BuiltinAgent) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })

	a.mu.Lock()
	defer a.mu.Unlock()
	for sessionID, ag := range a.activeGames {
		ag.cancel()
		delete(a.activeGames, sessionID)
	}
	log.Println("[Agent] stopped")
}
