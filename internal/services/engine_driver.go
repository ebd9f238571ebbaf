package services

import (
	"context"

	"chess-core/internal/agent"
	"chess-core/internal/models"
)

// GameService is the agent's Driver: engine moves take the same commit path
// as human moves.
var _ agent.Driver = (*GameService)(nil)

// EngineTurn reports whether the engine side of a session is to move.
func (s *GameService) EngineTurn(ctx context.Context, sessionID string) (agent.Turn, error) {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return agent.TurnWait, err
	}
	if g.Status == models.GameStatusComplete || !g.EngineColor.Valid() {
		return agent.TurnOver, nil
	}
	if g.Status == models.GameStatusActive && g.EngineColor.Engine() == sess.tracker.SideToMove() {
		return agent.TurnMove, nil
	}
	return agent.TurnWait, nil
}

// PlayEngineMove searches and commits the engine's move. It does nothing when
// the engine is not to move.
func (s *GameService) PlayEngineMove(ctx context.Context, sessionID string) error {
	sess := s.acquire(sessionID)
	defer sess.mu.Unlock()

	g, err := s.load(ctx, sessionID, sess)
	if err != nil {
		return err
	}
	if g.Status != models.GameStatusActive || !g.EngineColor.Valid() {
		return nil
	}
	side := g.EngineColor.Engine()
	if side != sess.tracker.SideToMove() {
		return nil
	}

	m := agent.ChooseMove(sess.tracker.Snapshot(), side, s.engine)
	if m.IsNone() {
		return nil
	}
	_, err = s.commit(ctx, sessionID, sess, g, EnginePlayerID, m.From, m.Notation())
	return err
}

// EngineSessions lists unfinished sessions with an engine side.
func (s *GameService) EngineSessions(ctx context.Context) ([]string, error) {
	return s.store.EngineSessions(ctx)
}
