package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chess-core/internal/models"
)

// MemoryStore keeps games and moves in process memory. It backs single-node
// runs without MongoDB and the service tests.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]models.Game
	moves map[string][]models.Move
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]models.Game),
		moves: make(map[string][]models.Move),
	}
}

func (s *MemoryStore) InsertGame(ctx context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[g.SessionID]; exists {
		return fmt.Errorf("insert game %s: duplicate session id", g.SessionID)
	}
	s.games[g.SessionID] = cloneGame(g)
	return nil
}

func (s *MemoryStore) FindGame(ctx context.Context, sessionID string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneGame(&g)
	return &out, nil
}

func (s *MemoryStore) SaveGame(ctx context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.SessionID]; !ok {
		return ErrNotFound
	}
	s.games[g.SessionID] = cloneGame(g)
	return nil
}

func (s *MemoryStore) InsertMove(ctx context.Context, mv *models.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.moves[mv.SessionID] {
		if existing.Ply == mv.Ply {
			return fmt.Errorf("insert move %d of %s: duplicate ply", mv.Ply, mv.SessionID)
		}
	}
	s.moves[mv.SessionID] = append(s.moves[mv.SessionID], *mv)
	return nil
}

func (s *MemoryStore) FindMoves(ctx context.Context, sessionID string) ([]models.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves := append([]models.Move{}, s.moves[sessionID]...)
	sort.Slice(moves, func(i, j int) bool { return moves[i].Ply < moves[j].Ply })
	return moves, nil
}

func (s *MemoryStore) DeleteMoves(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.moves, sessionID)
	return nil
}

func (s *MemoryStore) EngineSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, g := range s.games {
		if g.Status != models.GameStatusComplete && g.EngineColor.Valid() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneGame(g *models.Game) models.Game {
	out := *g
	out.Players = append([]models.Player(nil), g.Players...)
	return out
}
