package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"chess-core/internal/game"
)

type PlayerColor string

const (
	White PlayerColor = "white"
	Black PlayerColor = "black"
)

// ColorOf converts an engine color.
func ColorOf(c game.Color) PlayerColor {
	if c == game.White {
		return White
	}
	return Black
}

// Engine converts back to the engine color.
func (c PlayerColor) Engine() game.Color {
	if c == Black {
		return game.Black
	}
	return game.White
}

// Opponent returns the other color.
func (c PlayerColor) Opponent() PlayerColor {
	if c == White {
		return Black
	}
	return White
}

// Valid reports whether c names a side.
func (c PlayerColor) Valid() bool {
	return c == White || c == Black
}

type GameStatus string

const (
	GameStatusWaiting  GameStatus = "waiting"  // Waiting for second player
	GameStatusActive   GameStatus = "active"   // Game in progress
	GameStatusComplete GameStatus = "complete" // Game finished
)

type Player struct {
	ID          string      `json:"id" bson:"id"`
	DisplayName string      `json:"displayName" bson:"displayName"`
	Engine      bool        `json:"engine,omitempty" bson:"engine,omitempty"`
	Color       PlayerColor `json:"color" bson:"color"`
	JoinedAt    time.Time   `json:"joinedAt" bson:"joinedAt"`
}

// Game is the stored session. The authoritative position lives in the
// tracker; StartFEN plus the stored moves rebuild it, and FEN mirrors it for
// queries and display.
type Game struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID      string             `json:"sessionId" bson:"sessionId"`
	Players        []Player           `json:"players" bson:"players"`
	Status         GameStatus         `json:"status" bson:"status"`
	CurrentTurn    PlayerColor        `json:"currentTurn" bson:"currentTurn"`
	StartFEN       string             `json:"startFen" bson:"startFen"`
	FEN            string             `json:"fen" bson:"fen"`
	Result         string             `json:"result" bson:"result"` // "w", "b", "d" or "-"
	Winner         PlayerColor        `json:"winner,omitempty" bson:"winner,omitempty"`
	EndReason      string             `json:"endReason,omitempty" bson:"endReason,omitempty"` // tracker status or "resignation"
	EngineColor    PlayerColor        `json:"engineColor,omitempty" bson:"engineColor,omitempty"`
	PassphraseHash string             `json:"-" bson:"passphraseHash,omitempty"`
	MoveCount      int                `json:"moveCount" bson:"moveCount"`
	StartedAt      *time.Time         `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PlayerByColor returns the seated player of a color.
func (g *Game) PlayerByColor(c PlayerColor) (Player, bool) {
	for _, p := range g.Players {
		if p.Color == c {
			return p, true
		}
	}
	return Player{}, false
}

// PlayerByID returns the seated player with the given id.
func (g *Game) PlayerByID(id string) (Player, bool) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

type Move struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID string             `json:"sessionId" bson:"sessionId"`
	PlayerID  string             `json:"playerId" bson:"playerId"`
	Ply       int                `json:"ply" bson:"ply"`
	From      string             `json:"from" bson:"from"`         // e.g., "e2"
	Notation  string             `json:"notation" bson:"notation"` // destination form, e.g., "e4" or "e8=Q"
	SAN       string             `json:"san" bson:"san"`           // e.g., "Nf3", "exd6", "O-O"
	Piece     string             `json:"piece" bson:"piece"`       // e.g., "P" for pawn
	Capture   bool               `json:"capture" bson:"capture"`
	Check     bool               `json:"check" bson:"check"`
	FENAfter  string             `json:"fenAfter" bson:"fenAfter"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
