package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// JWTService issues and checks player tokens. A player token seats its
// bearer at one color of one session.
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

type PlayerClaims struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Color     string `json:"color"`
	jwt.RegisteredClaims
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// GeneratePlayerToken creates a token for the player seated at color in sessionID.
func (s *JWTService) GeneratePlayerToken(sessionID, playerID, color string) (string, error) {
	now := time.Now()
	claims := PlayerClaims{
		SessionID: sessionID,
		PlayerID:  playerID,
		Color:     color,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   playerID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidatePlayerToken validates and parses a player token
func (s *JWTService) ValidatePlayerToken(tokenString string) (*PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TTL returns the player token lifetime.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}
