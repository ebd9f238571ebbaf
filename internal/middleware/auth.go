package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"chess-core/internal/auth"
)

type contextKey string

const (
	PlayerContextKey contextKey = "player"
)

type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequirePlayer validates the player token and loads its claims into context.
// Returns 401 if the token is missing or invalid and 403 if it was issued for
// a different session than the {sessionId} route variable.
func (m *AuthMiddleware) RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtService.ValidatePlayerToken(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				http.Error(w, "Token has expired", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		if sessionID, ok := mux.Vars(r)["sessionId"]; ok && sessionID != claims.SessionID {
			http.Error(w, "Token is for another game", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), PlayerContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PlayerFromContext retrieves the player claims from request context.
func PlayerFromContext(ctx context.Context) *auth.PlayerClaims {
	claims, ok := ctx.Value(PlayerContextKey).(*auth.PlayerClaims)
	if !ok {
		return nil
	}
	return claims
}
