package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chess-core/internal/auth"
	"chess-core/internal/game"
	"chess-core/internal/middleware"
	"chess-core/internal/services"
)

type GameHandler struct {
	games *services.GameService
}

func NewGameHandler(games *services.GameService) *GameHandler {
	return &GameHandler{games: games}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type JoinGameRequest struct {
	DisplayName string `json:"displayName"`
	Passphrase  string `json:"passphrase"`
}

type MakeMoveRequest struct {
	From string `json:"from"`
	Move string `json:"move"` // destination with optional promotion suffix, e.g. "e4" or "e8=N"
}

type MovesResponse struct {
	Square string   `json:"square,omitempty"`
	Moves  []string `json:"moves"`
}

type SuggestionResponse struct {
	Move     string `json:"move"` // coordinate form, e.g. "e2e4"
	From     string `json:"from"`
	Notation string `json:"notation"`
}

// RegisterRoutes mounts the game API on api. rl may be nil to disable rate
// limiting.
func (h *GameHandler) RegisterRoutes(api *mux.Router, authMiddleware *middleware.AuthMiddleware, rl *middleware.RateLimiter) {
	limit := func(cfg middleware.RateLimitConfig, next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return rl.IPRateLimitMiddleware(cfg)(next)
	}
	player := func(cfg middleware.RateLimitConfig, fn http.HandlerFunc) http.Handler {
		return limit(cfg, authMiddleware.RequirePlayer(fn))
	}

	gameApi := api.PathPrefix("/games").Subrouter()
	gameApi.Handle("", limit(middleware.GameCreationLimit, http.HandlerFunc(h.CreateGame))).Methods("POST")
	gameApi.HandleFunc("/{sessionId}", h.GetGame).Methods("GET")
	gameApi.Handle("/{sessionId}/join", limit(middleware.JoinAttemptLimit, http.HandlerFunc(h.JoinGame))).Methods("POST")
	gameApi.HandleFunc("/{sessionId}/legal-moves", h.GetLegalMoves).Methods("GET")
	gameApi.HandleFunc("/{sessionId}/squares/{square}", h.GetSquareMoves).Methods("GET")
	gameApi.Handle("/{sessionId}/move", player(middleware.MoveLimit, h.MakeMove)).Methods("POST")
	gameApi.Handle("/{sessionId}/suggestion", limit(middleware.SuggestionLimit, http.HandlerFunc(h.GetSuggestion))).Methods("GET")
	gameApi.Handle("/{sessionId}/resign", player(middleware.MoveLimit, h.ResignGame)).Methods("POST")
	gameApi.Handle("/{sessionId}/reset", player(middleware.MoveLimit, h.ResetGame)).Methods("POST")
	gameApi.HandleFunc("/{sessionId}/moves", h.GetMoves).Methods("GET")
}

// decodeOptional decodes a JSON body into v, accepting an empty body.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req services.CreateOptions
	if err := decodeOptional(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seat, err := h.games.Create(ctx, req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, seat)
}

func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req JoinGameRequest
	if err := decodeOptional(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seat, err := h.games.Join(ctx, mux.Vars(r)["sessionId"], req.DisplayName, req.Passphrase)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, seat)
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	state, err := h.games.State(ctx, mux.Vars(r)["sessionId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

func (h *GameHandler) GetLegalMoves(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	moves, err := h.games.LegalMoves(ctx, mux.Vars(r)["sessionId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MovesResponse{Moves: moves})
}

// GetSquareMoves answers ?attacks=true with attacked squares and otherwise
// with legal destinations. An empty or invalid square gets an empty list.
func (h *GameHandler) GetSquareMoves(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	attacks := r.URL.Query().Get("attacks") == "true"

	moves, err := h.games.SquareMoves(ctx, vars["sessionId"], vars["square"], attacks)
	if err != nil && !errors.Is(err, game.ErrInvalidSquare) {
		respondWithServiceError(w, err)
		return
	}
	if moves == nil {
		moves = []string{}
	}
	respondWithJSON(w, http.StatusOK, MovesResponse{Square: vars["square"], Moves: moves})
}

func (h *GameHandler) MakeMove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.PlayerFromContext(r.Context())
	var req MakeMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.From == "" || req.Move == "" {
		respondWithError(w, http.StatusBadRequest, "from and move are required")
		return
	}

	outcome, err := h.games.MakeMove(ctx, claims.SessionID, claims.PlayerID, req.From, req.Move)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

func (h *GameHandler) GetSuggestion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	m, err := h.games.Suggest(ctx, mux.Vars(r)["sessionId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if m.IsNone() {
		respondWithJSON(w, http.StatusOK, SuggestionResponse{})
		return
	}
	respondWithJSON(w, http.StatusOK, SuggestionResponse{
		Move:     m.String(),
		From:     m.From.String(),
		Notation: m.Notation(),
	})
}

func (h *GameHandler) ResignGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.PlayerFromContext(r.Context())
	g, err := h.games.Resign(ctx, claims.SessionID, claims.PlayerID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, g)
}

func (h *GameHandler) ResetGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	claims := middleware.PlayerFromContext(r.Context())
	g, err := h.games.Reset(ctx, claims.SessionID, claims.PlayerID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, g)
}

func (h *GameHandler) GetMoves(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	moves, err := h.games.History(ctx, mux.Vars(r)["sessionId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"moves": moves})
}

// respondWithServiceError maps service and rules errors to status codes.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGameNotFound):
		respondWithError(w, http.StatusNotFound, "Game not found")
	case errors.Is(err, services.ErrNotYourTurn),
		errors.Is(err, services.ErrNotAPlayer),
		errors.Is(err, services.ErrBadPassphrase):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrGameOver),
		errors.Is(err, services.ErrGameFull),
		errors.Is(err, services.ErrGameNotStarted):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrIllegalMove):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, game.ErrInvalidSquare),
		errors.Is(err, game.ErrMalformedNotation),
		errors.Is(err, services.ErrInvalidEngineColor),
		errors.Is(err, auth.ErrPassphraseLength):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
