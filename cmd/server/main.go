package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"chess-core/internal/agent"
	"chess-core/internal/auth"
	"chess-core/internal/config"
	"chess-core/internal/db"
	"chess-core/internal/eventbus"
	"chess-core/internal/handlers"
	"chess-core/internal/middleware"
	"chess-core/internal/services"
)

func main() {
	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("No config file for %s, using defaults: %v", env, err)
		cfg = config.Default()
		cfg.Environment = env
	} else if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting chess server in %s mode", cfg.Environment)

	wsHandler := handlers.NewWebSocketHandler()

	// Storage: MongoDB when configured, process memory otherwise
	var store services.Store
	if cfg.MongoDB.URI != "" {
		mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongodb.Close(ctx)
		}()
		log.Printf("Connected to MongoDB database: %s", cfg.MongoDB.Database)
		store = mongodb

		bus := eventbus.New(mongodb.WSEvents(), wsHandler.DeliverLocal)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bus.EnsureIndexes(ctx); err != nil {
			log.Printf("Warning: failed to create ws_events TTL index: %v", err)
		}
		cancel()
		bus.Start()
		defer bus.Stop()
		wsHandler.SetPublisher(bus)
	} else {
		log.Println("No MongoDB URI configured, using in-memory store")
		store = db.NewMemoryStore()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.TokenTTL())

	gameService := services.NewGameService(store, jwtService, cfg.Rules, cfg.Engine.Options)
	gameService.SetBroadcaster(wsHandler)

	builtinAgent := agent.NewBuiltinAgent(gameService, cfg.MoveDelay())
	gameService.SetTurnNotifier(builtinAgent)
	builtinAgent.ResumeActiveGames()
	builtinAgent.StartPeriodicCheck(time.Minute)
	defer builtinAgent.Stop()

	sweeper := services.NewSessionSweeper(gameService, time.Minute, 30*time.Minute)
	sweeper.Start()
	defer sweeper.Stop()

	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	gameHandler := handlers.NewGameHandler(gameService)

	// Set up router
	router := mux.NewRouter()
	router.Use(middleware.SecurityHeaders)

	// WebSocket routes
	router.Handle("/ws/games/{sessionId}",
		rateLimiter.IPRateLimitMiddleware(middleware.WebSocketUpgradeLimit)(http.HandlerFunc(wsHandler.HandleWebSocket)))

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	gameHandler.RegisterRoutes(api, authMiddleware, rateLimiter)

	// API Documentation
	router.HandleFunc("/docs", handlers.ServeAPIDocs).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create server
	addr := cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second, // suggestions may search for up to 30s
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
