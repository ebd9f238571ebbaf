package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"chess-core/internal/config"
	"chess-core/internal/db"
)

func main() {
	// Load config
	cfg, err := config.Load(config.GetEnv())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		log.Fatalf("No MongoDB URI configured for %s", cfg.Environment)
	}

	// Connect to MongoDB
	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	ctx := context.Background()

	for _, c := range []struct {
		name string
		coll *mongo.Collection
	}{
		{"games", mongodb.Games()},
		{"moves", mongodb.Moves()},
		{"ws_events", mongodb.WSEvents()},
	} {
		res, err := c.coll.DeleteMany(ctx, bson.M{})
		if err != nil {
			log.Fatalf("Failed to delete %s: %v", c.name, err)
		}
		fmt.Printf("Deleted %d %s\n", res.DeletedCount, c.name)
	}

	fmt.Println("Database cleared successfully")
}
