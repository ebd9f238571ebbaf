package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chess-core/internal/models"
)

// ErrNotFound is returned when no game matches a session id.
var ErrNotFound = errors.New("not found")

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		Client:   client,
		Database: client.Database(database),
	}

	// Create indexes in the background (non-blocking)
	go db.ensureIndexes()

	return db, nil
}

// ensureIndexes creates all required indexes. Called once on startup.
func (m *MongoDB) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			"games",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "status", Value: 1}, {Key: "engineColor", Value: 1}}},
			},
		},
		{
			"moves",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "ply", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
	}

	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		_, err := coll.Indexes().CreateMany(ctx, idx.models)
		if err != nil {
			log.Printf("Warning: failed to create indexes on %s: %v", idx.collection, err)
		}
	}

	log.Println("Database indexes ensured")
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Games() *mongo.Collection {
	return m.Database.Collection("games")
}

func (m *MongoDB) Moves() *mongo.Collection {
	return m.Database.Collection("moves")
}

func (m *MongoDB) WSEvents() *mongo.Collection {
	return m.Database.Collection("ws_events")
}

func (m *MongoDB) InsertGame(ctx context.Context, g *models.Game) error {
	res, err := m.Games().InsertOne(ctx, g)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.SessionID, err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		g.ID = oid
	}
	return nil
}

func (m *MongoDB) FindGame(ctx context.Context, sessionID string) (*models.Game, error) {
	var g models.Game
	err := m.Games().FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGame replaces the stored document of g.SessionID.
func (m *MongoDB) SaveGame(ctx context.Context, g *models.Game) error {
	res, err := m.Games().ReplaceOne(ctx, bson.M{"sessionId": g.SessionID}, g)
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.SessionID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) InsertMove(ctx context.Context, mv *models.Move) error {
	if _, err := m.Moves().InsertOne(ctx, mv); err != nil {
		return fmt.Errorf("insert move %d of %s: %w", mv.Ply, mv.SessionID, err)
	}
	return nil
}

// FindMoves returns a session's moves in ply order.
func (m *MongoDB) FindMoves(ctx context.Context, sessionID string) ([]models.Move, error) {
	opts := options.Find().SetSort(bson.M{"ply": 1})
	cursor, err := m.Moves().Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	moves := []models.Move{}
	if err := cursor.All(ctx, &moves); err != nil {
		return nil, err
	}
	return moves, nil
}

func (m *MongoDB) DeleteMoves(ctx context.Context, sessionID string) error {
	_, err := m.Moves().DeleteMany(ctx, bson.M{"sessionId": sessionID})
	return err
}

// EngineSessions lists unfinished games that have an engine side.
func (m *MongoDB) EngineSessions(ctx context.Context) ([]string, error) {
	filter := bson.M{
		"status":      bson.M{"$ne": models.GameStatusComplete},
		"engineColor": bson.M{"$in": []models.PlayerColor{models.White, models.Black}},
	}
	opts := options.Find().SetProjection(bson.M{"sessionId": 1})
	cursor, err := m.Games().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var games []models.Game
	if err := cursor.All(ctx, &games); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.SessionID)
	}
	return ids, nil
}
