package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

// Repository defines the persistence collaborator surface: observation
// appends and generated shopping lists for the order-management component
// to pick up.
type Repository interface {
	SaveObservation(ctx context.Context, obs models.PriceObservation) error
	SaveShoppingList(ctx context.Context, list models.ShoppingList) error
	GetShoppingList(ctx context.Context, listID string) (models.ShoppingList, error)
}

// MongoDBRepository implements Repository on MongoDB.
type MongoDBRepository struct {
	client           *mongo.Client
	dbName           string
	observationsColl string
	listsColl        string
}

// NewMongoDBRepository connects to MongoDB and verifies the connection.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:           client,
		dbName:           dbName,
		observationsColl: "price_observations",
		listsColl:        "shopping_lists",
	}, nil
}

// SaveObservation inserts one price observation. Inserts only; the ledger is
// append-only and retention is an external policy.
func (r *MongoDBRepository) SaveObservation(ctx context.Context, obs models.PriceObservation) error {
	collection := r.client.Database(r.dbName).Collection(r.observationsColl)
	if _, err := collection.InsertOne(ctx, obs); err != nil {
		return fmt.Errorf("failed to insert price observation: %w", err)
	}
	return nil
}

// SaveShoppingList stores a generated shopping list.
func (r *MongoDBRepository) SaveShoppingList(ctx context.Context, list models.ShoppingList) error {
	collection := r.client.Database(r.dbName).Collection(r.listsColl)
	if _, err := collection.InsertOne(ctx, list); err != nil {
		return fmt.Errorf("failed to insert shopping list: %w", err)
	}
	return nil
}

// GetShoppingList loads a shopping list by id.
func (r *MongoDBRepository) GetShoppingList(ctx context.Context, listID string) (models.ShoppingList, error) {
	collection := r.client.Database(r.dbName).Collection(r.listsColl)

	var list models.ShoppingList
	if err := collection.FindOne(ctx, bson.M{"list_id": listID}).Decode(&list); err != nil {
		return models.ShoppingList{}, fmt.Errorf("failed to load shopping list %s: %w", listID, err)
	}
	return list, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
