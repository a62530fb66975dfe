package repository

import (
	"context"
	"fmt"

	"storepulse-shopify-core/internal/domain"
	"storepulse-shopify-core/internal/infrastructure/repository/entity"
	"storepulse-shopify-core/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConnectionRepository implements ConnectionRepository using MongoDB
type MongoConnectionRepository struct {
	collection *mongo.Collection
}

// NewMongoConnectionRepository creates a new MongoDB connection repository
func NewMongoConnectionRepository(db *mongo.Database) ports.ConnectionRepository {
	return &MongoConnectionRepository{
		collection: db.Collection("connections"),
	}
}

// Create inserts a new connection; a duplicate id is an error.
func (r *MongoConnectionRepository) Create(ctx context.Context, conn *domain.Connection) error {
	doc := entity.MongoConnectionDocFromDomain(conn)
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// Get retrieves a connection by id; a missing document returns (nil, nil).
func (r *MongoConnectionRepository) Get(ctx context.Context, id string) (*domain.Connection, error) {
	var doc entity.MongoConnectionDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetByDomain retrieves a connection by storefront domain.
func (r *MongoConnectionRepository) GetByDomain(ctx context.Context, shopDomain string) (*domain.Connection, error) {
	var doc entity.MongoConnectionDoc
	err := r.collection.FindOne(ctx, bson.M{"domain": shopDomain}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection by domain: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByUser retrieves all connections owned by a user.
func (r *MongoConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Connection, error) {
	return r.list(ctx, bson.M{"userId": userID})
}

// ListByProvider retrieves all connections for a provider tag.
func (r *MongoConnectionRepository) ListByProvider(ctx context.Context, provider string) ([]*domain.Connection, error) {
	return r.list(ctx, bson.M{"provider": provider})
}

// ListByStatus retrieves all connections in a lifecycle state.
func (r *MongoConnectionRepository) ListByStatus(ctx context.Context, status domain.ConnectionStatus) ([]*domain.Connection, error) {
	return r.list(ctx, bson.M{"status": string(status)})
}

func (r *MongoConnectionRepository) list(ctx context.Context, filter bson.M) ([]*domain.Connection, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer cursor.Close(ctx)

	var conns []*domain.Connection
	for cursor.Next(ctx) {
		var doc entity.MongoConnectionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		conns = append(conns, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return conns, nil
}

// Update replaces the whole connection document.
func (r *MongoConnectionRepository) Update(ctx context.Context, conn *domain.Connection) error {
	doc := entity.MongoConnectionDocFromDomain(conn)
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": conn.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.NewNotFoundError("connection " + conn.ID)
	}
	return nil
}

// UpdateIfStatus applies mutate and persists the result only if the stored
// document still carries the expected status. The status precondition rides
// in the replace filter, so two racing state transitions cannot both win;
// the loser gets ErrInvalidState.
func (r *MongoConnectionRepository) UpdateIfStatus(
	ctx context.Context,
	id string,
	expect domain.ConnectionStatus,
	mutate func(*domain.Connection),
) (*domain.Connection, error) {
	filter := bson.M{"_id": id, "status": string(expect)}

	var doc entity.MongoConnectionDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, r.classifyMiss(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection for update: %w", err)
	}

	conn := doc.ToDomain()
	mutate(conn)
	updated := entity.MongoConnectionDocFromDomain(conn)

	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	var after entity.MongoConnectionDoc
	err = r.collection.FindOneAndReplace(ctx, filter, updated, opts).Decode(&after)
	if err == mongo.ErrNoDocuments {
		return nil, r.classifyMiss(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	return after.ToDomain(), nil
}

// classifyMiss distinguishes a missing document from a status mismatch.
func (r *MongoConnectionRepository) classifyMiss(ctx context.Context, id string) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check connection existence: %w", err)
	}
	if count == 0 {
		return domain.NewNotFoundError("connection " + id)
	}
	return domain.ErrInvalidState
}
