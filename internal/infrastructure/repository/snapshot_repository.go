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

// MongoSnapshotRepository implements SnapshotRepository using MongoDB
type MongoSnapshotRepository struct {
	collection *mongo.Collection
}

// NewMongoSnapshotRepository creates a new MongoDB snapshot repository
func NewMongoSnapshotRepository(db *mongo.Database) ports.SnapshotRepository {
	return &MongoSnapshotRepository{
		collection: db.Collection("product_snapshots"),
	}
}

// Upsert replaces the snapshot for one product, inserting on first sync.
func (r *MongoSnapshotRepository) Upsert(ctx context.Context, snap *domain.ProductSnapshot) error {
	doc := entity.MongoSnapshotDocFromDomain(snap)

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert product snapshot: %w", err)
	}
	return nil
}

// Get retrieves one product's snapshot; missing returns (nil, nil).
func (r *MongoSnapshotRepository) Get(ctx context.Context, storeID, productID string) (*domain.ProductSnapshot, error) {
	var doc entity.MongoSnapshotDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": domain.SnapshotKey(storeID, productID)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product snapshot: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByStore retrieves all snapshots for a store.
func (r *MongoSnapshotRepository) ListByStore(ctx context.Context, storeID string) ([]*domain.ProductSnapshot, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"storeId": storeID})
	if err != nil {
		return nil, fmt.Errorf("failed to list product snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var snaps []*domain.ProductSnapshot
	for cursor.Next(ctx) {
		var doc entity.MongoSnapshotDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product snapshot: %w", err)
		}
		snaps = append(snaps, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return snaps, nil
}

// CountByStore counts the snapshots held for a store.
func (r *MongoSnapshotRepository) CountByStore(ctx context.Context, storeID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"storeId": storeID})
	if err != nil {
		return 0, fmt.Errorf("failed to count product snapshots: %w", err)
	}
	return count, nil
}
