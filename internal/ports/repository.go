package ports

import (
	"context"

	"storepulse-shopify-core/internal/domain"
)

// ConnectionRepository defines persistence for connection records. The
// document store keeps one document per connection keyed by generated id.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *domain.Connection) error
	Get(ctx context.Context, id string) (*domain.Connection, error)
	GetByDomain(ctx context.Context, shopDomain string) (*domain.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Connection, error)
	ListByProvider(ctx context.Context, provider string) ([]*domain.Connection, error)
	ListByStatus(ctx context.Context, status domain.ConnectionStatus) ([]*domain.Connection, error)
	Update(ctx context.Context, conn *domain.Connection) error

	// UpdateIfStatus atomically applies mutate to the stored connection only
	// when its current status matches expect, returning the updated record.
	// Returns domain.ErrInvalidState when the stored status differs and
	// domain.ErrNotFound when the connection does not exist.
	UpdateIfStatus(ctx context.Context, id string, expect domain.ConnectionStatus, mutate func(*domain.Connection)) (*domain.Connection, error)
}

// SnapshotRepository defines persistence for product snapshots. Upsert
// semantics guarantee one snapshot per (store, product) regardless of how
// often a sync runs.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snap *domain.ProductSnapshot) error
	Get(ctx context.Context, storeID, productID string) (*domain.ProductSnapshot, error)
	ListByStore(ctx context.Context, storeID string) ([]*domain.ProductSnapshot, error)
	CountByStore(ctx context.Context, storeID string) (int64, error)
}
