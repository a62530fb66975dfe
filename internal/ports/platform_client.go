package ports

import (
	"context"

	shopify "github.com/bold-commerce/go-shopify/v4"
)

// PlatformClient defines the slice of the external platform API the sync
// pipeline needs. Implementations wrap the vendor SDK; tests substitute
// fakes.
type PlatformClient interface {
	// Shop API
	GetShop(ctx context.Context, shop string, accessToken string) (*shopify.Shop, error)

	// Product API
	GetProducts(ctx context.Context, shop string, accessToken string) ([]shopify.Product, error)
	GetProduct(ctx context.Context, shop string, accessToken string, productID int64) (*shopify.Product, error)

	// Order API
	GetOrders(ctx context.Context, shop string, accessToken string, options shopify.OrderListOptions) ([]shopify.Order, error)
	GetOrder(ctx context.Context, shop string, accessToken string, orderID int64) (*shopify.Order, error)

	// Webhook API
	CreateWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) (*shopify.Webhook, error)
	ListWebhooks(ctx context.Context, shop string, accessToken string) ([]shopify.Webhook, error)
	DeleteWebhook(ctx context.Context, shop string, accessToken string, webhookID int64) error
}
