package shopify

import (
	"context"
	"fmt"

	"storepulse-shopify-core/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

type client struct {
	app         goshopify.App
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	logger      zerolog.Logger
}

// NewClient creates a new Shopify client adapter
func NewClient(apiKey, apiSecret string) ports.PlatformClient {
	return NewClientWithOptions(apiKey, apiSecret, nil, DefaultRetryConfig(), zerolog.Nop())
}

// NewClientWithOptions creates a client with rate limiting and retry options
func NewClientWithOptions(
	apiKey, apiSecret string,
	rateLimiter *RateLimiter,
	retryConfig RetryConfig,
	logger zerolog.Logger,
) ports.PlatformClient {
	app := goshopify.App{
		ApiKey:    apiKey,
		ApiSecret: apiSecret,
	}
	return &client{
		app:         app,
		rateLimiter: rateLimiter,
		retryConfig: retryConfig,
		logger:      logger,
	}
}

// createClient is a helper to create a goshopify client
func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// wait blocks until the shop's rate budget allows another call.
func (c *client) wait(ctx context.Context, shopDomain string) error {
	if c.rateLimiter == nil {
		return nil
	}
	return c.rateLimiter.Wait(ctx, shopDomain)
}

// Shop API

func (c *client) GetShop(ctx context.Context, shopDomain string, accessToken string) (*goshopify.Shop, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

// Product API

func (c *client) GetProducts(ctx context.Context, shopDomain string, accessToken string) ([]goshopify.Product, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	var products []goshopify.Product
	err = c.withRetry(ctx, shopDomain, "product list", func() error {
		var listErr error
		products, listErr = client.Product.ListAll(ctx, nil)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (c *client) GetProduct(ctx context.Context, shopDomain string, accessToken string, productID int64) (*goshopify.Product, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	var product *goshopify.Product
	err = c.withRetry(ctx, shopDomain, "product get", func() error {
		var getErr error
		product, getErr = client.Product.Get(ctx, uint64(productID), nil)
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// Order API

func (c *client) GetOrders(ctx context.Context, shopDomain string, accessToken string, options goshopify.OrderListOptions) ([]goshopify.Order, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	var orders []goshopify.Order
	err = c.withRetry(ctx, shopDomain, "order list", func() error {
		var listErr error
		orders, listErr = client.Order.List(ctx, options)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (c *client) GetOrder(ctx context.Context, shopDomain string, accessToken string, orderID int64) (*goshopify.Order, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	var order *goshopify.Order
	err = c.withRetry(ctx, shopDomain, "order get", func() error {
		var getErr error
		order, getErr = client.Order.Get(ctx, uint64(orderID), nil)
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// Webhook API

func (c *client) CreateWebhook(ctx context.Context, shopDomain string, accessToken string, topic string, address string) (*goshopify.Webhook, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	webhook := goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	}
	created, err := client.Webhook.Create(ctx, webhook)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return created, nil
}

func (c *client) ListWebhooks(ctx context.Context, shopDomain string, accessToken string) ([]goshopify.Webhook, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return nil, err
	}
	webhooks, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

func (c *client) DeleteWebhook(ctx context.Context, shopDomain string, accessToken string, webhookID int64) error {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	if err := c.wait(ctx, shopDomain); err != nil {
		return err
	}
	err = client.Webhook.Delete(ctx, uint64(webhookID))
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}
