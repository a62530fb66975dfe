package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"storepulse-shopify-core/internal/domain"
	"storepulse-shopify-core/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// SyncMetrics is implemented by the Prometheus collector; the service only
// depends on this interface so tests can pass NopMetrics.
type SyncMetrics interface {
	RecordSyncSuccess(storeID string)
	RecordSyncFailure(storeID string, reason string)
	RecordSyncDuration(d time.Duration)
	RecordEventsAppended(n int)
	RecordSnapshotsUpserted(n int)
}

// SyncNotifier receives sync lifecycle notifications; the in-process
// pub/sub fan-out implements it.
type SyncNotifier interface {
	NotifySync(storeID string, phase string, err error)
}

type nopNotifier struct{}

func (nopNotifier) NotifySync(string, string, error) {}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordSyncSuccess(string)         {}
func (NopMetrics) RecordSyncFailure(string, string) {}
func (NopMetrics) RecordSyncDuration(time.Duration) {}
func (NopMetrics) RecordEventsAppended(int)         {}
func (NopMetrics) RecordSnapshotsUpserted(int)      {}

const (
	// syncLeaseTTL bounds how long a crashed sync can block its store.
	syncLeaseTTL = 5 * time.Minute

	// orderLookback is the window for the recent-orders pass.
	orderLookback = 30 * 24 * time.Hour

	defaultBatchConcurrency = 4
)

// SyncService is the sync orchestrator: one idempotent unit of work per
// storefront that refreshes catalog and order data and appends events. It
// is the only writer of product snapshots and the event log.
type SyncService struct {
	connections ports.ConnectionRepository
	snapshots   ports.SnapshotRepository
	events      ports.EventLog
	platform    ports.PlatformClient
	lease       ports.SyncLease
	metrics     SyncMetrics
	notifier    SyncNotifier
	logger      zerolog.Logger
	concurrency int
}

// NewSyncService creates a new sync orchestrator.
func NewSyncService(
	connections ports.ConnectionRepository,
	snapshots ports.SnapshotRepository,
	events ports.EventLog,
	platform ports.PlatformClient,
	lease ports.SyncLease,
	metrics SyncMetrics,
	logger zerolog.Logger,
	concurrency int,
) *SyncService {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &SyncService{
		connections: connections,
		snapshots:   snapshots,
		events:      events,
		platform:    platform,
		lease:       lease,
		metrics:     metrics,
		notifier:    nopNotifier{},
		logger:      logger,
		concurrency: concurrency,
	}
}

// SetNotifier installs a lifecycle notification sink.
func (s *SyncService) SetNotifier(n SyncNotifier) {
	if n != nil {
		s.notifier = n
	}
}

// SyncStore refreshes one storefront: full product list, then recent
// orders. The product and order passes are independent; a failure in the
// order pass does not discard snapshots or events already committed to
// the append-only log.
func (s *SyncService) SyncStore(ctx context.Context, storeID string) error {
	start := time.Now()
	defer func() { s.metrics.RecordSyncDuration(time.Since(start)) }()

	// The lease is taken before anything else so two overlapping triggers
	// (scheduler tick, webhook, manual) contend on the lease alone.
	release, ok, err := s.acquireLease(ctx, storeID)
	if err != nil {
		s.metrics.RecordSyncFailure(storeID, "lease")
		return err
	}
	if !ok {
		return domain.ErrSyncInProgress
	}
	defer release()

	conn, err := s.loadConnected(ctx, storeID)
	if err != nil {
		s.metrics.RecordSyncFailure(storeID, "not_connected")
		return err
	}

	s.notifier.NotifySync(storeID, "started", nil)

	if err := s.syncProducts(ctx, conn); err != nil {
		s.metrics.RecordSyncFailure(storeID, "products")
		s.notifier.NotifySync(storeID, "failed", err)
		return err
	}

	if err := s.syncOrders(ctx, conn); err != nil {
		s.metrics.RecordSyncFailure(storeID, "orders")
		s.notifier.NotifySync(storeID, "failed", err)
		return err
	}

	if err := s.touchLastSync(ctx, conn); err != nil {
		s.notifier.NotifySync(storeID, "failed", err)
		return err
	}

	s.metrics.RecordSyncSuccess(storeID)
	s.notifier.NotifySync(storeID, "completed", nil)
	s.logger.Info().
		Str("storeId", storeID).
		Str("domain", conn.Domain).
		Dur("duration", time.Since(start)).
		Msg("Store sync completed")
	return nil
}

// SyncProductByID refreshes a single product in response to a platform
// webhook, resolved by the storefront domain the webhook reports.
func (s *SyncService) SyncProductByID(ctx context.Context, shopDomain string, productID int64) error {
	conn, err := s.loadConnectedByDomain(ctx, shopDomain)
	if err != nil {
		return err
	}

	release, ok, err := s.acquireLease(ctx, conn.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSyncInProgress
	}
	defer release()

	product, err := s.platform.GetProduct(ctx, conn.Domain, conn.Credential.AccessToken, productID)
	if err != nil {
		return domain.NewUpstreamError("product fetch", err)
	}

	if _, err := s.ingestProduct(ctx, conn, product); err != nil {
		return err
	}

	s.logger.Info().
		Str("storeId", conn.ID).
		Int64("productId", productID).
		Msg("Webhook-driven product sync completed")
	return nil
}

// SyncOrderByID appends purchase events for a single order in response to
// a platform webhook.
func (s *SyncService) SyncOrderByID(ctx context.Context, shopDomain string, orderID int64) error {
	conn, err := s.loadConnectedByDomain(ctx, shopDomain)
	if err != nil {
		return err
	}

	release, ok, err := s.acquireLease(ctx, conn.ID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSyncInProgress
	}
	defer release()

	order, err := s.platform.GetOrder(ctx, conn.Domain, conn.Credential.AccessToken, orderID)
	if err != nil {
		return domain.NewUpstreamError("order fetch", err)
	}

	if _, err := s.ingestOrder(ctx, conn, order); err != nil {
		return err
	}

	s.logger.Info().
		Str("storeId", conn.ID).
		Int64("orderId", orderID).
		Msg("Webhook-driven order sync completed")
	return nil
}

// StoreFailure records one storefront that failed inside a batch.
type StoreFailure struct {
	StoreID string `json:"store_id"`
	Err     error  `json:"-"`
	Reason  string `json:"reason"`
}

// BatchResult reports a scheduled batch run. Per-store failures are
// collected here instead of aborting the batch.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []StoreFailure `json:"failed"`
	Duration  time.Duration  `json:"-"`
}

// SyncAll runs one sync per connected storefront with bounded concurrency.
// One store's failure never aborts the batch; the run is interruptible
// between storefronts via ctx.
func (s *SyncService) SyncAll(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	conns, err := s.connections.ListByStatus(ctx, domain.StatusConnected)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected storefronts: %w", err)
	}

	result := &BatchResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for _, conn := range conns {
		select {
		case <-ctx.Done():
			s.logger.Warn().Msg("Batch sync interrupted")
			wg.Wait()
			result.Duration = time.Since(start)
			return result, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(storeID string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.SyncStore(ctx, storeID); err != nil {
				s.logger.Error().
					Err(err).
					Str("storeId", storeID).
					Msg("Store sync failed in batch")
				mu.Lock()
				result.Failed = append(result.Failed, StoreFailure{StoreID: storeID, Err: err, Reason: err.Error()})
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Succeeded = append(result.Succeeded, storeID)
			mu.Unlock()
		}(conn.ID)
	}

	wg.Wait()
	result.Duration = time.Since(start)

	s.logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Dur("duration", result.Duration).
		Msg("Batch sync completed")

	return result, nil
}

func (s *SyncService) loadConnected(ctx context.Context, storeID string) (*domain.Connection, error) {
	conn, err := s.connections.Get(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return nil, domain.NewNotFoundError("connection " + storeID)
	}
	if !conn.IsActive() || !conn.HasCredential() {
		return nil, domain.ErrNotConnected
	}
	return conn, nil
}

func (s *SyncService) loadConnectedByDomain(ctx context.Context, shopDomain string) (*domain.Connection, error) {
	conn, err := s.connections.GetByDomain(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve connection by domain: %w", err)
	}
	if conn == nil {
		return nil, domain.NewNotFoundError("connection for domain " + shopDomain)
	}
	if !conn.IsActive() || !conn.HasCredential() {
		return nil, domain.ErrNotConnected
	}
	return conn, nil
}

func (s *SyncService) acquireLease(ctx context.Context, storeID string) (func(), bool, error) {
	token, ok, err := s.lease.Acquire(ctx, storeID, syncLeaseTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		if err := s.lease.Release(context.WithoutCancel(ctx), storeID, token); err != nil {
			s.logger.Warn().Err(err).Str("storeId", storeID).Msg("Failed to release sync lease")
		}
	}
	return release, true, nil
}

// syncProducts is the catalog pass: normalize and upsert every product,
// appending one sync event per product.
func (s *SyncService) syncProducts(ctx context.Context, conn *domain.Connection) error {
	products, err := s.platform.GetProducts(ctx, conn.Domain, conn.Credential.AccessToken)
	if err != nil {
		return domain.NewUpstreamError("product list", err)
	}

	upserted, appended := 0, 0
	for i := range products {
		inserted, err := s.ingestProduct(ctx, conn, &products[i])
		if err != nil {
			return err
		}
		upserted++
		if inserted {
			appended++
		}
	}

	s.metrics.RecordSnapshotsUpserted(upserted)
	s.metrics.RecordEventsAppended(appended)

	s.logger.Debug().
		Str("storeId", conn.ID).
		Int("products", upserted).
		Int("syncEvents", appended).
		Msg("Catalog pass completed")
	return nil
}

// syncOrders is the order pass: one purchase event per order line item.
func (s *SyncService) syncOrders(ctx context.Context, conn *domain.Connection) error {
	opts := goshopify.OrderListOptions{
		ListOptions: goshopify.ListOptions{
			CreatedAtMin: time.Now().Add(-orderLookback),
		},
	}
	orders, err := s.platform.GetOrders(ctx, conn.Domain, conn.Credential.AccessToken, opts)
	if err != nil {
		return domain.NewUpstreamError("order list", err)
	}

	appended := 0
	for i := range orders {
		n, err := s.ingestOrder(ctx, conn, &orders[i])
		if err != nil {
			return err
		}
		appended += n
	}

	s.metrics.RecordEventsAppended(appended)

	s.logger.Debug().
		Str("storeId", conn.ID).
		Int("orders", len(orders)).
		Int("purchaseEvents", appended).
		Msg("Order pass completed")
	return nil
}

// ingestProduct normalizes one platform product, upserts its snapshot, and
// appends the content-addressed sync event. Returns whether the sync event
// was newly stored (false means this content version was seen before).
func (s *SyncService) ingestProduct(ctx context.Context, conn *domain.Connection, p *goshopify.Product) (bool, error) {
	snap := NormalizeProduct(conn.ID, p)

	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		return false, fmt.Errorf("failed to upsert product snapshot: %w", err)
	}

	event := &domain.Event{
		EventID:   SyncEventID(conn.ID, snap),
		StoreID:   conn.ID,
		ProductID: snap.ProductID,
		Kind:      domain.EventSync,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"title":    snap.Title,
			"vendor":   snap.Vendor,
			"type":     snap.Type,
			"status":   snap.Status,
			"variants": strconv.Itoa(len(snap.Variants)),
		},
	}
	if err := event.Validate(); err != nil {
		return false, err
	}

	inserted, err := s.events.Append(ctx, event)
	if err != nil {
		return false, fmt.Errorf("failed to append sync event: %w", err)
	}
	return inserted, nil
}

// ingestOrder appends one purchase event per line item, attributing
// quantity, price, currency, discount, and geography. Returns how many
// events were newly stored.
func (s *SyncService) ingestOrder(ctx context.Context, conn *domain.Connection, order *goshopify.Order) (int, error) {
	ts := time.Now()
	if order.CreatedAt != nil {
		ts = *order.CreatedAt
	}

	var geo domain.DeviceGeo
	if addr := order.ShippingAddress; addr != nil {
		geo = domain.DeviceGeo{Country: addr.Country, Region: addr.Province, City: addr.City}
	} else if addr := order.BillingAddress; addr != nil {
		geo = domain.DeviceGeo{Country: addr.Country, Region: addr.Province, City: addr.City}
	}

	userID := ""
	if order.Customer != nil && order.Customer.Id != 0 {
		userID = strconv.FormatUint(order.Customer.Id, 10)
	}

	appended := 0
	for _, line := range order.LineItems {
		price := 0.0
		if line.Price != nil {
			price, _ = line.Price.Float64()
		}
		discount := 0.0
		if line.TotalDiscount != nil {
			discount, _ = line.TotalDiscount.Float64()
		}

		event := &domain.Event{
			EventID:   PurchaseEventID(order.Id, line.Id),
			UserID:    userID,
			SessionID: order.Token,
			StoreID:   conn.ID,
			ProductID: strconv.FormatUint(line.ProductId, 10),
			VariantID: strconv.FormatUint(line.VariantId, 10),
			Kind:      domain.EventPurchase,
			Timestamp: ts,
			Quantity:  line.Quantity,
			Price:     price,
			Currency:  order.Currency,
			Discount:  discount,
			Device:    geo,
		}
		if err := event.Validate(); err != nil {
			s.logger.Warn().
				Err(err).
				Str("storeId", conn.ID).
				Uint64("orderId", order.Id).
				Msg("Skipping invalid order line")
			continue
		}

		inserted, err := s.events.Append(ctx, event)
		if err != nil {
			return appended, fmt.Errorf("failed to append purchase event: %w", err)
		}
		if inserted {
			appended++
		}
	}
	return appended, nil
}

func (s *SyncService) touchLastSync(ctx context.Context, conn *domain.Connection) error {
	now := time.Now()
	conn.LastSyncAt = &now
	conn.UpdatedAt = now
	if err := s.connections.Update(ctx, conn); err != nil {
		return fmt.Errorf("failed to record last sync time: %w", err)
	}
	return nil
}

// NormalizeProduct maps a platform product into the snapshot shape: tag
// string split into a trimmed set, images and variants carried in display
// order.
func NormalizeProduct(storeID string, p *goshopify.Product) *domain.ProductSnapshot {
	productID := strconv.FormatUint(p.Id, 10)

	images := make([]domain.ProductImage, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, domain.ProductImage{
			ID:       int64(img.Id),
			Src:      img.Src,
			Position: img.Position,
		})
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].Position < images[j].Position })

	variants := make([]domain.ProductVariant, 0, len(p.Variants))
	for _, v := range p.Variants {
		price := 0.0
		if v.Price != nil {
			price, _ = v.Price.Float64()
		}
		compareAt := 0.0
		if v.CompareAtPrice != nil {
			compareAt, _ = v.CompareAtPrice.Float64()
		}
		variants = append(variants, domain.ProductVariant{
			ID:             int64(v.Id),
			Title:          v.Title,
			SKU:            v.Sku,
			Price:          price,
			CompareAtPrice: compareAt,
			InventoryQty:   v.InventoryQuantity,
			Position:       v.Position,
		})
	}
	sort.SliceStable(variants, func(i, j int) bool { return variants[i].Position < variants[j].Position })

	return &domain.ProductSnapshot{
		ID:          domain.SnapshotKey(storeID, productID),
		StoreID:     storeID,
		ProductID:   productID,
		Title:       p.Title,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		Type:        p.ProductType,
		Tags:        domain.SplitTags(p.Tags),
		Status:      string(p.Status),
		Images:      images,
		Variants:    variants,
		SEO: domain.ProductSEO{
			Title:       p.Title,
			Description: p.Handle,
		},
		LastSyncedAt: time.Now(),
	}
}

// SyncEventID derives a deterministic, content-addressed id for a sync
// event. Re-syncing an unchanged product yields the same id, so the
// append-only log counts each observed content version exactly once.
func SyncEventID(storeID string, snap *domain.ProductSnapshot) string {
	var b strings.Builder
	b.WriteString(snap.Title)
	b.WriteByte('|')
	b.WriteString(snap.Vendor)
	b.WriteByte('|')
	b.WriteString(snap.Type)
	b.WriteByte('|')
	b.WriteString(snap.Status)
	b.WriteByte('|')
	b.WriteString(strings.Join(snap.Tags, ","))
	for _, v := range snap.Variants {
		fmt.Fprintf(&b, "|%d:%s:%.2f:%.2f:%d", v.ID, v.SKU, v.Price, v.CompareAtPrice, v.InventoryQty)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("sync:%s:%s:%s", storeID, snap.ProductID, hex.EncodeToString(sum[:8]))
}

// PurchaseEventID derives a deterministic id for one order line item.
func PurchaseEventID(orderID, lineItemID uint64) string {
	return fmt.Sprintf("purchase:%d:%d", orderID, lineItemID)
}
