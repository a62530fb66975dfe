package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"storepulse-shopify-core/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	svc      *SyncService
	conns    *fakeConnRepo
	snaps    *fakeSnapRepo
	events   *fakeEventLog
	platform *fakePlatform
	lease    *fakeLease
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		conns:    newFakeConnRepo(),
		snaps:    newFakeSnapRepo(),
		events:   newFakeEventLog(),
		platform: newFakePlatform(),
		lease:    newFakeLease(),
	}
	f.svc = NewSyncService(f.conns, f.snaps, f.events, f.platform, f.lease, NopMetrics{}, zerolog.Nop(), 2)
	return f
}

func (f *syncFixture) addStore(t *testing.T, id, shopDomain string) *domain.Connection {
	t.Helper()
	now := time.Now()
	conn := &domain.Connection{
		ID:         id,
		UserID:     "user-1",
		Provider:   "shopify",
		Status:     domain.StatusConnected,
		Domain:     shopDomain,
		Credential: &domain.Credential{AccessToken: "shpat_test"},
		Webhooks:   []domain.Webhook{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.conns.Create(context.Background(), conn))
	return conn
}

func testProduct(id uint64, title, tags, price string) goshopify.Product {
	return goshopify.Product{
		Id:          id,
		Title:       title,
		BodyHTML:    "<p>" + title + "</p>",
		Vendor:      "Acme",
		ProductType: "Widget",
		Handle:      "widget",
		Tags:        tags,
		Status:      "active",
		Variants: []goshopify.Variant{
			{Id: id*10 + 1, Title: "Default", Sku: "SKU-1", Price: dec(price), InventoryQuantity: 5, Position: 1},
		},
	}
}

func testOrder(id uint64, createdAt time.Time, lines ...goshopify.LineItem) goshopify.Order {
	return goshopify.Order{
		Id:        id,
		Token:     "order-token",
		Currency:  "USD",
		CreatedAt: &createdAt,
		Customer:  &goshopify.Customer{Id: 42},
		ShippingAddress: &goshopify.Address{
			Country:  "US",
			Province: "CA",
			City:     "Oakland",
		},
		LineItems: lines,
	}
}

func TestSyncStore_WritesSnapshotsAndEvents(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")
	f.platform.products["acme.myshopify.com"] = []goshopify.Product{
		testProduct(100, "Widget A", "new, sale", "19.99"),
		testProduct(200, "Widget B", "", "5.00"),
	}
	f.platform.orders["acme.myshopify.com"] = []goshopify.Order{
		testOrder(9000, time.Now().Add(-time.Hour),
			goshopify.LineItem{Id: 1, ProductId: 100, VariantId: 1001, Quantity: 2, Price: dec("19.99"), TotalDiscount: dec("2.00")},
			goshopify.LineItem{Id: 2, ProductId: 200, VariantId: 2001, Quantity: 1, Price: dec("5.00")},
		),
	}

	require.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))

	count, err := f.snaps.CountByStore(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	snap, err := f.snaps.Get(context.Background(), "store-1", "100")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "Widget A", snap.Title)
	assert.Equal(t, []string{"new", "sale"}, snap.Tags)

	assert.Equal(t, 2, f.events.countByKind(domain.EventSync))
	assert.Equal(t, 2, f.events.countByKind(domain.EventPurchase))

	stored, err := f.conns.Get(context.Background(), "store-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastSyncAt)
}

func TestSyncStore_ReplayIsIdempotent(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")
	f.platform.products["acme.myshopify.com"] = []goshopify.Product{
		testProduct(100, "Widget A", "sale", "19.99"),
	}
	f.platform.orders["acme.myshopify.com"] = []goshopify.Order{
		testOrder(9000, time.Now().Add(-time.Hour),
			goshopify.LineItem{Id: 1, ProductId: 100, VariantId: 1001, Quantity: 1, Price: dec("19.99")},
		),
	}

	require.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))
	require.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))

	count, err := f.snaps.CountByStore(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.events.countByKind(domain.EventSync))
	assert.Equal(t, 1, f.events.countByKind(domain.EventPurchase))
}

func TestSyncStore_ChangedProductEmitsNewSyncEvent(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")
	f.platform.products["acme.myshopify.com"] = []goshopify.Product{
		testProduct(100, "Widget A", "sale", "19.99"),
	}

	require.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))
	assert.Equal(t, 1, f.events.countByKind(domain.EventSync))

	f.platform.products["acme.myshopify.com"] = []goshopify.Product{
		testProduct(100, "Widget A", "sale", "24.99"),
	}
	require.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))

	// A new content version of the same product is a new fact; the
	// snapshot stays singular.
	assert.Equal(t, 2, f.events.countByKind(domain.EventSync))
	count, _ := f.snaps.CountByStore(context.Background(), "store-1")
	assert.Equal(t, int64(1), count)
}

func TestSyncStore_NotFound(t *testing.T) {
	f := newSyncFixture()
	err := f.svc.SyncStore(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncStore_NotConnected(t *testing.T) {
	f := newSyncFixture()
	conn := f.addStore(t, "store-1", "acme.myshopify.com")
	conn.Status = domain.StatusDisconnected
	conn.Credential = nil
	require.NoError(t, f.conns.Update(context.Background(), conn))

	err := f.svc.SyncStore(context.Background(), "store-1")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSyncStore_LeaseHeld(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")

	_, ok, err := f.lease.Acquire(context.Background(), "store-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.svc.SyncStore(context.Background(), "store-1")
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
}

func TestSyncStore_LeaseWinsOverConnectionState(t *testing.T) {
	f := newSyncFixture()
	conn := f.addStore(t, "store-1", "acme.myshopify.com")
	conn.Status = domain.StatusDisconnected
	conn.Credential = nil
	require.NoError(t, f.conns.Update(context.Background(), conn))

	_, ok, err := f.lease.Acquire(context.Background(), "store-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// With a sync already running, the caller hears about the contention,
	// not about whatever state the connection happens to be in.
	err = f.svc.SyncStore(context.Background(), "store-1")
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
}

func TestSyncStore_LimitsOrderLookback(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")

	require.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))

	f.platform.mu.Lock()
	createdAtMin := f.platform.lastOrderOpts.CreatedAtMin
	f.platform.mu.Unlock()
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), createdAtMin, time.Minute)
}

func TestSyncStore_ReleasesLeaseAfterFailure(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")
	f.platform.productsErr["acme.myshopify.com"] = errors.New("boom")

	err := f.svc.SyncStore(context.Background(), "store-1")
	assert.True(t, domain.IsUpstreamError(err))

	// The store is not wedged; clearing the upstream fault lets the next
	// sync acquire the lease.
	delete(f.platform.productsErr, "acme.myshopify.com")
	assert.NoError(t, f.svc.SyncStore(context.Background(), "store-1"))
}

func TestSyncAll_IsolatesPerStoreFailures(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "one.myshopify.com")
	f.addStore(t, "store-2", "two.myshopify.com")
	f.addStore(t, "store-3", "three.myshopify.com")
	f.platform.productsErr["two.myshopify.com"] = errors.New("api down")

	result, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"store-1", "store-3"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "store-2", result.Failed[0].StoreID)
}

func TestSyncProductByID(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")
	f.platform.products["acme.myshopify.com"] = []goshopify.Product{
		testProduct(100, "Widget A", "sale", "19.99"),
	}

	require.NoError(t, f.svc.SyncProductByID(context.Background(), "acme.myshopify.com", 100))

	snap, err := f.snaps.Get(context.Background(), "store-1", "100")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "Widget A", snap.Title)
	assert.Equal(t, 1, f.events.countByKind(domain.EventSync))
}

func TestSyncOrderByID_SkipsInvalidLines(t *testing.T) {
	f := newSyncFixture()
	f.addStore(t, "store-1", "acme.myshopify.com")
	f.platform.orders["acme.myshopify.com"] = []goshopify.Order{
		testOrder(9000, time.Now().Add(-time.Hour),
			goshopify.LineItem{Id: 1, ProductId: 100, VariantId: 1001, Quantity: 1, Price: dec("19.99")},
			// Zero quantity fails validation and is skipped, not fatal.
			goshopify.LineItem{Id: 2, ProductId: 200, VariantId: 2001, Quantity: 0, Price: dec("5.00")},
		),
	}

	require.NoError(t, f.svc.SyncOrderByID(context.Background(), "acme.myshopify.com", 9000))
	assert.Equal(t, 1, f.events.countByKind(domain.EventPurchase))
}

func TestNormalizeProduct(t *testing.T) {
	p := goshopify.Product{
		Id:          100,
		Title:       "Widget",
		Tags:        " sale , new, sale ,",
		Status:      "active",
		ProductType: "Widget",
		Variants: []goshopify.Variant{
			{Id: 2, Title: "Large", Price: dec("24.99"), Position: 2},
			{Id: 1, Title: "Small", Price: dec("19.99"), Position: 1},
		},
		Images: []goshopify.Image{
			{Id: 12, Src: "https://cdn/2.png", Position: 2},
			{Id: 11, Src: "https://cdn/1.png", Position: 1},
		},
	}

	snap := NormalizeProduct("store-1", &p)

	assert.Equal(t, "store-1:100", snap.ID)
	assert.Equal(t, "100", snap.ProductID)
	assert.Equal(t, []string{"sale", "new"}, snap.Tags)

	require.Len(t, snap.Variants, 2)
	assert.Equal(t, "Small", snap.Variants[0].Title)
	assert.InDelta(t, 19.99, snap.Variants[0].Price, 0.001)

	require.Len(t, snap.Images, 2)
	assert.Equal(t, "https://cdn/1.png", snap.Images[0].Src)
}

func TestSyncEventID_Deterministic(t *testing.T) {
	p := testProduct(100, "Widget A", "sale", "19.99")
	a := NormalizeProduct("store-1", &p)
	b := NormalizeProduct("store-1", &p)
	assert.Equal(t, SyncEventID("store-1", a), SyncEventID("store-1", b))

	changed := testProduct(100, "Widget A", "sale", "24.99")
	c := NormalizeProduct("store-1", &changed)
	assert.NotEqual(t, SyncEventID("store-1", a), SyncEventID("store-1", c))
}

func TestPurchaseEventID(t *testing.T) {
	assert.Equal(t, "purchase:9000:1", PurchaseEventID(9000, 1))
	assert.Equal(t, PurchaseEventID(9000, 1), PurchaseEventID(9000, 1))
}
