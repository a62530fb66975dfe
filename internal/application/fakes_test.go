package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storepulse-shopify-core/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/shopspring/decimal"
)

// fakeConnRepo is an in-memory ConnectionRepository.
type fakeConnRepo struct {
	mu    sync.Mutex
	conns map[string]*domain.Connection
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{conns: make(map[string]*domain.Connection)}
}

func (r *fakeConnRepo) clone(c *domain.Connection) *domain.Connection {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Credential != nil {
		cred := *c.Credential
		cp.Credential = &cred
	}
	cp.Webhooks = append([]domain.Webhook{}, c.Webhooks...)
	if c.LastSyncAt != nil {
		t := *c.LastSyncAt
		cp.LastSyncAt = &t
	}
	return &cp
}

func (r *fakeConnRepo) Create(_ context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID]; ok {
		return errors.New("duplicate id")
	}
	r.conns[conn.ID] = r.clone(conn)
	return nil
}

func (r *fakeConnRepo) Get(_ context.Context, id string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clone(r.conns[id]), nil
}

func (r *fakeConnRepo) GetByDomain(_ context.Context, shopDomain string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.Domain == shopDomain {
			return r.clone(c), nil
		}
	}
	return nil, nil
}

func (r *fakeConnRepo) ListByUser(_ context.Context, userID string) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.conns {
		if c.UserID == userID {
			out = append(out, r.clone(c))
		}
	}
	return out, nil
}

func (r *fakeConnRepo) ListByProvider(_ context.Context, provider string) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.conns {
		if c.Provider == provider {
			out = append(out, r.clone(c))
		}
	}
	return out, nil
}

func (r *fakeConnRepo) ListByStatus(_ context.Context, status domain.ConnectionStatus) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Connection
	for _, c := range r.conns {
		if c.Status == status {
			out = append(out, r.clone(c))
		}
	}
	return out, nil
}

func (r *fakeConnRepo) Update(_ context.Context, conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID]; !ok {
		return domain.NewNotFoundError("connection " + conn.ID)
	}
	r.conns[conn.ID] = r.clone(conn)
	return nil
}

func (r *fakeConnRepo) UpdateIfStatus(_ context.Context, id string, expect domain.ConnectionStatus, mutate func(*domain.Connection)) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return nil, domain.NewNotFoundError("connection " + id)
	}
	if c.Status != expect {
		return nil, domain.ErrInvalidState
	}
	cp := r.clone(c)
	mutate(cp)
	r.conns[id] = r.clone(cp)
	return cp, nil
}

// fakeSnapRepo is an in-memory SnapshotRepository.
type fakeSnapRepo struct {
	mu    sync.Mutex
	snaps map[string]*domain.ProductSnapshot
	err   error
}

func newFakeSnapRepo() *fakeSnapRepo {
	return &fakeSnapRepo{snaps: make(map[string]*domain.ProductSnapshot)}
}

func (r *fakeSnapRepo) Upsert(_ context.Context, snap *domain.ProductSnapshot) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *snap
	r.snaps[snap.ID] = &cp
	return nil
}

func (r *fakeSnapRepo) Get(_ context.Context, storeID, productID string) (*domain.ProductSnapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[domain.SnapshotKey(storeID, productID)]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (r *fakeSnapRepo) ListByStore(_ context.Context, storeID string) ([]*domain.ProductSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ProductSnapshot
	for _, s := range r.snaps {
		if s.StoreID == storeID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSnapRepo) CountByStore(ctx context.Context, storeID string) (int64, error) {
	snaps, _ := r.ListByStore(ctx, storeID)
	return int64(len(snaps)), nil
}

// fakeEventLog is an in-memory EventLog with id-based dedupe.
type fakeEventLog struct {
	mu     sync.Mutex
	events map[string]*domain.Event

	activity   *domain.ActivityStats
	daily      []domain.DailyFieldStats
	delay      *domain.DelayStats
	funnels    map[string]*domain.FunnelCounts
	top        []domain.RankedProduct
	revByDay   []domain.DailyRevenue
	readErr    error
	appendErr  error
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{
		events:  make(map[string]*domain.Event),
		funnels: make(map[string]*domain.FunnelCounts),
		delay:   &domain.DelayStats{},
	}
}

func (l *fakeEventLog) Append(_ context.Context, event *domain.Event) (bool, error) {
	if l.appendErr != nil {
		return false, l.appendErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[event.EventID]; ok {
		return false, nil
	}
	cp := *event
	l.events[event.EventID] = &cp
	return true, nil
}

func (l *fakeEventLog) countByKind(kind domain.EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// funnelKey lets tests preload window-specific results: "store|product|from".
func funnelKey(storeID, productID string, from time.Time) string {
	return fmt.Sprintf("%s|%s|%s", storeID, productID, from.Format("2006-01-02"))
}

func (l *fakeEventLog) ProductFunnel(_ context.Context, storeID, productID string, from, _ time.Time) (*domain.FunnelCounts, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	if c, ok := l.funnels[funnelKey(storeID, productID, from)]; ok {
		return c, nil
	}
	return &domain.FunnelCounts{}, nil
}

func (l *fakeEventLog) StoreFunnel(_ context.Context, storeID string, from, _ time.Time) (*domain.FunnelCounts, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	if c, ok := l.funnels[funnelKey(storeID, "", from)]; ok {
		return c, nil
	}
	return &domain.FunnelCounts{}, nil
}

func (l *fakeEventLog) TopProductsByRevenue(_ context.Context, _ string, _, _ time.Time, _ int) ([]domain.RankedProduct, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return append([]domain.RankedProduct{}, l.top...), nil
}

func (l *fakeEventLog) RevenueByDay(_ context.Context, _ string, _, _ time.Time) ([]domain.DailyRevenue, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.revByDay, nil
}

func (l *fakeEventLog) Activity(_ context.Context, _ string) (*domain.ActivityStats, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	if l.activity != nil {
		return l.activity, nil
	}
	return &domain.ActivityStats{}, nil
}

func (l *fakeEventLog) DailyFieldStats(_ context.Context, _ string, _ int) ([]domain.DailyFieldStats, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.daily, nil
}

func (l *fakeEventLog) IngestionDelay(_ context.Context, _ string, _ int) (*domain.DelayStats, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.delay, nil
}

// fakePlatform is a scripted PlatformClient.
type fakePlatform struct {
	mu sync.Mutex

	products map[string][]goshopify.Product
	orders   map[string][]goshopify.Order

	productsErr map[string]error
	ordersErr   map[string]error

	createWebhookErr     error
	deleteWebhookErr     error
	deleteWebhookErrByID map[int64]error
	deletedWebhooks      []int64
	nextWebhookID        uint64

	lastOrderOpts goshopify.OrderListOptions
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		products:             make(map[string][]goshopify.Product),
		orders:               make(map[string][]goshopify.Order),
		productsErr:          make(map[string]error),
		ordersErr:            make(map[string]error),
		deleteWebhookErrByID: make(map[int64]error),
	}
}

func (p *fakePlatform) GetShop(_ context.Context, shop, _ string) (*goshopify.Shop, error) {
	return &goshopify.Shop{}, nil
}

func (p *fakePlatform) GetProducts(_ context.Context, shop, _ string) ([]goshopify.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.productsErr[shop]; err != nil {
		return nil, err
	}
	return p.products[shop], nil
}

func (p *fakePlatform) GetProduct(_ context.Context, shop, _ string, productID int64) (*goshopify.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.productsErr[shop]; err != nil {
		return nil, err
	}
	for i := range p.products[shop] {
		if p.products[shop][i].Id == uint64(productID) {
			return &p.products[shop][i], nil
		}
	}
	return nil, errors.New("product not found")
}

func (p *fakePlatform) GetOrders(_ context.Context, shop, _ string, options goshopify.OrderListOptions) ([]goshopify.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastOrderOpts = options
	if err := p.ordersErr[shop]; err != nil {
		return nil, err
	}
	return p.orders[shop], nil
}

func (p *fakePlatform) GetOrder(_ context.Context, shop, _ string, orderID int64) (*goshopify.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ordersErr[shop]; err != nil {
		return nil, err
	}
	for i := range p.orders[shop] {
		if p.orders[shop][i].Id == uint64(orderID) {
			return &p.orders[shop][i], nil
		}
	}
	return nil, errors.New("order not found")
}

func (p *fakePlatform) CreateWebhook(_ context.Context, _, _ string, topic, address string) (*goshopify.Webhook, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createWebhookErr != nil {
		return nil, p.createWebhookErr
	}
	p.nextWebhookID++
	return &goshopify.Webhook{Id: p.nextWebhookID, Topic: topic, Address: address}, nil
}

func (p *fakePlatform) ListWebhooks(_ context.Context, _, _ string) ([]goshopify.Webhook, error) {
	return nil, nil
}

func (p *fakePlatform) DeleteWebhook(_ context.Context, _, _ string, webhookID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.deleteWebhookErrByID[webhookID]; err != nil {
		return err
	}
	if p.deleteWebhookErr != nil {
		return p.deleteWebhookErr
	}
	p.deletedWebhooks = append(p.deletedWebhooks, webhookID)
	return nil
}

// fakeLease is an in-memory SyncLease.
type fakeLease struct {
	mu     sync.Mutex
	held   map[string]string
	nextID int
}

func newFakeLease() *fakeLease {
	return &fakeLease{held: make(map[string]string)}
}

func (l *fakeLease) Acquire(_ context.Context, storeID string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[storeID]; ok {
		return "", false, nil
	}
	l.nextID++
	token := fmt.Sprintf("token-%d", l.nextID)
	l.held[storeID] = token
	return token, true, nil
}

func (l *fakeLease) Release(_ context.Context, storeID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[storeID] == token {
		delete(l.held, storeID)
	}
	return nil
}

// dec builds a decimal pointer for scripted platform data.
func dec(v string) *decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return &d
}
