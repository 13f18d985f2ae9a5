package order

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/strata/internal/cache"
	"github.com/Additional-Code/strata/internal/config"
	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/internal/messaging"
	repo "github.com/Additional-Code/strata/internal/repository/order"
	"github.com/Additional-Code/strata/pkg/errorbank"
)

// fakeRepo keeps aggregates in memory and mimics the optimistic-locking
// save semantics of the aggregate strategies.
type fakeRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (f *fakeRepo) Save(_ context.Context, o *domain.Order) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.orders[o.ID()]; ok && stored.Version() != o.Version() {
		return nil, repo.ErrVersionConflict
	} else if !ok && o.Version() != 0 {
		return nil, repo.ErrNotFound
	}
	saved := domain.Reconstitute(o.ID(), o.CustomerID(), o.Status(), o.TotalAmount(),
		o.LineItems(), o.CreatedAt(), o.UpdatedAt(), o.Version()+1)
	f.orders[o.ID()] = saved
	return saved, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) FindAll(context.Context) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeRepo) FindAllPaged(ctx context.Context, page, size int) ([]*domain.Order, error) {
	return f.FindAll(ctx)
}

func (f *fakeRepo) ComputeAggregateSummary(ctx context.Context) (domain.Summary, error) {
	orders, _ := f.FindAll(ctx)
	return domain.Summarize(orders), nil
}

func (f *fakeRepo) BulkUpdateStatus(_ context.Context, from, to domain.Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, o := range f.orders {
		if o.Status() != from {
			continue
		}
		f.orders[id] = domain.Reconstitute(o.ID(), o.CustomerID(), to, o.TotalAmount(),
			o.LineItems(), o.CreatedAt(), time.Now().UTC(), o.Version())
		count++
	}
	return count, nil
}

func (f *fakeRepo) FindByProductID(ctx context.Context, productID string) ([]*domain.Order, error) {
	orders, _ := f.FindAll(ctx)
	var out []*domain.Order
	for _, o := range orders {
		for _, item := range o.LineItems() {
			if item.ProductID() == productID {
				out = append(out, o)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = make(map[uuid.UUID]*domain.Order)
	return nil
}

func (f *fakeRepo) SupportsOptimisticLocking() bool { return true }

// fakeCache records reads, writes, and flushes.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	flushed int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) Flush(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.flushed++
	return nil
}

// fakePublisher records every envelope sent.
type fakePublisher struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func (p *fakePublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *fakePublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePublisher) Topic() string { return "orders.lifecycle" }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envelopes))
	for _, env := range p.envelopes {
		out = append(out, env.Type)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeCache, *fakePublisher) {
	t.Helper()
	r := newFakeRepo()
	c := newFakeCache()
	p := &fakePublisher{}
	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "orders.lifecycle"
	svc := &Service{
		repo:      r,
		cache:     c,
		cacheTTL:  cfg.Cache.DefaultTTL,
		logger:    zap.NewNop(),
		publisher: p,
		messaging: messagingConfig{enabled: true, topic: cfg.Messaging.Kafka.Topic},
	}
	return svc, r, c, p
}

func item(product string, qty int, price string) ItemInput {
	return ItemInput{
		ProductID:   product,
		ProductName: "Product " + product,
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(price),
	}
}

func TestCreate(t *testing.T) {
	svc, _, c, p := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 2, "100")})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, o.Status())
	require.EqualValues(t, 1, o.Version())
	require.True(t, decimal.RequireFromString("200").Equal(o.TotalAmount()))

	require.Equal(t, []string{EventOrderCreated}, p.types())
	_, ok := c.entries["orders:"+o.ID().String()]
	require.True(t, ok)
}

func TestCreateRequiresCustomer(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "", nil)
	require.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}

func TestCreateRejectsBadItem(t *testing.T) {
	svc, _, _, p := newTestService(t)

	_, err := svc.Create(context.Background(), "cust-1", []ItemInput{item("p-1", 0, "100")})
	require.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
	require.Empty(t, p.types())
}

func TestGetUsesCache(t *testing.T) {
	svc, r, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, "50")})
	require.NoError(t, err)

	// Drop the stored copy; the snapshot should still serve the read.
	require.NoError(t, r.DeleteAll(ctx))

	got, err := svc.Get(ctx, o.ID())
	require.NoError(t, err)
	require.Equal(t, o.ID(), got.ID())
	require.True(t, o.TotalAmount().Equal(got.TotalAmount()))
	require.Len(t, got.LineItems(), 1)
}

func TestGetMissing(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestSubmitPublishesTransition(t *testing.T) {
	svc, _, _, p := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, "50")})
	require.NoError(t, err)

	submitted, err := svc.Submit(ctx, o.ID())
	require.NoError(t, err)
	require.Equal(t, domain.StatusSubmitted, submitted.Status())

	require.Equal(t, []string{EventOrderCreated, EventOrderStatusChanged}, p.types())
	var event OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(p.envelopes[1].Payload, &event))
	require.Equal(t, "DRAFT", event.From)
	require.Equal(t, "SUBMITTED", event.To)
}

func TestSubmitEmptyDraft(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", nil)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, o.ID())
	require.True(t, errorbank.IsKind(err, errorbank.KindIllegalState))
}

func TestUpdateItemQuantity(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, "50")})
	require.NoError(t, err)
	itemID := o.LineItems()[0].ID()

	updated, err := svc.UpdateItemQuantity(ctx, o.ID(), itemID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, updated.LineItems()[0].Quantity())
	require.Equal(t, itemID, updated.LineItems()[0].ID())
	require.True(t, decimal.RequireFromString("200").Equal(updated.TotalAmount()))
}

func TestVersionConflictMapsToConflict(t *testing.T) {
	svc, r, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, "50")})
	require.NoError(t, err)

	// Another writer bumps the stored version behind our back.
	stored, err := r.FindByID(ctx, o.ID())
	require.NoError(t, err)
	_, err = r.Save(ctx, stored)
	require.NoError(t, err)

	stale := domain.Reconstitute(o.ID(), o.CustomerID(), o.Status(), o.TotalAmount(),
		o.LineItems(), o.CreatedAt(), o.UpdatedAt(), o.Version()-1)
	_, err = r.Save(ctx, stale)
	require.ErrorIs(t, err, repo.ErrVersionConflict)
	require.True(t, errorbank.IsKind(svc.mapRepoError(err, "save"), errorbank.KindConflict))
}

func TestBulkUpdateStatus(t *testing.T) {
	svc, _, c, p := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, "50")})
		require.NoError(t, err)
	}

	count, err := svc.BulkUpdateStatus(ctx, "DRAFT", "CANCELLED")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
	require.Equal(t, 1, c.flushed)
	require.Contains(t, p.types(), EventOrdersBulkUpdated)

	_, err = svc.BulkUpdateStatus(ctx, "BOGUS", "CANCELLED")
	require.True(t, errorbank.IsKind(err, errorbank.KindInvalidArgument))
}

func TestDeleteAllFlushesCache(t *testing.T) {
	svc, _, c, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, "50")})
	require.NoError(t, err)
	require.NotEmpty(t, c.entries)

	require.NoError(t, svc.DeleteAll(ctx))
	require.Empty(t, c.entries)
	require.Equal(t, 1, c.flushed)
}

func TestSummary(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for _, price := range []string{"100", "200", "300"} {
		_, err := svc.Create(ctx, "cust-1", []ItemInput{item("p-1", 1, price)})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, summary.TotalOrders)
	require.True(t, decimal.RequireFromString("600").Equal(summary.TotalAmount))
	require.True(t, decimal.RequireFromString("200").Equal(summary.AverageAmount))
}
