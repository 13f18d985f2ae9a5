package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/strata/internal/cache"
	"github.com/Additional-Code/strata/internal/config"
	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/internal/messaging"
	repo "github.com/Additional-Code/strata/internal/repository/order"
	"github.com/Additional-Code/strata/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/strata/service/order")

// ItemInput carries the fields needed to add one line to an order.
type ItemInput struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Service encapsulates business logic around orders. All persistence goes
// through the configured repository strategy; the service never knows which
// one is active.
type Service struct {
	repo      repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Create opens a new draft order for the customer, optionally seeded with
// line items, and persists it.
func (s *Service) Create(ctx context.Context, customerID string, items []ItemInput) (*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create",
		trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	if customerID == "" {
		return nil, errorbank.InvalidArgument("customer id is required")
	}

	o := domain.New(customerID)
	for _, item := range items {
		if _, err := o.AddLineItem(item.ProductID, item.ProductName, item.Quantity, item.UnitPrice); err != nil {
			return nil, err
		}
	}

	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.mapRepoError(err, "failed to create order")
	}

	s.storeSnapshot(ctx, saved)
	s.publishEvent(ctx, saved.ID().String(), EventOrderCreated, OrderCreatedEvent{
		ID:          saved.ID().String(),
		CustomerID:  saved.CustomerID(),
		Status:      saved.Status().String(),
		TotalAmount: saved.TotalAmount(),
		ItemCount:   saved.LineItemCount(),
		CreatedAt:   saved.CreatedAt(),
	})
	return saved, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	if o, err := s.loadSnapshot(ctx, id); err == nil {
		return o, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id.String()), zap.Error(err))
	}

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
		}
		return nil, s.mapRepoError(err, "failed to load order")
	}

	s.storeSnapshot(ctx, o)
	return o, nil
}

// List returns every order ordered by creation time.
func (s *Service) List(ctx context.Context) ([]*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, s.mapRepoError(err, "failed to list orders")
	}
	return orders, nil
}

// ListPaged returns one zero-based page of orders.
func (s *Service) ListPaged(ctx context.Context, page, size int) ([]*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListPaged",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("size", size)))
	defer span.End()

	orders, err := s.repo.FindAllPaged(ctx, page, size)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to list orders")
	}
	return orders, nil
}

// Submit moves a draft order into SUBMITTED.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, "OrderService.Submit", id, (*domain.Order).Submit)
}

// Confirm moves a submitted order into CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, "OrderService.Confirm", id, (*domain.Order).Confirm)
}

func (s *Service) transition(ctx context.Context, spanName string, id uuid.UUID, move func(*domain.Order) error) (*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	var from domain.Status
	saved, err := s.mutate(ctx, id, func(o *domain.Order) error {
		from = o.Status()
		return move(o)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, saved.ID().String(), EventOrderStatusChanged, OrderStatusChangedEvent{
		ID:   saved.ID().String(),
		From: from.String(),
		To:   saved.Status().String(),
	})
	return saved, nil
}

// AddItem appends a new line item to an existing order.
func (s *Service) AddItem(ctx context.Context, id uuid.UUID, item ItemInput) (*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AddItem",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	return s.mutate(ctx, id, func(o *domain.Order) error {
		_, err := o.AddLineItem(item.ProductID, item.ProductName, item.Quantity, item.UnitPrice)
		return err
	})
}

// UpdateItemQuantity changes the quantity of one line item.
func (s *Service) UpdateItemQuantity(ctx context.Context, id, itemID uuid.UUID, quantity int) (*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateItemQuantity",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	return s.mutate(ctx, id, func(o *domain.Order) error {
		return o.UpdateLineItemQuantity(itemID, quantity)
	})
}

// RemoveItem deletes one line item from an order.
func (s *Service) RemoveItem(ctx context.Context, id, itemID uuid.UUID) (*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RemoveItem",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	return s.mutate(ctx, id, func(o *domain.Order) error {
		return o.RemoveLineItem(itemID)
	})
}

// Summary reduces the whole data set into cross-order statistics.
func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Summary")
	defer span.End()

	summary, err := s.repo.ComputeAggregateSummary(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return domain.Summary{}, s.mapRepoError(err, "failed to compute summary")
	}
	return summary, nil
}

// BulkUpdateStatus moves every order in one status to another. This is a
// bulk state reset that skips the per-order transition rules; the cache is
// flushed wholesale because any snapshot may now be stale.
func (s *Service) BulkUpdateStatus(ctx context.Context, from, to string) (int64, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.BulkUpdateStatus",
		trace.WithAttributes(attribute.String("from", from), attribute.String("to", to)))
	defer span.End()

	fromStatus, err := domain.ParseStatus(from)
	if err != nil {
		return 0, errorbank.InvalidArgument("unknown source status", errorbank.WithDetail("from", from))
	}
	toStatus, err := domain.ParseStatus(to)
	if err != nil {
		return 0, errorbank.InvalidArgument("unknown target status", errorbank.WithDetail("to", to))
	}

	updated, err := s.repo.BulkUpdateStatus(ctx, fromStatus, toStatus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return updated, s.mapRepoError(err, "failed to bulk update orders")
	}

	s.flushCache(ctx)
	s.publishEvent(ctx, "bulk:"+from, EventOrdersBulkUpdated, OrdersBulkUpdatedEvent{
		From:    from,
		To:      to,
		Updated: updated,
	})
	return updated, nil
}

// FindByProduct returns every order holding at least one line for the product.
func (s *Service) FindByProduct(ctx context.Context, productID string) ([]*domain.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.FindByProduct",
		trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	if productID == "" {
		return nil, errorbank.InvalidArgument("product id is required")
	}

	orders, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to search orders")
	}
	return orders, nil
}

// DeleteAll wipes the entire order data set.
func (s *Service) DeleteAll(ctx context.Context) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.DeleteAll")
	defer span.End()

	if err := s.repo.DeleteAll(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return s.mapRepoError(err, "failed to delete orders")
	}

	s.flushCache(ctx)
	return nil
}

// mutate loads a fresh copy of the aggregate, applies the change, and saves
// it back, refreshing the cached snapshot on success.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, apply func(*domain.Order) error) (*domain.Order, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load order")
	}
	if err := apply(o); err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to save order")
	}

	s.storeSnapshot(ctx, saved)
	return saved, nil
}

func (s *Service) mapRepoError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, repo.ErrVersionConflict):
		return errorbank.Conflict("order was modified concurrently", errorbank.WithCause(err))
	}
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return errorbank.Internal(message, errorbank.WithCause(err))
}

func (s *Service) publishEvent(ctx context.Context, key, eventType string, payload any) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}
	envelope, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	})
	if err != nil {
		s.logger.Error("marshal envelope", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(key), envelope); err != nil {
		s.logger.Error("publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("orders:%s", id)
}

func (s *Service) loadSnapshot(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var snap orderSnapshot
	if err := json.Unmarshal(bytes, &snap); err != nil {
		return nil, err
	}
	return snap.restore()
}

func (s *Service) storeSnapshot(ctx context.Context, o *domain.Order) {
	if s.cache == nil || o == nil {
		return
	}
	bytes, err := json.Marshal(snapshotFromOrder(o))
	if err == nil {
		err = s.cache.Set(ctx, s.cacheKey(o.ID()), bytes, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", o.ID().String()), zap.Error(err))
	}
}

func (s *Service) flushCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("orders cache flush failed", zap.Error(err))
	}
}
