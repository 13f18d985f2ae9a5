package seeder

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	domain "github.com/Additional-Code/strata/internal/domain/order"
	repo "github.com/Additional-Code/strata/internal/repository/order"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups. Orders go through
// the domain constructors and the configured repository strategy, so seeded
// data always satisfies the aggregate invariants.
type Seeder struct {
	repo   repo.Repository
	logger *zap.Logger
}

// New constructs a Seeder backed by the configured repository.
func New(r repo.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{repo: r, logger: logger}
}

type sampleItem struct {
	productID string
	name      string
	quantity  int
	unitPrice string
}

type sampleOrder struct {
	customerID string
	submit     bool
	confirm    bool
	items      []sampleItem
}

// Orders seeds example orders when the store is empty.
func (s *Seeder) Orders(ctx context.Context) error {
	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.logger.Info("orders already present; skipping seed", zap.Int("count", len(existing)))
		return nil
	}

	samples := []sampleOrder{
		{
			customerID: "cust-alpha",
			items: []sampleItem{
				{"prod-keyboard", "Mechanical Keyboard", 1, "120.00"},
				{"prod-mouse", "Wireless Mouse", 2, "45.50"},
			},
		},
		{
			customerID: "cust-beta",
			submit:     true,
			items: []sampleItem{
				{"prod-monitor", "27in Monitor", 2, "310.00"},
			},
		},
		{
			customerID: "cust-gamma",
			submit:     true,
			confirm:    true,
			items: []sampleItem{
				{"prod-keyboard", "Mechanical Keyboard", 1, "120.00"},
				{"prod-dock", "USB-C Dock", 1, "89.90"},
			},
		},
	}

	for _, sample := range samples {
		o := domain.New(sample.customerID)
		for _, item := range sample.items {
			price, err := decimal.NewFromString(item.unitPrice)
			if err != nil {
				return err
			}
			if _, err := o.AddLineItem(item.productID, item.name, item.quantity, price); err != nil {
				return err
			}
		}
		if sample.submit {
			if err := o.Submit(); err != nil {
				return err
			}
		}
		if sample.confirm {
			if err := o.Confirm(); err != nil {
				return err
			}
		}
		if _, err := s.repo.Save(ctx, o); err != nil {
			return err
		}
	}

	s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	return nil
}
