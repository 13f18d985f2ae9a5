package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/Additional-Code/strata/internal/domain/order"
)

// orderSnapshot is the cacheable flat form of an aggregate. It carries
// exactly the state needed to rebuild the order without touching the store.
type orderSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []itemSnapshot  `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int64           `json:"version"`
}

type itemSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func snapshotFromOrder(o *domain.Order) orderSnapshot {
	items := o.LineItems()
	snap := orderSnapshot{
		ID:          o.ID(),
		CustomerID:  o.CustomerID(),
		Status:      o.Status().String(),
		TotalAmount: o.TotalAmount(),
		Items:       make([]itemSnapshot, 0, len(items)),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
		Version:     o.Version(),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, itemSnapshot{
			ID:          item.ID(),
			ProductID:   item.ProductID(),
			ProductName: item.ProductName(),
			Quantity:    item.Quantity(),
			UnitPrice:   item.UnitPrice(),
			Subtotal:    item.Subtotal(),
		})
	}
	return snap
}

func (snap orderSnapshot) restore() (*domain.Order, error) {
	status, err := domain.ParseStatus(snap.Status)
	if err != nil {
		return nil, err
	}
	items := make([]domain.LineItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, domain.ReconstituteLineItem(item.ID, item.ProductID,
			item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal))
	}
	return domain.Reconstitute(snap.ID, snap.CustomerID, status, snap.TotalAmount,
		items, snap.CreatedAt, snap.UpdatedAt, snap.Version), nil
}
