package dto

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/Additional-Code/strata/internal/domain/order"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          string             `json:"id"`
	CustomerID  string             `json:"customer_id"`
	Status      string             `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Items       []LineItemResponse `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Version     int64              `json:"version"`
}

// LineItemResponse represents one line of an order.
type LineItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SummaryResponse carries the cross-order statistics.
type SummaryResponse struct {
	TotalOrders   int64            `json:"total_orders"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	AverageAmount decimal.Decimal  `json:"average_amount"`
	CountByStatus map[string]int64 `json:"count_by_status"`
}

// BulkUpdateResponse reports how many orders a bulk transition touched.
type BulkUpdateResponse struct {
	Updated int64 `json:"updated"`
}

// CreateOrderRequest opens a new draft order.
type CreateOrderRequest struct {
	CustomerID string              `json:"customer_id"`
	Items      []CreateItemRequest `json:"items"`
}

// CreateItemRequest adds one line to an order.
type CreateItemRequest struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// QuantityRequest changes the quantity of an existing line item.
type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

// BulkStatusRequest moves every order from one status to another.
type BulkStatusRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FromOrder maps a domain order onto the transport shape.
func FromOrder(o *domain.Order) OrderResponse {
	items := o.LineItems()
	resp := OrderResponse{
		ID:          o.ID().String(),
		CustomerID:  o.CustomerID(),
		Status:      o.Status().String(),
		TotalAmount: o.TotalAmount(),
		Items:       make([]LineItemResponse, 0, len(items)),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
		Version:     o.Version(),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, LineItemResponse{
			ID:          item.ID().String(),
			ProductID:   item.ProductID(),
			ProductName: item.ProductName(),
			Quantity:    item.Quantity(),
			UnitPrice:   item.UnitPrice(),
			Subtotal:    item.Subtotal(),
		})
	}
	return resp
}

// FromOrders maps a list of domain orders.
func FromOrders(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

// FromSummary maps the domain summary onto the transport shape.
func FromSummary(s domain.Summary) SummaryResponse {
	resp := SummaryResponse{
		TotalOrders:   s.TotalOrders,
		TotalAmount:   s.TotalAmount,
		AverageAmount: s.AverageAmount,
		CountByStatus: make(map[string]int64, len(s.CountByStatus)),
	}
	for status, count := range s.CountByStatus {
		resp.CountByStatus[status.String()] = count
	}
	return resp
}
