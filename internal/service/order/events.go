package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Event types published on the order lifecycle topic.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrdersBulkUpdated  = "orders.bulk_updated"
)

// Envelope wraps every published event so consumers can dispatch on type
// before decoding the payload.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderCreatedEvent is emitted when a new order is persisted.
type OrderCreatedEvent struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderStatusChangedEvent is emitted on a per-order lifecycle transition.
type OrderStatusChangedEvent struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// OrdersBulkUpdatedEvent is emitted after a bulk status reset.
type OrdersBulkUpdatedEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Updated int64  `json:"updated"`
}
