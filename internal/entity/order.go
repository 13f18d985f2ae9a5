package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderRow is the relational shape of an order aggregate root.
type OrderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID          uuid.UUID       `bun:"id,pk,type:varchar(36)"`
	CustomerID  string          `bun:"customer_id,notnull"`
	Status      string          `bun:"status,notnull"`
	TotalAmount decimal.Decimal `bun:"total_amount,notnull"`
	CreatedAt   time.Time       `bun:"created_at,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull"`
	Version     int64           `bun:"version,notnull"`

	Items []*LineItemRow `bun:"rel:has-many,join:id=order_id"`
}
