package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// LineItemRow is the relational shape of a line item, keyed by its owning
// order. Rows only ever change as part of an order save.
type LineItemRow struct {
	bun.BaseModel `bun:"table:order_line_items,alias:li"`

	ID          uuid.UUID       `bun:"id,pk,type:varchar(36)"`
	OrderID     uuid.UUID       `bun:"order_id,notnull,type:varchar(36)"`
	ProductID   string          `bun:"product_id,notnull"`
	ProductName string          `bun:"product_name,notnull"`
	Quantity    int             `bun:"quantity,notnull"`
	UnitPrice   decimal.Decimal `bun:"unit_price,notnull"`
	Subtotal    decimal.Decimal `bun:"subtotal,notnull"`
	Position    int             `bun:"position,notnull"`
}
