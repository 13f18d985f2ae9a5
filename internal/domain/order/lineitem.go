package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/strata/pkg/errorbank"
)

// LineItem is an immutable priced entry within an order. It is created and
// replaced only through the owning Order; a quantity change produces a new
// LineItem carrying the same identity with a recomputed subtotal.
type LineItem struct {
	id          uuid.UUID
	productID   string
	productName string
	quantity    int
	unitPrice   decimal.Decimal
	subtotal    decimal.Decimal
}

// NewLineItem creates a line item with a fresh identity and
// subtotal = unitPrice × quantity.
func NewLineItem(productID, productName string, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, errorbank.InvalidArgument("quantity must be greater than 0",
			errorbank.WithDetail("quantity", quantity))
	}
	if unitPrice.Sign() <= 0 {
		return LineItem{}, errorbank.InvalidArgument("unit price must be positive",
			errorbank.WithDetail("unit_price", unitPrice.String()))
	}
	return LineItem{
		id:          uuid.New(),
		productID:   productID,
		productName: productName,
		quantity:    quantity,
		unitPrice:   unitPrice,
		subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// ReconstituteLineItem rebuilds a line item from stored rows. It trusts the
// persisted state and does not recompute the subtotal.
func ReconstituteLineItem(id uuid.UUID, productID, productName string, quantity int, unitPrice, subtotal decimal.Decimal) LineItem {
	return LineItem{
		id:          id,
		productID:   productID,
		productName: productName,
		quantity:    quantity,
		unitPrice:   unitPrice,
		subtotal:    subtotal,
	}
}

// withQuantity returns a replacement line item sharing this item's identity.
func (li LineItem) withQuantity(quantity int) LineItem {
	return LineItem{
		id:          li.id,
		productID:   li.productID,
		productName: li.productName,
		quantity:    quantity,
		unitPrice:   li.unitPrice,
		subtotal:    li.unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// ID returns the line item identity.
func (li LineItem) ID() uuid.UUID { return li.id }

// ProductID returns the referenced product identifier.
func (li LineItem) ProductID() string { return li.productID }

// ProductName returns the display name captured at creation time.
func (li LineItem) ProductName() string { return li.productName }

// Quantity returns the ordered quantity.
func (li LineItem) Quantity() int { return li.quantity }

// UnitPrice returns the per-unit price.
func (li LineItem) UnitPrice() decimal.Decimal { return li.unitPrice }

// Subtotal returns unitPrice × quantity.
func (li LineItem) Subtotal() decimal.Decimal { return li.subtotal }
