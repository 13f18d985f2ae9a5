package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/strata/pkg/errorbank"
)

// Order is the aggregate root owning an ordered collection of line items.
// The total amount is derived from the items and recomputed on every
// mutation; it is cached in storage but never treated as ground truth.
// Mutations are in-memory only — persistence is an explicit, separate step
// through a repository.
type Order struct {
	id          uuid.UUID
	customerID  string
	status      Status
	totalAmount decimal.Decimal
	items       []LineItem
	createdAt   time.Time
	updatedAt   time.Time
	version     int64
}

// New creates a DRAFT order with no items and version 0.
func New(customerID string) *Order {
	now := time.Now().UTC()
	return &Order{
		id:          uuid.New(),
		customerID:  customerID,
		status:      StatusDraft,
		totalAmount: decimal.Zero,
		createdAt:   now,
		updatedAt:   now,
		version:     0,
	}
}

// Reconstitute rebuilds an order from stored state. It is intended for the
// persistence layer only and accepts any already-valid status/items/version
// combination without re-deriving cross-field state.
func Reconstitute(id uuid.UUID, customerID string, status Status, totalAmount decimal.Decimal,
	items []LineItem, createdAt, updatedAt time.Time, version int64) *Order {
	return &Order{
		id:          id,
		customerID:  customerID,
		status:      status,
		totalAmount: totalAmount,
		items:       append([]LineItem(nil), items...),
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		version:     version,
	}
}

// AddLineItem appends a new line item and recomputes the total. There is no
// status restriction on adding items.
func (o *Order) AddLineItem(productID, productName string, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	item, err := NewLineItem(productID, productName, quantity, unitPrice)
	if err != nil {
		return LineItem{}, err
	}
	o.items = append(o.items, item)
	o.recalculateTotal()
	o.touch()
	return item, nil
}

// Submit transitions DRAFT → SUBMITTED. An order with no line items cannot
// be submitted.
func (o *Order) Submit() error {
	if o.status != StatusDraft {
		return errorbank.IllegalState("only DRAFT orders can be submitted",
			errorbank.WithDetail("status", o.status.String()))
	}
	if len(o.items) == 0 {
		return errorbank.IllegalState("cannot submit an order with no line items")
	}
	o.status = StatusSubmitted
	o.touch()
	return nil
}

// Confirm transitions SUBMITTED → CONFIRMED.
func (o *Order) Confirm() error {
	if o.status != StatusSubmitted {
		return errorbank.IllegalState("only SUBMITTED orders can be confirmed",
			errorbank.WithDetail("status", o.status.String()))
	}
	o.status = StatusConfirmed
	o.touch()
	return nil
}

// UpdateLineItemQuantity replaces the identified line item with one carrying
// the new quantity and a recomputed subtotal, then recomputes the total.
func (o *Order) UpdateLineItemQuantity(lineItemID uuid.UUID, newQuantity int) error {
	if newQuantity <= 0 {
		return errorbank.InvalidArgument("quantity must be greater than 0",
			errorbank.WithDetail("quantity", newQuantity))
	}
	for i, item := range o.items {
		if item.ID() == lineItemID {
			o.items[i] = item.withQuantity(newQuantity)
			o.recalculateTotal()
			o.touch()
			return nil
		}
	}
	return errorbank.NotFound("line item not found",
		errorbank.WithDetail("line_item_id", lineItemID.String()))
}

// RemoveLineItem drops the identified line item and recomputes the total.
func (o *Order) RemoveLineItem(lineItemID uuid.UUID) error {
	for i, item := range o.items {
		if item.ID() == lineItemID {
			o.items = append(o.items[:i], o.items[i+1:]...)
			o.recalculateTotal()
			o.touch()
			return nil
		}
	}
	return errorbank.NotFound("line item not found",
		errorbank.WithDetail("line_item_id", lineItemID.String()))
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.Subtotal())
	}
	o.totalAmount = total
}

func (o *Order) touch() {
	o.updatedAt = time.Now().UTC()
}

// ID returns the immutable order identity.
func (o *Order) ID() uuid.UUID { return o.id }

// CustomerID returns the owning customer identifier.
func (o *Order) CustomerID() string { return o.customerID }

// Status returns the current lifecycle state.
func (o *Order) Status() Status { return o.status }

// TotalAmount returns the sum of all line item subtotals.
func (o *Order) TotalAmount() decimal.Decimal { return o.totalAmount }

// LineItems returns a copy of the item collection in insertion order. The
// aggregate retains exclusive ownership of the underlying slice.
func (o *Order) LineItems() []LineItem {
	return append([]LineItem(nil), o.items...)
}

// LineItemCount returns the number of items without copying.
func (o *Order) LineItemCount() int { return len(o.items) }

// CreatedAt returns the creation timestamp.
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (o *Order) UpdatedAt() time.Time { return o.updatedAt }

// Version returns the optimistic concurrency counter. It reflects the state
// the aggregate was loaded at; a successful save stores version+1.
func (o *Order) Version() int64 { return o.version }
