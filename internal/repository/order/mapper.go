package order

import (
	"fmt"

	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/internal/entity"
)

func rowFromAggregate(o *domain.Order, version int64) *entity.OrderRow {
	return &entity.OrderRow{
		ID:          o.ID(),
		CustomerID:  o.CustomerID(),
		Status:      o.Status().String(),
		TotalAmount: o.TotalAmount(),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
		Version:     version,
	}
}

func itemRowsFromAggregate(o *domain.Order) []*entity.LineItemRow {
	items := o.LineItems()
	rows := make([]*entity.LineItemRow, 0, len(items))
	for i, item := range items {
		rows = append(rows, &entity.LineItemRow{
			ID:          item.ID(),
			OrderID:     o.ID(),
			ProductID:   item.ProductID(),
			ProductName: item.ProductName(),
			Quantity:    item.Quantity(),
			UnitPrice:   item.UnitPrice(),
			Subtotal:    item.Subtotal(),
			Position:    i,
		})
	}
	return rows
}

func itemsFromRows(rows []*entity.LineItemRow) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.ReconstituteLineItem(
			row.ID, row.ProductID, row.ProductName, row.Quantity, row.UnitPrice, row.Subtotal))
	}
	return items
}

func aggregateFromRow(row *entity.OrderRow) (*domain.Order, error) {
	status, err := domain.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("reconstitute order %s: %w", row.ID, err)
	}
	return domain.Reconstitute(row.ID, row.CustomerID, status, row.TotalAmount,
		itemsFromRows(row.Items), row.CreatedAt, row.UpdatedAt, row.Version), nil
}

func aggregatesFromRows(rows []*entity.OrderRow) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := aggregateFromRow(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
