package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/strata/internal/database"
	domain "github.com/Additional-Code/strata/internal/domain/order"
)

const (
	selectOrderSQL = `SELECT id, customer_id, status, total_amount, created_at, updated_at, version FROM orders`
	selectItemsSQL = `SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal FROM order_line_items`
	insertItemSQL  = `INSERT INTO order_line_items (id, order_id, product_id, product_name, quantity, unit_price, subtotal, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

// sqlBase carries the hand-written read paths shared by both raw-SQL
// strategies. Queries go through the bun connection so placeholders work
// across the supported dialects, but no ORM machinery is involved.
type sqlBase struct {
	writer *bun.DB
	reader *bun.DB
}

func newSQLBase(conns *database.Connections) sqlBase {
	return sqlBase{writer: conns.Writer, reader: conns.Reader}
}

type orderHeader struct {
	id         uuid.UUID
	customerID string
	status     string
	total      decimal.Decimal
	createdAt  time.Time
	updatedAt  time.Time
	version    int64
}

func scanHeaders(rows *sql.Rows) ([]orderHeader, error) {
	defer rows.Close()
	var headers []orderHeader
	for rows.Next() {
		var h orderHeader
		if err := rows.Scan(&h.id, &h.customerID, &h.status, &h.total,
			&h.createdAt, &h.updatedAt, &h.version); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

// loadItems fetches the line items for the given orders in one query,
// grouped by owning order and kept in display order.
func (b sqlBase) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.LineItem, error) {
	grouped := make(map[uuid.UUID][]domain.LineItem, len(ids))
	if len(ids) == 0 {
		return grouped, nil
	}

	rows, err := b.reader.QueryContext(ctx,
		selectItemsSQL+` WHERE order_id IN (?) ORDER BY order_id, position ASC`, bun.In(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, orderID         uuid.UUID
			productID, name     string
			quantity            int
			unitPrice, subtotal decimal.Decimal
		)
		if err := rows.Scan(&id, &orderID, &productID, &name, &quantity, &unitPrice, &subtotal); err != nil {
			return nil, err
		}
		grouped[orderID] = append(grouped[orderID],
			domain.ReconstituteLineItem(id, productID, name, quantity, unitPrice, subtotal))
	}
	return grouped, rows.Err()
}

func (b sqlBase) assemble(ctx context.Context, headers []orderHeader) ([]*domain.Order, error) {
	ids := make([]uuid.UUID, 0, len(headers))
	for _, h := range headers {
		ids = append(ids, h.id)
	}
	items, err := b.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(headers))
	for _, h := range headers {
		status, err := domain.ParseStatus(h.status)
		if err != nil {
			return nil, err
		}
		orders = append(orders, domain.Reconstitute(h.id, h.customerID, status, h.total,
			items[h.id], h.createdAt, h.updatedAt, h.version))
	}
	return orders, nil
}

// FindByID loads the root row and its items with two hand-written queries.
func (b sqlBase) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindByID",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	rows, err := b.reader.QueryContext(ctx, selectOrderSQL+` WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	headers, err := scanHeaders(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "scan failed")
		return nil, err
	}
	if len(headers) == 0 {
		span.SetStatus(otelcodes.Error, "not found")
		return nil, ErrNotFound
	}

	orders, err := b.assemble(ctx, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "assemble failed")
		return nil, err
	}
	return orders[0], nil
}

// FindAll loads every aggregate ordered by creation time.
func (b sqlBase) FindAll(ctx context.Context) ([]*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindAll")
	defer span.End()

	return b.queryOrders(ctx, span, selectOrderSQL+` ORDER BY created_at ASC, id ASC`)
}

// FindAllPaged loads one zero-based page.
func (b sqlBase) FindAllPaged(ctx context.Context, page, size int) ([]*domain.Order, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindAllPaged",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("size", size)))
	defer span.End()

	return b.queryOrders(ctx, span,
		selectOrderSQL+` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, limit, offset)
}

// FindByProductID finds the owning order ids first, then loads each
// aggregate in full.
func (b sqlBase) FindByProductID(ctx context.Context, productID string) ([]*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindByProductID",
		trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	idRows, err := b.reader.QueryContext(ctx,
		`SELECT DISTINCT order_id FROM order_line_items WHERE product_id = ?`, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	var ids []uuid.UUID
	for idRows.Next() {
		var id uuid.UUID
		if err := idRows.Scan(&id); err != nil {
			idRows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := idRows.Err(); err != nil {
		idRows.Close()
		return nil, err
	}
	idRows.Close()

	if len(ids) == 0 {
		return nil, nil
	}
	return b.queryOrders(ctx, span,
		selectOrderSQL+` WHERE id IN (?) ORDER BY created_at ASC, id ASC`, bun.In(ids))
}

// DeleteAll empties both tables transactionally, children first.
func (b sqlBase) DeleteAll(ctx context.Context) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteAll")
	defer span.End()

	err := b.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_line_items`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM orders`)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "delete failed")
	}
	return err
}

func (b sqlBase) queryOrders(ctx context.Context, span trace.Span, query string, args ...any) ([]*domain.Order, error) {
	rows, err := b.reader.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	headers, err := scanHeaders(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "scan failed")
		return nil, err
	}
	orders, err := b.assemble(ctx, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "assemble failed")
		return nil, err
	}
	return orders, nil
}

func insertItems(ctx context.Context, tx bun.Tx, o *domain.Order) error {
	for i, item := range o.LineItems() {
		if _, err := tx.ExecContext(ctx, insertItemSQL,
			item.ID(), o.ID(), item.ProductID(), item.ProductName(),
			item.Quantity(), item.UnitPrice(), item.Subtotal(), i); err != nil {
			return err
		}
	}
	return nil
}

func errorsIsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
