package order

import (
	"context"
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

// rowSQL mirrors the row-projected policy with hand-written SQL: narrow
// root update, per-row item sync, store-side total refresh, no version
// precondition. Concurrent saves race and the last write wins.
type rowSQL struct {
	sqlBase
}

func newRowSQL(conns *database.Connections) *rowSQL {
	return &rowSQL{sqlBase: newSQLBase(conns)}
}

func (r *rowSQL) SupportsOptimisticLocking() bool { return false }

func (r *rowSQL) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Save", trace.WithAttributes(
		attribute.String("order.id", o.ID().String()),
		attribute.String("strategy", "row-sql"),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := upsertRootSQL(ctx, tx, o); err != nil {
			return err
		}
		if err := syncItemsSQL(ctx, tx, o); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE orders SET total_amount = (SELECT COALESCE(SUM(subtotal), 0) FROM order_line_items WHERE order_id = ?) WHERE id = ?`,
			o.ID(), o.ID())
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "save failed")
		return nil, err
	}

	return r.FindByID(ctx, o.ID())
}

func upsertRootSQL(ctx context.Context, tx bun.Tx, o *domain.Order) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET customer_id = ?, status = ?, updated_at = ?, version = ? WHERE id = ?`,
		o.CustomerID(), o.Status().String(), o.UpdatedAt(), o.Version()+1, o.ID())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, status, total_amount, created_at, updated_at, version) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID(), o.CustomerID(), o.Status().String(), o.TotalAmount(),
		o.CreatedAt(), o.UpdatedAt(), o.Version()+1)
	if err != nil && isDuplicateKey(err) {
		// Lost a race against a concurrent first save; overwrite row-wise.
		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET customer_id = ?, status = ?, updated_at = ?, version = ? WHERE id = ?`,
			o.CustomerID(), o.Status().String(), o.UpdatedAt(), o.Version()+1, o.ID())
	}
	return err
}

// syncItemsSQL diffs the stored item rows against the aggregate: changed
// rows are updated in place, new rows inserted, stale rows deleted.
func syncItemsSQL(ctx context.Context, tx bun.Tx, o *domain.Order) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, quantity, subtotal, position FROM order_line_items WHERE order_id = ?`, o.ID())
	if err != nil {
		return err
	}

	type itemState struct {
		quantity int
		subtotal decimal.Decimal
		position int
	}
	existing := make(map[uuid.UUID]itemState)
	for rows.Next() {
		var (
			id    uuid.UUID
			state itemState
		)
		if err := rows.Scan(&id, &state.quantity, &state.subtotal, &state.position); err != nil {
			rows.Close()
			return err
		}
		existing[id] = state
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for i, item := range o.LineItems() {
		prev, ok := existing[item.ID()]
		if !ok {
			if _, err := tx.ExecContext(ctx, insertItemSQL,
				item.ID(), o.ID(), item.ProductID(), item.ProductName(),
				item.Quantity(), item.UnitPrice(), item.Subtotal(), i); err != nil {
				return err
			}
			continue
		}
		delete(existing, item.ID())
		if prev.quantity == item.Quantity() && prev.position == i &&
			prev.subtotal.Equal(item.Subtotal()) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE order_line_items SET quantity = ?, subtotal = ?, position = ? WHERE id = ?`,
			item.Quantity(), item.Subtotal(), i, item.ID()); err != nil {
			return err
		}
	}

	if len(existing) == 0 {
		return nil
	}
	stale := make([]uuid.UUID, 0, len(existing))
	for id := range existing {
		stale = append(stale, id)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM order_line_items WHERE id IN (?)`, bun.In(stale))
	return err
}

// ComputeAggregateSummary asks the store for the reduction directly.
func (r *rowSQL) ComputeAggregateSummary(ctx context.Context) (domain.Summary, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ComputeAggregateSummary")
	defer span.End()

	var (
		count int64
		total decimal.Decimal
	)
	err := r.reader.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM orders`).Scan(&count, &total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "aggregate query failed")
		return domain.Summary{}, err
	}

	rows, err := r.reader.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "group query failed")
		return domain.Summary{}, err
	}
	defer rows.Close()

	summary := domain.Summary{
		TotalOrders:   count,
		TotalAmount:   total,
		AverageAmount: domain.Average(total, count),
		CountByStatus: make(map[domain.Status]int64),
	}
	for rows.Next() {
		var (
			raw string
			cnt int64
		)
		if err := rows.Scan(&raw, &cnt); err != nil {
			return domain.Summary{}, err
		}
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return domain.Summary{}, err
		}
		summary.CountByStatus[status] = cnt
	}
	return summary, rows.Err()
}

// BulkUpdateStatus is a single UPDATE over the root table.
func (r *rowSQL) BulkUpdateStatus(ctx context.Context, from, to domain.Status) (int64, error) {
	if err := checkBulkStatuses(from, to); err != nil {
		return 0, err
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.BulkUpdateStatus", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	defer span.End()

	res, err := r.writer.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE status = ?`,
		to.String(), time.Now().UTC(), from.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "update failed")
		return 0, err
	}
	return res.RowsAffected()
}
