package order

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/strata/internal/database"
	domain "github.com/Additional-Code/strata/internal/domain/order"
)

// aggregateSQL mirrors the aggregate-mapped policy with hand-written SQL.
// Save semantics are identical to the bun variant: whole-graph rewrite
// inside one transaction, guarded by a compare-and-swap on version.
type aggregateSQL struct {
	sqlBase
}

func newAggregateSQL(conns *database.Connections) *aggregateSQL {
	return &aggregateSQL{sqlBase: newSQLBase(conns)}
}

func (r *aggregateSQL) SupportsOptimisticLocking() bool { return true }

// Save writes the whole aggregate as a unit. A mismatch between the stored
// version and the aggregate's loaded version aborts the transaction with
// ErrVersionConflict.
func (r *aggregateSQL) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Save", trace.WithAttributes(
		attribute.String("order.id", o.ID().String()),
		attribute.String("strategy", "aggregate-sql"),
	))
	defer span.End()

	next := o.Version() + 1

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var stored int64
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM orders WHERE id = ?`, o.ID()).Scan(&stored)
		switch {
		case errorsIsNoRows(err):
			if o.Version() != 0 {
				return ErrNotFound
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO orders (id, customer_id, status, total_amount, created_at, updated_at, version) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				o.ID(), o.CustomerID(), o.Status().String(), o.TotalAmount(),
				o.CreatedAt(), o.UpdatedAt(), next)
			if err != nil {
				if isDuplicateKey(err) {
					return ErrVersionConflict
				}
				return err
			}
		case err != nil:
			return err
		default:
			res, err := tx.ExecContext(ctx,
				`UPDATE orders SET customer_id = ?, status = ?, total_amount = ?, updated_at = ?, version = ? WHERE id = ? AND version = ?`,
				o.CustomerID(), o.Status().String(), o.TotalAmount(),
				o.UpdatedAt(), next, o.ID(), o.Version())
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return ErrVersionConflict
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM order_line_items WHERE order_id = ?`, o.ID()); err != nil {
				return err
			}
		}
		return insertItems(ctx, tx, o)
	})
	if err != nil {
		if !errors.Is(err, ErrVersionConflict) && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		span.SetStatus(otelcodes.Error, "save failed")
		return nil, err
	}

	return r.FindByID(ctx, o.ID())
}

// ComputeAggregateSummary materializes every aggregate and reduces in
// memory; the store is only asked for raw rows.
func (r *aggregateSQL) ComputeAggregateSummary(ctx context.Context) (domain.Summary, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ComputeAggregateSummary")
	defer span.End()

	orders, err := r.FindAll(ctx)
	if err != nil {
		span.SetStatus(otelcodes.Error, "load failed")
		return domain.Summary{}, err
	}
	return domain.Summarize(orders), nil
}

// BulkUpdateStatus is load-modify-save per matching aggregate, same as the
// bun aggregate strategy. Per-instance transition checks are bypassed.
func (r *aggregateSQL) BulkUpdateStatus(ctx context.Context, from, to domain.Status) (int64, error) {
	if err := checkBulkStatuses(from, to); err != nil {
		return 0, err
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.BulkUpdateStatus", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	defer span.End()

	orders, err := r.FindAll(ctx)
	if err != nil {
		span.SetStatus(otelcodes.Error, "load failed")
		return 0, err
	}

	var updated int64
	for _, o := range orders {
		if o.Status() != from {
			continue
		}
		moved := domain.Reconstitute(o.ID(), o.CustomerID(), to, o.TotalAmount(),
			o.LineItems(), o.CreatedAt(), time.Now().UTC(), o.Version())
		if _, err := r.Save(ctx, moved); err != nil {
			span.SetStatus(otelcodes.Error, "save failed")
			return updated, err
		}
		updated++
	}
	return updated, nil
}
