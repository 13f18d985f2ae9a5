package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/strata/internal/database"
	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/internal/entity"
)

// aggregateORM is the aggregate-mapped policy on top of bun. Every save
// rewrites the root and fully replaces the line item set inside one
// transaction, guarded by a compare-and-swap on the version column. Every
// read reconstructs the full graph.
type aggregateORM struct {
	ormBase
}

func newAggregateORM(conns *database.Connections) *aggregateORM {
	return &aggregateORM{ormBase: newORMBase(conns)}
}

func (r *aggregateORM) SupportsOptimisticLocking() bool { return true }

// Save writes the whole aggregate as a unit. The stored version must equal
// the aggregate's loaded version or the write is rejected with
// ErrVersionConflict and nothing is changed.
func (r *aggregateORM) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Save", trace.WithAttributes(
		attribute.String("order.id", o.ID().String()),
		attribute.String("strategy", "aggregate-orm"),
	))
	defer span.End()

	next := o.Version() + 1
	row := rowFromAggregate(o, next)
	items := itemRowsFromAggregate(o)

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var stored int64
		err := tx.NewSelect().Model((*entity.OrderRow)(nil)).
			Column("version").
			Where("id = ?", o.ID()).
			Scan(ctx, &stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if o.Version() != 0 {
				return ErrNotFound
			}
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				if isDuplicateKey(err) {
					return ErrVersionConflict
				}
				return err
			}
		case err != nil:
			return err
		default:
			res, err := tx.NewUpdate().Model(row).
				WherePK().
				Where("version = ?", o.Version()).
				Exec(ctx)
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
			if _, err := tx.NewDelete().Model((*entity.LineItemRow)(nil)).
				Where("order_id = ?", o.ID()).
				Exec(ctx); err != nil {
				return err
			}
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
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
// memory, the aggregate-first way.
func (r *aggregateORM) ComputeAggregateSummary(ctx context.Context) (domain.Summary, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ComputeAggregateSummary")
	defer span.End()

	orders, err := r.FindAll(ctx)
	if err != nil {
		span.SetStatus(otelcodes.Error, "load failed")
		return domain.Summary{}, err
	}
	return domain.Summarize(orders), nil
}

// BulkUpdateStatus loads every matching aggregate and saves it back with the
// new status, one full-graph save per order. The per-instance transition
// checks are intentionally bypassed.
func (r *aggregateORM) BulkUpdateStatus(ctx context.Context, from, to domain.Status) (int64, error) {
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
