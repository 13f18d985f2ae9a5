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
	"github.com/Additional-Code/strata/internal/entity"
)

// rowORM is the row-projected policy on top of bun. Saves touch only the
// rows that changed: a narrow root update, per-row line item sync, and a
// store-side aggregation to refresh the derived total. There is no version
// check; concurrent saves race and the last write wins.
type rowORM struct {
	ormBase
}

func newRowORM(conns *database.Connections) *rowORM {
	return &rowORM{ormBase: newORMBase(conns)}
}

func (r *rowORM) SupportsOptimisticLocking() bool { return false }

// Save syncs the aggregate onto the current rows. The version column is
// still advanced so readers can observe write progress, but it is never
// used as a write precondition.
func (r *rowORM) Save(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Save", trace.WithAttributes(
		attribute.String("order.id", o.ID().String()),
		attribute.String("strategy", "row-orm"),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.upsertRoot(ctx, tx, o); err != nil {
			return err
		}
		if err := r.syncItems(ctx, tx, o); err != nil {
			return err
		}
		return refreshTotalORM(ctx, tx, o.ID())
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "save failed")
		return nil, err
	}

	return r.FindByID(ctx, o.ID())
}

// upsertRoot issues a narrow single-row update of the root fields, falling
// back to an insert for a first save. The derived total is refreshed
// separately from the item rows.
func (r *rowORM) upsertRoot(ctx context.Context, tx bun.Tx, o *domain.Order) error {
	res, err := tx.NewUpdate().Model((*entity.OrderRow)(nil)).
		Set("customer_id = ?", o.CustomerID()).
		Set("status = ?", o.Status().String()).
		Set("updated_at = ?", o.UpdatedAt()).
		Set("version = ?", o.Version()+1).
		Where("id = ?", o.ID()).
		Exec(ctx)
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

	row := rowFromAggregate(o, o.Version()+1)
	_, err = tx.NewInsert().Model(row).Exec(ctx)
	if err != nil && isDuplicateKey(err) {
		// Lost a race against a concurrent first save; overwrite row-wise.
		_, err = tx.NewUpdate().Model(row).WherePK().Exec(ctx)
	}
	return err
}

// syncItems updates changed item rows in place, inserts new ones, and
// deletes rows no longer present in the aggregate.
func (r *rowORM) syncItems(ctx context.Context, tx bun.Tx, o *domain.Order) error {
	var existing []*entity.LineItemRow
	err := tx.NewSelect().Model(&existing).
		Where("order_id = ?", o.ID()).
		Scan(ctx)
	if err != nil {
		return err
	}

	current := make(map[uuid.UUID]*entity.LineItemRow, len(existing))
	for _, row := range existing {
		current[row.ID] = row
	}

	for _, row := range itemRowsFromAggregate(o) {
		prev, ok := current[row.ID]
		if !ok {
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				return err
			}
			continue
		}
		delete(current, row.ID)
		if prev.Quantity == row.Quantity && prev.Position == row.Position &&
			prev.Subtotal.Equal(row.Subtotal) {
			continue
		}
		if _, err := tx.NewUpdate().Model(row).WherePK().Exec(ctx); err != nil {
			return err
		}
	}

	if len(current) == 0 {
		return nil
	}
	stale := make([]uuid.UUID, 0, len(current))
	for id := range current {
		stale = append(stale, id)
	}
	_, err = tx.NewDelete().Model((*entity.LineItemRow)(nil)).
		Where("id IN (?)", bun.In(stale)).
		Exec(ctx)
	return err
}

// refreshTotalORM recomputes total_amount from the current item rows on the
// store side instead of loading them back into memory.
func refreshTotalORM(ctx context.Context, tx bun.Tx, orderID uuid.UUID) error {
	_, err := tx.NewUpdate().Model((*entity.OrderRow)(nil)).
		Set("total_amount = (SELECT COALESCE(SUM(subtotal), 0) FROM order_line_items WHERE order_id = ?)", orderID).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// ComputeAggregateSummary delegates the reduction to the store: one
// count/sum query plus a group-by over status.
func (r *rowORM) ComputeAggregateSummary(ctx context.Context) (domain.Summary, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ComputeAggregateSummary")
	defer span.End()

	var (
		count int64
		total decimal.Decimal
	)
	err := r.reader.NewSelect().Model((*entity.OrderRow)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(total_amount), 0)").
		Scan(ctx, &count, &total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "aggregate query failed")
		return domain.Summary{}, err
	}

	var grouped []struct {
		Status string `bun:"status"`
		Count  int64  `bun:"cnt"`
	}
	err = r.reader.NewSelect().Model((*entity.OrderRow)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS cnt").
		Group("status").
		Scan(ctx, &grouped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "group query failed")
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		TotalOrders:   count,
		TotalAmount:   total,
		AverageAmount: domain.Average(total, count),
		CountByStatus: make(map[domain.Status]int64, len(grouped)),
	}
	for _, g := range grouped {
		status, err := domain.ParseStatus(g.Status)
		if err != nil {
			return domain.Summary{}, err
		}
		summary.CountByStatus[status] = g.Count
	}
	return summary, nil
}

// BulkUpdateStatus is a single row-level UPDATE; no aggregates are
// materialized and no per-instance transition checks run.
func (r *rowORM) BulkUpdateStatus(ctx context.Context, from, to domain.Status) (int64, error) {
	if err := checkBulkStatuses(from, to); err != nil {
		return 0, err
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.BulkUpdateStatus", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.OrderRow)(nil)).
		Set("status = ?", to.String()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("status = ?", from.String()).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "update failed")
		return 0, err
	}
	return res.RowsAffected()
}
