package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/strata/internal/database"
	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/internal/entity"
)

// ormBase carries the read paths shared by both bun-backed strategies.
// Reads always materialize complete aggregates; only the write paths differ
// between the aggregate-mapped and row-projected policies.
type ormBase struct {
	writer *bun.DB
	reader *bun.DB
}

func newORMBase(conns *database.Connections) ormBase {
	return ormBase{writer: conns.Writer, reader: conns.Reader}
}

func orderedItems(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("position ASC")
}

// FindByID fetches the full aggregate using the read replica when available.
func (b ormBase) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindByID",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	row := new(entity.OrderRow)
	err := b.reader.NewSelect().Model(row).
		Relation("Items", orderedItems).
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	return aggregateFromRow(row)
}

// FindAll loads every aggregate ordered by creation time.
func (b ormBase) FindAll(ctx context.Context) ([]*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindAll")
	defer span.End()

	var rows []*entity.OrderRow
	err := b.reader.NewSelect().Model(&rows).
		Relation("Items", orderedItems).
		OrderExpr("o.created_at ASC, o.id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	return aggregatesFromRows(rows)
}

// FindAllPaged loads a zero-based page of aggregates.
func (b ormBase) FindAllPaged(ctx context.Context, page, size int) ([]*domain.Order, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, err
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindAllPaged",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("size", size)))
	defer span.End()

	var rows []*entity.OrderRow
	err = b.reader.NewSelect().Model(&rows).
		Relation("Items", orderedItems).
		OrderExpr("o.created_at ASC, o.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	return aggregatesFromRows(rows)
}

// FindByProductID returns complete aggregates for every order containing the
// product.
func (b ormBase) FindByProductID(ctx context.Context, productID string) ([]*domain.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindByProductID",
		trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	var ids []uuid.UUID
	err := b.reader.NewSelect().
		Model((*entity.LineItemRow)(nil)).
		ColumnExpr("DISTINCT order_id").
		Where("product_id = ?", productID).
		Scan(ctx, &ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []*entity.OrderRow
	err = b.reader.NewSelect().Model(&rows).
		Relation("Items", orderedItems).
		Where("o.id IN (?)", bun.In(ids)).
		OrderExpr("o.created_at ASC, o.id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "select failed")
		return nil, err
	}
	return aggregatesFromRows(rows)
}

// DeleteAll removes every order and line item in one transaction.
func (b ormBase) DeleteAll(ctx context.Context) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteAll")
	defer span.End()

	err := b.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*entity.LineItemRow)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*entity.OrderRow)(nil)).Where("1 = 1").Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "delete failed")
	}
	return err
}
