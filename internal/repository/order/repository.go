package order

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/pkg/errorbank"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/strata/repository/order")

// ErrNotFound is returned when an order is missing from the store.
var ErrNotFound = errors.New("order not found")

// ErrVersionConflict is returned when a save carries a version that no
// longer matches the stored row. Only strategies reporting
// SupportsOptimisticLocking raise it; the others let the last write win.
var ErrVersionConflict = errors.New("order version conflict")

// Repository is the single persistence contract for the order aggregate.
// Four strategies implement it, selected by configuration; callers depend on
// nothing but this interface.
type Repository interface {
	// Save persists the root and the complete line item set as a unit and
	// returns the store's canonical view of the persisted order. With
	// optimistic locking enabled a stale version fails with
	// ErrVersionConflict and leaves no partial write behind.
	Save(ctx context.Context, o *domain.Order) (*domain.Order, error)

	// FindByID loads the full aggregate or returns ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// FindAll loads every aggregate ordered by creation time ascending.
	FindAll(ctx context.Context) ([]*domain.Order, error)

	// FindAllPaged loads one zero-based page of aggregates ordered by
	// creation time ascending.
	FindAllPaged(ctx context.Context, page, size int) ([]*domain.Order, error)

	// ComputeAggregateSummary reduces the entire data set into a Summary.
	// Aggregate-first strategies reduce in memory, row-first strategies
	// delegate to the store; both produce identical numbers.
	ComputeAggregateSummary(ctx context.Context) (domain.Summary, error)

	// BulkUpdateStatus moves every order in status from to status to and
	// returns the number of orders changed. This is a deliberate bulk state
	// reset: it bypasses the per-instance submit/confirm transition checks.
	BulkUpdateStatus(ctx context.Context, from, to domain.Status) (int64, error)

	// FindByProductID returns the complete aggregate of every order holding
	// at least one line item for the product.
	FindByProductID(ctx context.Context, productID string) ([]*domain.Order, error)

	// DeleteAll removes every order and line item.
	DeleteAll(ctx context.Context) error

	// SupportsOptimisticLocking reports whether Save enforces the version
	// check. Callers that need conflict detection must assert this flag.
	SupportsOptimisticLocking() bool
}

// pageBounds validates pagination arguments and converts them into
// limit/offset form.
func pageBounds(page, size int) (limit, offset int, err error) {
	if page < 0 {
		return 0, 0, errorbank.InvalidArgument("page must not be negative",
			errorbank.WithDetail("page", page))
	}
	if size <= 0 {
		return 0, 0, errorbank.InvalidArgument("page size must be greater than 0",
			errorbank.WithDetail("size", size))
	}
	return size, page * size, nil
}

// checkBulkStatuses validates the bulk update endpoints.
func checkBulkStatuses(from, to domain.Status) error {
	if !from.Valid() {
		return errorbank.InvalidArgument("unknown source status",
			errorbank.WithDetail("from", from.String()))
	}
	if !to.Valid() {
		return errorbank.InvalidArgument("unknown target status",
			errorbank.WithDetail("to", to.String()))
	}
	return nil
}

// isDuplicateKey sniffs driver-specific unique violations so concurrent
// first inserts of the same identity surface as a version conflict rather
// than a raw driver error.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
