package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/strata/internal/database"
	domain "github.com/Additional-Code/strata/internal/domain/order"
)

const testSchema = `
CREATE TABLE orders (
	id           VARCHAR(36) PRIMARY KEY,
	customer_id  VARCHAR(64)  NOT NULL,
	status       VARCHAR(16)  NOT NULL,
	total_amount NUMERIC      NOT NULL,
	created_at   TIMESTAMP    NOT NULL,
	updated_at   TIMESTAMP    NOT NULL,
	version      BIGINT       NOT NULL
);
CREATE TABLE order_line_items (
	id           VARCHAR(36) PRIMARY KEY,
	order_id     VARCHAR(36)  NOT NULL REFERENCES orders (id),
	product_id   VARCHAR(64)  NOT NULL,
	product_name VARCHAR(255) NOT NULL,
	quantity     INTEGER      NOT NULL,
	unit_price   NUMERIC      NOT NULL,
	subtotal     NUMERIC      NOT NULL,
	position     INTEGER      NOT NULL
);
CREATE INDEX idx_line_items_order ON order_line_items (order_id);
CREATE INDEX idx_line_items_product ON order_line_items (product_id);
`

type strategyCase struct {
	name    string
	build   func(*database.Connections) Repository
	locking bool
}

func strategies() []strategyCase {
	return []strategyCase{
		{"aggregate-orm", func(c *database.Connections) Repository { return newAggregateORM(c) }, true},
		{"aggregate-sql", func(c *database.Connections) Repository { return newAggregateSQL(c) }, true},
		{"row-orm", func(c *database.Connections) Repository { return newRowORM(c) }, false},
		{"row-sql", func(c *database.Connections) Repository { return newRowSQL(c) }, false},
	}
}

func newTestConns(t *testing.T) *database.Connections {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// A second connection would see a different empty in-memory database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return &database.Connections{Writer: db, Reader: db}
}

func buildOrder(t *testing.T, customerID string, prices ...string) *domain.Order {
	t.Helper()
	o := domain.New(customerID)
	for i, p := range prices {
		_, err := o.AddLineItem("prod-"+string(rune('a'+i)), "Product "+string(rune('A'+i)),
			1, decimal.RequireFromString(p))
		require.NoError(t, err)
	}
	return o
}

// withCreatedAt rebuilds the order with an explicit creation time so listing
// order is deterministic.
func withCreatedAt(o *domain.Order, at time.Time) *domain.Order {
	return domain.Reconstitute(o.ID(), o.CustomerID(), o.Status(), o.TotalAmount(),
		o.LineItems(), at, at, o.Version())
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got),
		"want %s, got %s", want, got)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			o := domain.New("cust-1")
			_, err := o.AddLineItem("prod-1", "Keyboard", 2, decimal.RequireFromString("100"))
			require.NoError(t, err)
			_, err = o.AddLineItem("prod-2", "Mouse", 4, decimal.RequireFromString("50"))
			require.NoError(t, err)
			require.EqualValues(t, 0, o.Version())

			saved, err := repo.Save(ctx, o)
			require.NoError(t, err)
			require.Equal(t, o.ID(), saved.ID())
			require.Equal(t, "cust-1", saved.CustomerID())
			require.Equal(t, domain.StatusDraft, saved.Status())
			require.EqualValues(t, 1, saved.Version())
			requireDecimal(t, "400", saved.TotalAmount())

			items := saved.LineItems()
			require.Len(t, items, 2)
			require.Equal(t, "prod-1", items[0].ProductID())
			require.Equal(t, "prod-2", items[1].ProductID())
			require.Equal(t, 2, items[0].Quantity())
			requireDecimal(t, "200", items[0].Subtotal())

			loaded, err := repo.FindByID(ctx, o.ID())
			require.NoError(t, err)
			require.Equal(t, saved.ID(), loaded.ID())
			requireDecimal(t, "400", loaded.TotalAmount())
			require.Len(t, loaded.LineItems(), 2)
		})
	}
}

func TestSaveAdvancesVersion(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			saved, err := repo.Save(ctx, buildOrder(t, "cust-1", "100"))
			require.NoError(t, err)
			require.EqualValues(t, 1, saved.Version())

			item := saved.LineItems()[0]
			require.NoError(t, saved.UpdateLineItemQuantity(item.ID(), 3))

			saved, err = repo.Save(ctx, saved)
			require.NoError(t, err)
			require.EqualValues(t, 2, saved.Version())
			requireDecimal(t, "300", saved.TotalAmount())
			require.Equal(t, item.ID(), saved.LineItems()[0].ID())
			require.Equal(t, 3, saved.LineItems()[0].Quantity())
		})
	}
}

func TestFindByIDMissing(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))

			_, err := repo.FindByID(context.Background(), domain.New("cust-x").ID())
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFindAllPaged(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			var ids []string
			for i := 0; i < 5; i++ {
				o := withCreatedAt(buildOrder(t, "cust-1", "100"), base.Add(time.Duration(i)*time.Minute))
				_, err := repo.Save(ctx, o)
				require.NoError(t, err)
				ids = append(ids, o.ID().String())
			}

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 5)
			for i, o := range all {
				require.Equal(t, ids[i], o.ID().String())
			}

			page, err := repo.FindAllPaged(ctx, 1, 2)
			require.NoError(t, err)
			require.Len(t, page, 2)
			require.Equal(t, ids[2], page[0].ID().String())
			require.Equal(t, ids[3], page[1].ID().String())

			last, err := repo.FindAllPaged(ctx, 2, 2)
			require.NoError(t, err)
			require.Len(t, last, 1)

			_, err = repo.FindAllPaged(ctx, -1, 2)
			require.Error(t, err)
			_, err = repo.FindAllPaged(ctx, 0, 0)
			require.Error(t, err)
		})
	}
}

func TestComputeAggregateSummary(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			for _, price := range []string{"100", "200", "300"} {
				o := buildOrder(t, "cust-1", price)
				require.NoError(t, o.Submit())
				require.NoError(t, o.Confirm())
				_, err := repo.Save(ctx, o)
				require.NoError(t, err)
			}

			summary, err := repo.ComputeAggregateSummary(ctx)
			require.NoError(t, err)
			require.EqualValues(t, 3, summary.TotalOrders)
			requireDecimal(t, "600", summary.TotalAmount)
			requireDecimal(t, "200", summary.AverageAmount)
			require.Equal(t, map[domain.Status]int64{domain.StatusConfirmed: 3}, summary.CountByStatus)
		})
	}
}

func TestComputeAggregateSummaryEmpty(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))

			summary, err := repo.ComputeAggregateSummary(context.Background())
			require.NoError(t, err)
			require.EqualValues(t, 0, summary.TotalOrders)
			requireDecimal(t, "0", summary.TotalAmount)
			requireDecimal(t, "0", summary.AverageAmount)
			require.Empty(t, summary.CountByStatus)
		})
	}
}

func TestBulkUpdateStatus(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			drafts := []*domain.Order{
				buildOrder(t, "cust-1", "100"),
				buildOrder(t, "cust-2", "200"),
			}
			for _, o := range drafts {
				_, err := repo.Save(ctx, o)
				require.NoError(t, err)
			}
			submitted := buildOrder(t, "cust-3", "300")
			require.NoError(t, submitted.Submit())
			_, err := repo.Save(ctx, submitted)
			require.NoError(t, err)

			count, err := repo.BulkUpdateStatus(ctx, domain.StatusDraft, domain.StatusCancelled)
			require.NoError(t, err)
			require.EqualValues(t, 2, count)

			for _, o := range drafts {
				loaded, err := repo.FindByID(ctx, o.ID())
				require.NoError(t, err)
				require.Equal(t, domain.StatusCancelled, loaded.Status())
			}
			loaded, err := repo.FindByID(ctx, submitted.ID())
			require.NoError(t, err)
			require.Equal(t, domain.StatusSubmitted, loaded.Status())

			count, err = repo.BulkUpdateStatus(ctx, domain.StatusDraft, domain.StatusCancelled)
			require.NoError(t, err)
			require.EqualValues(t, 0, count)

			_, err = repo.BulkUpdateStatus(ctx, domain.Status("BOGUS"), domain.StatusCancelled)
			require.Error(t, err)
		})
	}
}

func TestConcurrentSaves(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			require.Equal(t, sc.locking, repo.SupportsOptimisticLocking())

			_, err := repo.Save(ctx, buildOrder(t, "cust-1", "100"))
			require.NoError(t, err)

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			first, second := all[0], all[0]

			// Two clients load the same version, then both try to save.
			first, err = repo.FindByID(ctx, first.ID())
			require.NoError(t, err)
			second, err = repo.FindByID(ctx, second.ID())
			require.NoError(t, err)

			require.NoError(t, first.UpdateLineItemQuantity(first.LineItems()[0].ID(), 5))
			require.NoError(t, second.UpdateLineItemQuantity(second.LineItems()[0].ID(), 9))

			_, err = repo.Save(ctx, first)
			require.NoError(t, err)

			_, err = repo.Save(ctx, second)
			loaded, loadErr := repo.FindByID(ctx, first.ID())
			require.NoError(t, loadErr)

			if sc.locking {
				require.ErrorIs(t, err, ErrVersionConflict)
				// The losing save must leave no partial write behind.
				require.Equal(t, 5, loaded.LineItems()[0].Quantity())
				requireDecimal(t, "500", loaded.TotalAmount())
			} else {
				require.NoError(t, err)
				require.Equal(t, 9, loaded.LineItems()[0].Quantity())
				requireDecimal(t, "900", loaded.TotalAmount())
			}
		})
	}
}

func TestSaveStaleOnMissingRow(t *testing.T) {
	for _, sc := range strategies() {
		if !sc.locking {
			continue
		}
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			o := buildOrder(t, "cust-1", "100")
			stale := domain.Reconstitute(o.ID(), o.CustomerID(), o.Status(), o.TotalAmount(),
				o.LineItems(), o.CreatedAt(), o.UpdatedAt(), 3)

			_, err := repo.Save(ctx, stale)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFindByProductID(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			shared1 := domain.New("cust-1")
			_, err := shared1.AddLineItem("prod-shared", "Widget", 1, decimal.RequireFromString("10"))
			require.NoError(t, err)
			_, err = shared1.AddLineItem("prod-other", "Gadget", 1, decimal.RequireFromString("20"))
			require.NoError(t, err)

			shared2 := domain.New("cust-2")
			_, err = shared2.AddLineItem("prod-shared", "Widget", 2, decimal.RequireFromString("10"))
			require.NoError(t, err)

			unrelated := domain.New("cust-3")
			_, err = unrelated.AddLineItem("prod-other", "Gadget", 1, decimal.RequireFromString("20"))
			require.NoError(t, err)

			for i, o := range []*domain.Order{shared1, shared2, unrelated} {
				_, err := repo.Save(ctx, withCreatedAt(o, base.Add(time.Duration(i)*time.Minute)))
				require.NoError(t, err)
			}

			found, err := repo.FindByProductID(ctx, "prod-shared")
			require.NoError(t, err)
			require.Len(t, found, 2)
			require.Equal(t, shared1.ID(), found[0].ID())
			require.Equal(t, shared2.ID(), found[1].ID())
			// Matches come back as complete aggregates, not item fragments.
			require.Len(t, found[0].LineItems(), 2)
			requireDecimal(t, "30", found[0].TotalAmount())

			none, err := repo.FindByProductID(ctx, "prod-missing")
			require.NoError(t, err)
			require.Empty(t, none)
		})
	}
}

func TestRemoveLineItemPersists(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			saved, err := repo.Save(ctx, buildOrder(t, "cust-1", "100", "50"))
			require.NoError(t, err)
			require.Len(t, saved.LineItems(), 2)

			removed := saved.LineItems()[0]
			require.NoError(t, saved.RemoveLineItem(removed.ID()))

			saved, err = repo.Save(ctx, saved)
			require.NoError(t, err)
			require.Len(t, saved.LineItems(), 1)
			requireDecimal(t, "50", saved.TotalAmount())
			require.NotEqual(t, removed.ID(), saved.LineItems()[0].ID())
		})
	}
}

func TestDeleteAll(t *testing.T) {
	for _, sc := range strategies() {
		t.Run(sc.name, func(t *testing.T) {
			repo := sc.build(newTestConns(t))
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				_, err := repo.Save(ctx, buildOrder(t, "cust-1", "100"))
				require.NoError(t, err)
			}

			require.NoError(t, repo.DeleteAll(ctx))

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			require.Empty(t, all)

			summary, err := repo.ComputeAggregateSummary(ctx)
			require.NoError(t, err)
			require.EqualValues(t, 0, summary.TotalOrders)
		})
	}
}
