package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func confirmedOrder(t *testing.T, amount int64) *Order {
	t.Helper()
	o := New("cust")
	mustAdd(t, o, "P1", 1, amount)
	require.NoError(t, o.Submit())
	require.NoError(t, o.Confirm())
	return o
}

func TestSummarizeConfirmedOrders(t *testing.T) {
	orders := []*Order{
		confirmedOrder(t, 100),
		confirmedOrder(t, 200),
		confirmedOrder(t, 300),
	}

	s := Summarize(orders)

	require.Equal(t, int64(3), s.TotalOrders)
	require.True(t, s.TotalAmount.Equal(decimal.NewFromInt(600)), "got %s", s.TotalAmount)
	require.True(t, s.AverageAmount.Equal(decimal.NewFromInt(200)), "got %s", s.AverageAmount)
	require.Equal(t, map[Status]int64{StatusConfirmed: 3}, s.CountByStatus)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	require.Equal(t, int64(0), s.TotalOrders)
	require.True(t, s.TotalAmount.IsZero())
	require.True(t, s.AverageAmount.IsZero())
	require.Empty(t, s.CountByStatus)
}

func TestSummarizeMixedStatuses(t *testing.T) {
	draft := New("cust")
	mustAdd(t, draft, "P1", 1, 50)

	submitted := New("cust")
	mustAdd(t, submitted, "P2", 1, 50)
	require.NoError(t, submitted.Submit())

	s := Summarize([]*Order{draft, submitted, confirmedOrder(t, 100)})

	require.Equal(t, int64(3), s.TotalOrders)
	require.Equal(t, int64(1), s.CountByStatus[StatusDraft])
	require.Equal(t, int64(1), s.CountByStatus[StatusSubmitted])
	require.Equal(t, int64(1), s.CountByStatus[StatusConfirmed])
}

func TestAverageRoundsHalfUp(t *testing.T) {
	// 100 / 3 = 33.333... → 33.33
	require.True(t, Average(decimal.NewFromInt(100), 3).Equal(decimal.RequireFromString("33.33")))
	// half-up boundary: 10.005 / 1 → 10.01
	require.True(t, Average(decimal.RequireFromString("10.005"), 1).Equal(decimal.RequireFromString("10.01")))
	require.True(t, Average(decimal.NewFromInt(100), 0).IsZero())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("CONFIRMED")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, s)

	_, err = ParseStatus("confirmed")
	require.Error(t, err)

	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.False(t, StatusShipped.Terminal())
	require.Len(t, Statuses(), 6)
}
