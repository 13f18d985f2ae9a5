package order

import "github.com/shopspring/decimal"

// Summary is a derived, non-persistent read model over the full order set.
// The average is rounded to 2 decimal places, half-up, and is zero when the
// set is empty. Store-side reductions must be numerically identical to
// Summarize over the same data.
type Summary struct {
	TotalOrders   int64
	TotalAmount   decimal.Decimal
	AverageAmount decimal.Decimal
	CountByStatus map[Status]int64
}

// Summarize reduces a set of orders in memory. It is the reference
// implementation used by the aggregate-first persistence strategies.
func Summarize(orders []*Order) Summary {
	summary := Summary{
		TotalAmount:   decimal.Zero,
		AverageAmount: decimal.Zero,
		CountByStatus: make(map[Status]int64),
	}
	for _, o := range orders {
		summary.TotalOrders++
		summary.TotalAmount = summary.TotalAmount.Add(o.TotalAmount())
		summary.CountByStatus[o.Status()]++
	}
	if summary.TotalOrders > 0 {
		summary.AverageAmount = Average(summary.TotalAmount, summary.TotalOrders)
	}
	return summary
}

// Average divides total by count rounded to 2 decimal places, half-up.
// Both persistence policies share this so their summaries agree digit for
// digit.
func Average(total decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(count), 2)
}
