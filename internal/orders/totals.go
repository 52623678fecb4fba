package orders

import "github.com/shopspring/decimal"

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals sums live item subtotals and applies taxRatePercent.
// Tax is rounded to cents; Total is always Subtotal + Tax.
func ComputeTotals(items []Item, taxRatePercent decimal.Decimal) Totals {
	sub := decimal.Zero
	for _, it := range items {
		if !it.Status.Live() {
			continue
		}
		sub = sub.Add(it.Subtotal)
	}
	tax := sub.Mul(taxRatePercent).Div(hundred).Round(2)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}
