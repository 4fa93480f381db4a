package reservation

import "github.com/shopspring/decimal"

// ComputeTotals derives subtotal, tax, and total from snapshotted lines.
// Amounts are rounded to 2 places once, here; the same figures are carried
// unchanged into the materialized order.
func ComputeTotals(lines []LineSnapshot, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineSubtotal)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
