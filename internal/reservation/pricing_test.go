package reservation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func line(name string, qty int32, unitPrice string) LineSnapshot {
	price := decimal.RequireFromString(unitPrice)
	return LineSnapshot{
		Name:         name,
		Quantity:     qty,
		UnitPrice:    price,
		LineSubtotal: price.Mul(decimal.NewFromInt32(qty)),
	}
}

func TestComputeTotals(t *testing.T) {
	cases := []struct {
		name     string
		lines    []LineSnapshot
		taxRate  string
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "two margheritas at 8 percent",
			lines:    []LineSnapshot{line("Margherita", 2, "350.00")},
			taxRate:  "0.08",
			subtotal: "700.00",
			tax:      "56.00",
			total:    "756.00",
		},
		{
			name: "mixed cart",
			lines: []LineSnapshot{
				line("Masala Dosa", 1, "120.50"),
				line("Filter Coffee", 3, "40.00"),
			},
			taxRate:  "0.05",
			subtotal: "240.50",
			tax:      "12.03",
			total:    "252.53",
		},
		{
			name:     "zero tax rate",
			lines:    []LineSnapshot{line("Thali", 2, "199.99")},
			taxRate:  "0",
			subtotal: "399.98",
			tax:      "0.00",
			total:    "399.98",
		},
		{
			name:     "empty cart",
			lines:    nil,
			taxRate:  "0.08",
			subtotal: "0.00",
			tax:      "0.00",
			total:    "0.00",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := ComputeTotals(tc.lines, decimal.RequireFromString(tc.taxRate))
			if got := totals.Subtotal.StringFixed(2); got != tc.subtotal {
				t.Fatalf("subtotal: expected %s, got %s", tc.subtotal, got)
			}
			if got := totals.Tax.StringFixed(2); got != tc.tax {
				t.Fatalf("tax: expected %s, got %s", tc.tax, got)
			}
			if got := totals.Total.StringFixed(2); got != tc.total {
				t.Fatalf("total: expected %s, got %s", tc.total, got)
			}
		})
	}
}

func TestComputeTotalsRoundsOnce(t *testing.T) {
	// 3 x 33.33 = 99.99; 99.99 * 0.08 = 7.9992 -> 8.00
	totals := ComputeTotals([]LineSnapshot{line("Samosa", 3, "33.33")}, decimal.RequireFromString("0.08"))
	if got := totals.Tax.StringFixed(2); got != "8.00" {
		t.Fatalf("expected tax 8.00, got %s", got)
	}
	if got := totals.Total.StringFixed(2); got != "107.99" {
		t.Fatalf("expected total 107.99, got %s", got)
	}
}
