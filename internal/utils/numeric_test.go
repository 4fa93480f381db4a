package utils

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func numeric(units int64, exp int32) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(units), Exp: exp, Valid: true}
}

func TestNumericToFloat64(t *testing.T) {
	cases := []struct {
		name     string
		value    pgtype.Numeric
		expected float64
	}{
		{"two decimal places", numeric(12345, -2), 123.45},
		{"whole amount", numeric(700, 0), 700},
		{"zero", numeric(0, 0), 0},
		{"null", pgtype.Numeric{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NumericToFloat64(tc.value); got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestNumericToDecimal(t *testing.T) {
	cases := []struct {
		name     string
		value    pgtype.Numeric
		expected string
	}{
		{"two decimal places", numeric(12345, -2), "123.45"},
		{"tax rate precision", numeric(800, -4), "0.08"},
		{"null", pgtype.Numeric{}, "0.00"},
		{"nan", pgtype.Numeric{NaN: true, Valid: true}, "0.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NumericToDecimal(tc.value).StringFixed(2); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}
