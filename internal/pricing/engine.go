package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value kept at full precision.
type Money = decimal.Decimal

// TaxRate is the flat tax multiplier applied to every cart subtotal.
var TaxRate = decimal.RequireFromString("0.08")

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	LineTotal Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	TotalItems int
	Subtotal   Money
	Tax        Money
	Total      Money
}

// LineTotal returns qty × unitPrice without rounding.
func LineTotal(qty int, unitPrice Money) Money {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// Compute calculates cart totals from the provided line items. Every item
// counts, so totals always agree with the items they were computed from.
// Values are accumulated at full precision; rounding is left to the
// presentation layer.
func Compute(items []Item, taxRate Money) Summary {
	subtotal := decimal.Zero
	count := 0
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
		count += it.Qty
	}
	tax := subtotal.Mul(taxRate)
	return Summary{
		TotalItems: count,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      subtotal.Add(tax),
	}
}

// Display renders m rounded to two decimals for human-facing output.
func Display(m Money) string {
	return m.StringFixed(2)
}
