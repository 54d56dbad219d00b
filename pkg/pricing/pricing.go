package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/appetiteclub/tableside/pkg/orders"
)

// DefaultTaxRate is applied when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.10")

// Totals holds exact, unrounded money values.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Engine computes totals for a fixed tax rate.
type Engine struct {
	TaxRate decimal.Decimal
}

func NewEngine(rate decimal.Decimal) Engine {
	if rate.IsNegative() {
		rate = DefaultTaxRate
	}
	return Engine{TaxRate: rate}
}

// Default returns an engine using DefaultTaxRate.
func Default() Engine {
	return Engine{TaxRate: DefaultTaxRate}
}

// ParseRate reads a rate such as "0.10" or "10%". An empty value yields
// the default rate.
func ParseRate(raw string) (Engine, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Default(), nil
	}

	percent := strings.HasSuffix(raw, "%")
	rate, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
	if err != nil {
		return Engine{}, fmt.Errorf("invalid tax rate %q: %w", raw, err)
	}
	if percent {
		rate = rate.Div(decimal.NewFromInt(100))
	}
	if rate.IsNegative() {
		return Engine{}, fmt.Errorf("invalid tax rate %q: must not be negative", raw)
	}

	return Engine{TaxRate: rate}, nil
}

// ComputeTotals returns subtotal, tax and total for lines. No rounding is
// applied; an empty collection yields zero totals.
func (e Engine) ComputeTotals(lines []orders.Line) Totals {
	subtotal := Subtotal(lines)
	tax := subtotal.Mul(e.TaxRate)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// ComputeTotals uses the default engine.
func ComputeTotals(lines []orders.Line) Totals {
	return Default().ComputeTotals(lines)
}

// Subtotal is the sum of unit price times quantity.
func Subtotal(lines []orders.Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount())
	}
	return sum
}

// ItemCount is the sum of quantities.
func ItemCount(lines []orders.Line) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// Display formats d for presentation, truncated to two decimal places.
func Display(d decimal.Decimal) string {
	return d.Truncate(2).StringFixed(2)
}

// Display formats every total for presentation.
func (t Totals) Display() map[string]string {
	return map[string]string{
		"subtotal": Display(t.Subtotal),
		"tax":      Display(t.Tax),
		"total":    Display(t.Total),
	}
}
