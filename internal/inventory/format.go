package inventory

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnitLabel is the user-facing suffix for a stored unit code
func UnitLabel(unit string) string {
	switch Unit(strings.ToUpper(strings.TrimSpace(unit))) {
	case UnitKilogram:
		return "Kg"
	case UnitGram:
		return "g"
	case UnitLiter:
		return "L"
	case UnitMilliliter:
		return "ml"
	case UnitPiece:
		return "Un"
	default:
		return "Unidades"
	}
}

// FormatQuantity renders a quantity with exactly three decimals, a decimal
// comma and the unit label, e.g. "4,000 Kg". Every quantity shown to a user
// goes through here.
func FormatQuantity(q decimal.Decimal, unit string) string {
	return strings.Replace(q.StringFixed(QuantityPlaces), ".", ",", 1) + " " + UnitLabel(unit)
}

// FormatCurrency renders a price in reais, e.g. "R$ 1.234,50"
func FormatCurrency(v decimal.Decimal) string {
	fixed := v.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}
