// Package inventory holds the pure rules of the stock ledger: units,
// quantity and currency formatting, command text parsing, the category
// vocabulary and product name resolution.
package inventory

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is a canonical unit code as stored on the ledger
type Unit string

const (
	UnitKilogram   Unit = "KG"
	UnitGram       Unit = "G"
	UnitLiter      Unit = "L"
	UnitMilliliter Unit = "ML"
	UnitPiece      Unit = "UN"
)

// QuantityPlaces is the precision every ledger quantity is kept at
const QuantityPlaces = 3

var gramsPerKilogram = decimal.NewFromInt(1000)

var unitTokens = map[string]Unit{
	"kg": UnitKilogram, "kgs": UnitKilogram, "kilo": UnitKilogram, "kilos": UnitKilogram,
	"quilo": UnitKilogram, "quilos": UnitKilogram,
	"g": UnitGram, "gr": UnitGram, "grs": UnitGram, "grama": UnitGram, "gramas": UnitGram,
	"l": UnitLiter, "lt": UnitLiter, "lts": UnitLiter, "litro": UnitLiter, "litros": UnitLiter,
	"ml": UnitMilliliter, "mls": UnitMilliliter,
	"un": UnitPiece, "und": UnitPiece, "unid": UnitPiece, "unidade": UnitPiece, "unidades": UnitPiece,
}

// ParseUnit maps a unit token from a chat message to its canonical code
func ParseUnit(token string) (Unit, bool) {
	u, ok := unitTokens[strings.ToLower(strings.TrimSpace(token))]
	return u, ok
}

// Reconcile converts a caller's quantity into the unit the ledger stores.
// Grams always become kilograms; kilograms pass through; a missing caller
// unit inherits the ledger row's unit verbatim. Other units are kept as given.
func Reconcile(quantity decimal.Decimal, callerUnit Unit, ledgerUnit string) (decimal.Decimal, string) {
	switch callerUnit {
	case UnitGram:
		return RoundQuantity(quantity.Div(gramsPerKilogram)), string(UnitKilogram)
	case "":
		return RoundQuantity(quantity), ledgerUnit
	default:
		return RoundQuantity(quantity), string(callerUnit)
	}
}

// RoundQuantity rounds to the ledger precision
func RoundQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Round(QuantityPlaces)
}
