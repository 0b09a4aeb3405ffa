package inventory

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

var (
	ErrNoQuantity = errors.New("no quantity in message")
	ErrNoProduct  = errors.New("no product in message")
	ErrNoNumber   = errors.New("no number in message")
)

var (
	leadingNumber = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)`)
	anyNumber     = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
	leadingMinus  = regexp.MustCompile(`^-\d`)
	numericOnly   = regexp.MustCompile(`^\d+(?:[.,\s]\d+)*$`)
	groupedAmount = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
)

// Words dropped around the product name ("2 kg de arroz no estoque")
var (
	leadingFillers = map[string]bool{
		"de": true, "do": true, "da": true, "dos": true, "das": true,
		"o": true, "a": true, "os": true, "as": true, "um": true, "uma": true,
		"produto": true, "produtos": true, "item": true, "itens": true, "novo": true, "mais": true,
	}
	trailingPhrases = []string{"ao estoque", "no estoque", "do estoque", "em estoque", "na despensa", "da despensa"}
)

// Amount is the parsed "<quantity> <unit?> <product>" part of a command
type Amount struct {
	Quantity    decimal.Decimal
	Unit        Unit // empty when the caller gave no unit
	HasQuantity bool
	Product     string // normalized product name
}

// ParseAmount parses the text that follows a command verb. When the text
// does not start with a number the quantity defaults to 1 and HasQuantity
// is false; callers that require a quantity check it.
func ParseAmount(text string) (Amount, error) {
	words := strings.Fields(utils.Fold(text))
	for len(words) > 0 && leadingFillers[utils.Normalize(words[0])] {
		words = words[1:]
	}
	rest := strings.Join(words, " ")
	amount := Amount{Quantity: decimal.NewFromInt(1)}

	if m := leadingNumber.FindString(rest); m != "" {
		q, err := ParseDecimal(m)
		if err != nil {
			return Amount{}, err
		}
		amount.Quantity = q
		amount.HasQuantity = true
		rest = rest[len(m):]

		// unit may be glued to the number ("1kg") or separated ("1 kg")
		token, after := splitFirstWord(strings.TrimLeft(rest, " "))
		if u, ok := ParseUnit(strings.Trim(token, ".")); ok {
			amount.Unit = u
			rest = after
		}
	}

	amount.Product = productName(rest)
	if amount.Product == "" {
		return Amount{}, ErrNoProduct
	}
	return amount, nil
}

func splitFirstWord(s string) (string, string) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func productName(text string) string {
	words := strings.Fields(utils.Normalize(text))
	for len(words) > 0 && leadingFillers[words[0]] {
		words = words[1:]
	}
	name := strings.Join(words, " ")
	for _, phrase := range trailingPhrases {
		name = strings.TrimSpace(strings.TrimSuffix(name, phrase))
	}
	return name
}

// ParseDecimal reads the first number in text. Both "7,50" and "7.50" are
// accepted; when both separators appear the last one is the decimal mark.
func ParseDecimal(text string) (decimal.Decimal, error) {
	m := anyNumber.FindString(text)
	if m == "" {
		return decimal.Zero, ErrNoNumber
	}

	lastComma := strings.LastIndexByte(m, ',')
	lastDot := strings.LastIndexByte(m, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			m = strings.Replace(m, ",", ".", 1)
		} else {
			m = strings.ReplaceAll(m, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(m, ",") > 1 {
			m = strings.ReplaceAll(m, ",", "")
		} else {
			m = strings.Replace(m, ",", ".", 1)
		}
	case strings.Count(m, ".") > 1:
		m = strings.ReplaceAll(m, ".", "")
	}

	return decimal.NewFromString(m)
}

// ParsePrice reads a money amount in Brazilian notation. Unlike ParseDecimal
// a lone dot followed by exactly three digits ("1.234") is a thousands
// separator, since centavos never have three places.
func ParsePrice(text string) (decimal.Decimal, error) {
	m := anyNumber.FindString(text)
	if m != "" && groupedAmount.MatchString(m) {
		return decimal.NewFromString(strings.ReplaceAll(m, ".", ""))
	}
	return ParseDecimal(text)
}

// HasLeadingMinus reports "-1 arroz" style decrements. It must run on the raw
// text because normalization drops the sign.
func HasLeadingMinus(raw string) bool {
	return leadingMinus.MatchString(strings.TrimSpace(raw))
}

// IsNumericOnly reports messages made only of digits and separators
func IsNumericOnly(raw string) bool {
	return numericOnly.MatchString(strings.TrimSpace(raw))
}
