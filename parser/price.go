package parser

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyPrefix is prepended by FormatPrice.
const CurrencyPrefix = "Rs. "

var (
	pricePrinter = message.NewPrinter(language.English)
	maxPrice     = decimal.NewFromInt(math.MaxInt)
)

// ParsePrice extracts a whole-unit price from strings such as "Rs. 345,000",
// "PKR 12,500", "₨ 85000" or "Rs.65,000/-". Anything unparsable or too large
// for an int yields 0.
func ParsePrice(text string) int {
	start := strings.IndexFunc(text, isDigit)
	if start < 0 {
		return 0
	}

	var b strings.Builder
	for _, r := range text[start:] {
		if isDigit(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimRight(b.String(), ".")
	if cleaned == "" {
		return 0
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil || amount.IsNegative() || amount.Truncate(0).GreaterThan(maxPrice) {
		return 0
	}
	return int(amount.IntPart())
}

// FormatPrice renders price with thousands separators and the currency prefix.
// ParsePrice(FormatPrice(p)) == p for every non-negative p.
func FormatPrice(price int) string {
	return CurrencyPrefix + pricePrinter.Sprintf("%d", price)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
