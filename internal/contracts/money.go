package contracts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney parses feed amounts such as "$11.00" or "$1,250.50"
func ParseMoney(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// MinPrice is the smallest usable price target
var MinPrice = decimal.New(1, -2)

// ParsePrice parses a price target. Amounts below one cent, zero and
// negative ones included, are rejected.
func ParsePrice(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "-") {
		return decimal.Zero, fmt.Errorf("negative price %q", s)
	}

	d, err := ParseMoney(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if d.LessThan(MinPrice) {
		return decimal.Zero, fmt.Errorf("price %q is below %s", s, FormatMoney(MinPrice))
	}
	return d, nil
}

// FormatMoney renders d as "$11.00"
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
