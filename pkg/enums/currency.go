package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO-4217 style currency code as recorded by the purchasing backend.
type Currency string

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the code has the three-letter ISO shape.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range string(c) {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ParseCurrency normalizes raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	candidate := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return candidate, nil
}
