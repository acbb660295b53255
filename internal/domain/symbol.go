package domain

import (
	"regexp"
	"strings"
)

// MaxSymbolLen matches the VARCHAR(10) column.
const MaxSymbolLen = 10

var symbolRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// NormalizeSymbol upper-cases and trims s.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSymbol reports whether s is a ticker that fits the quote table.
func ValidateSymbol(s string) bool {
	return len(s) <= MaxSymbolLen && symbolRe.MatchString(s)
}
