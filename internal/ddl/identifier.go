package ddl

import (
	"fmt"
	"strings"
)

const maxColumnNameLen = 255

// ValidateColumnName checks a dataset column name. Source headers are free
// text (accents, spaces, dots from flattening) so only emptiness, length and
// control characters are rejected.
func ValidateColumnName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("column name is required")
	}
	if len(name) > maxColumnNameLen {
		return fmt.Errorf("column name must be at most %d bytes", maxColumnNameLen)
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return fmt.Errorf("column name %q contains control characters", name)
	}
	return nil
}

// QuoteIdentifier wraps a column or view name in double quotes, doubling any
// embedded double quote.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral wraps a file path or value in single quotes, doubling any
// embedded single quote.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
