package remote

import (
	"fmt"
	"time"
)

// CurrencySymbol prefixes every rendered total
const CurrencySymbol = "₹"

// FormatAmount renders a total with the fixed currency symbol
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%s%.2f", CurrencySymbol, amount)
}

// LocalTime renders a timestamp in the local time zone. Zero times render empty.
func LocalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05 MST")
}
