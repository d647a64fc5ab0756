package ui

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// formatInt renders 1234567 as 1.234.567.
func formatInt(n int64) string { return ptBR.Sprintf("%d", n) }

// formatDecimal renders 1234.5 as 1.234,50.
func formatDecimal(v float64) string { return ptBR.Sprintf("%.2f", v) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02/01/2006 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}
