package statement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Day-first layouts are tried before month-first ones, so "03/04/2024" is
// read as 3 April.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2006-1-2",
	"1/2/2006",
	"2 Jan 2006",
	"2 January 2006",
}

var isoDateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Markers stripped from amount tokens before parsing.
var amountNoise = []string{",", "₹", "rs.", "rs", "$", "£", "€", " ", "\u00a0"}

// ParseDate parses a statement date token and returns it at UTC midnight.
func ParseDate(token string) (time.Time, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), true
		}
	}
	for _, layout := range isoDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), true
		}
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseAmount parses an amount token. Empty tokens and a lone "-" are
// treated as missing. Thousands separators, currency markers and a trailing
// Dr/Cr marker are ignored; "(500)" is read as -500.
func ParseAmount(token *string) (decimal.Decimal, bool) {
	if token == nil {
		return decimal.Zero, false
	}
	s := strings.ToLower(strings.TrimSpace(*token))
	if s == "" || s == "-" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, marker := range amountNoise {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "dr"), "cr")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
