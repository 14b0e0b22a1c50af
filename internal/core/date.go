package core

import (
	"strings"
	"time"
)

// CanonicalDateLayout is the day format all sheet dates are normalized to.
// Lexicographic order on canonical dates matches chronological order.
const CanonicalDateLayout = "2006-01-02"

// dateLayouts are tried in order by NormalizeDate. Slash and dot forms are
// interpreted month-first, matching the parser the source data was written
// against. That interpretation is a documented fragility for ambiguous
// day/month input, not a contract.
var dateLayouts = []string{
	CanonicalDateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01.02.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// NormalizeDate converts any parseable date representation into the
// canonical zero-padded YYYY-MM-DD form. Unparsable or empty input is
// returned unchanged; normalization never fails.
func NormalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(CanonicalDateLayout)
		}
	}
	return s
}

// ParseDay parses a canonical date string at day granularity. The second
// return reports whether the input was a valid calendar day.
func ParseDay(s string) (time.Time, bool) {
	t, err := time.Parse(CanonicalDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
