package analysis

import (
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"02-Jan-2006", "Jan 2, 2006", "2 Jan 2006",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	// hex floats and digit separators are valid for strconv but not for a CSV number
	if strings.ContainsAny(raw, "_xXpP") {
		return 0, false
	}
	if thou := opt.ThousandsSeparator; thou != 0 && thou != opt.DecimalSeparator {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec := opt.DecimalSeparator; dec != 0 && dec != '.' {
		if strings.Contains(raw, ".") {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
