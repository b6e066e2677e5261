package utils

import (
	"strconv"
	"strings"
	"time"
)

type spanUnit struct {
	size     time.Duration
	singular string
	plural   string
}

var spanUnits = []spanUnit{
	{52 * 7 * 24 * time.Hour, "year", "years"},
	{7 * 24 * time.Hour, "week", "weeks"},
	{24 * time.Hour, "day", "days"},
	{time.Hour, "hour", "hours"},
	{time.Minute, "minute", "minutes"},
	{time.Second, "second", "seconds"},
}

const maxSpanUnits = 3

// FormatTimespan renders d the way people say it: "1 hour", "15 minutes",
// "1 day, 2 hours and 5 minutes". Only the three largest non-zero units are kept.
func FormatTimespan(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	parts := make([]string, 0, maxSpanUnits)
	remaining := d

	for _, u := range spanUnits {
		if len(parts) == maxSpanUnits {
			break
		}
		n := remaining / u.size
		if n == 0 {
			continue
		}
		remaining -= n * u.size

		label := u.plural
		if n == 1 {
			label = u.singular
		}
		parts = append(parts, strconv.FormatInt(int64(n), 10)+" "+label)
	}

	return joinConcatenated(parts)
}

func joinConcatenated(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
