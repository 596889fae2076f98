package record

import (
	"strconv"
	"strings"
	"time"
)

// KeyLayout is the canonical layout of a normalized date key.
const KeyLayout = "2006-01-02 15:04:05"

// MinTime is the sentinel timestamp of records without a usable date.
var MinTime = time.Time{}

var dateLayouts = []string{
	KeyLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102",
	"2006-01",
	"2006年01月02日",
	"2006年01月",
}

// ParseDate parses a date-like value. Dates carry no zone: the wall clock
// is kept and placed in UTC so canonical keys compare consistently.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return MinTime, false
		}
		return wallClock(d), true
	case *time.Time:
		if d == nil {
			return MinTime, false
		}
		return ParseDate(*d)
	case string:
		return parseDateString(d)
	case float64:
		return parseDateNumber(int64(d))
	case int64:
		return parseDateNumber(d)
	case int:
		return parseDateNumber(int64(d))
	default:
		return MinTime, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MinTime, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return wallClock(t), true
	}
	return MinTime, false
}

// parseDateNumber accepts YYYYMMDD, unix seconds and unix milliseconds.
func parseDateNumber(n int64) (time.Time, bool) {
	switch digits := len(strconv.FormatInt(n, 10)); {
	case n <= 0:
		return MinTime, false
	case digits == 8:
		return parseDateString(strconv.FormatInt(n, 10))
	case digits == 10:
		return time.Unix(n, 0).UTC(), true
	case digits == 13:
		return time.UnixMilli(n).UTC(), true
	default:
		return MinTime, false
	}
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
