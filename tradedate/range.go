package tradedate

import (
	"fmt"
	"time"
)

// Range is an inclusive span of calendar dates. A zero Start means all
// available history; a zero End means through the latest trading day.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange parses start and end dates in YYYY-MM-DD or YYYYMMDD form.
// Empty strings leave the corresponding side unbounded.
func NewRange(start, end string) (Range, error) {
	var r Range
	var err error
	if r.Start, err = parseBound(start); err != nil {
		return Range{}, fmt.Errorf("tradedate: start date: %w", err)
	}
	if r.End, err = parseBound(end); err != nil {
		return Range{}, fmt.Errorf("tradedate: end date: %w", err)
	}
	return r, nil
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// Normalize rolls the bounds onto trading days and clamps End to latest.
// An unbounded End becomes latest.
func (r Range) Normalize(latest time.Time) Range {
	out := r
	if !out.Start.IsZero() {
		out.Start = Day(AdjustStart(out.Start))
	}
	if out.End.IsZero() || out.End.After(latest) {
		out.End = latest
	}
	out.End = Day(AdjustEnd(out.End))
	return out
}

// Empty reports whether the range holds no trading days.
func (r Range) Empty() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End)
}

// Until returns the exclusive upper instant of the range: midnight after End.
func (r Range) Until() time.Time {
	if r.End.IsZero() {
		return time.Time{}
	}
	return Day(r.End).AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the range at day granularity.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(Day(r.Start)) {
		return false
	}
	if u := r.Until(); !u.IsZero() && !t.Before(u) {
		return false
	}
	return true
}

// String formats the range for logs.
func (r Range) String() string {
	return formatBound(r.Start, "*") + ".." + formatBound(r.End, "latest")
}

func formatBound(t time.Time, open string) string {
	if t.IsZero() {
		return open
	}
	return t.Format("2006-01-02")
}
