package tradedate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the granularity of a frequency.
type Unit int

const (
	UnitDay Unit = iota
	UnitWeek
	UnitMonth
	UnitMinute
)

// String returns the string representation of the unit.
func (u Unit) String() string {
	switch u {
	case UnitDay:
		return "day"
	case UnitWeek:
		return "week"
	case UnitMonth:
		return "month"
	case UnitMinute:
		return "minute"
	default:
		return "unknown"
	}
}

// Freq is a bar frequency: day, week, month or an n-minute bucket.
type Freq struct {
	Unit    Unit
	Minutes int
}

// Common frequencies.
var (
	Daily   = Freq{Unit: UnitDay}
	Weekly  = Freq{Unit: UnitWeek}
	Monthly = Freq{Unit: UnitMonth}
)

// Minutes returns an n-minute frequency.
func Minutes(n int) Freq {
	return Freq{Unit: UnitMinute, Minutes: n}
}

// String returns the canonical spelling accepted by ParseFreq.
func (f Freq) String() string {
	if f.Unit == UnitMinute {
		return strconv.Itoa(f.step())
	}
	return f.Unit.String()
}

// Intraday reports whether the frequency is finer than a day.
func (f Freq) Intraday() bool {
	return f.Unit == UnitMinute
}

func (f Freq) step() int {
	if f.Minutes <= 0 {
		return 1
	}
	return f.Minutes
}

// ParseFreq parses day, week, month spellings or a positive minute count.
func ParseFreq(s string) (Freq, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d", "day", "daily", "1d":
		return Daily, nil
	case "w", "week", "weekly", "1w":
		return Weekly, nil
	case "m", "month", "monthly", "1mo":
		return Monthly, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return Freq{}, fmt.Errorf("tradedate: unknown frequency %q", s)
	}
	return Minutes(n), nil
}

// Truncate buckets t to the start of its frequency period:
// midnight for day, the ISO-week Monday for week, day one for month, and
// the minute floored to a multiple of n with seconds zeroed for n minutes.
func Truncate(t time.Time, f Freq) time.Time {
	switch f.Unit {
	case UnitWeek:
		offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
		return Day(t).AddDate(0, 0, -offset)
	case UnitMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case UnitMinute:
		n := f.step()
		minute := t.Minute() / n * n
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
	default:
		return Day(t)
	}
}
