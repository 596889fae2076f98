package dataservice

import (
	"time"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/tradedate"
)

// MissingRanges returns the sub-ranges of rng that e does not cover, head
// gap first. rng must already be normalized. A nil entry, or one without a
// single dated record, misses the whole range.
//
// The head gap runs from rng.Start to the day before e.From. The tail gap
// exists when the entry covers less than rng.End, counting e.Through as
// covered. It starts the day after coverage for daily data, at the start of
// the last cached bucket for weekly and monthly data, and at the last
// cached timestamp for minute data, so partial bars are re-fetched. Gaps
// are never clipped to rng: the entry must stay contiguous from e.From.
func MissingRanges(e *cache.Entry, rng tradedate.Range, freq tradedate.Freq) []tradedate.Range {
	if rng.Empty() {
		return nil
	}
	if e == nil || e.Latest().IsZero() {
		return []tradedate.Range{rng}
	}

	var gaps []tradedate.Range

	if from := e.From; !from.IsZero() && (rng.Start.IsZero() || rng.Start.Before(tradedate.Day(from))) {
		end := tradedate.Day(from)
		if !freq.Intraday() {
			end = end.AddDate(0, 0, -1)
		}
		if head := adjust(tradedate.Range{Start: rng.Start, End: end}); !head.Empty() {
			gaps = append(gaps, head)
		}
	}

	last := e.Latest()
	covered := tradedate.Day(last)
	if through := tradedate.Day(e.Through); through.After(covered) {
		covered = through
	}
	if covered.Before(rng.End) {
		var start time.Time
		switch freq.Unit {
		case tradedate.UnitWeek, tradedate.UnitMonth:
			start = tradedate.Truncate(last, freq)
		case tradedate.UnitMinute:
			start = last
		default:
			start = covered.AddDate(0, 0, 1)
		}
		if tail := adjust(tradedate.Range{Start: start, End: rng.End}); !tail.Empty() {
			gaps = append(gaps, tail)
		}
	}

	return gaps
}

// adjust rolls a gap's bounds onto trading days. Minute starts keep their
// time of day.
func adjust(r tradedate.Range) tradedate.Range {
	if !r.Start.IsZero() {
		r.Start = tradedate.AdjustStart(r.Start)
	}
	r.End = tradedate.Day(tradedate.AdjustEnd(r.End))
	return r
}
