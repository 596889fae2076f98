package record

import (
	"slices"
	"strings"
	"time"
)

// Merge combines cached and incremental records into one sequence sorted by
// canonical date key. On a key conflict the incremental record wins. The
// result never holds two records with the same key and neither input is
// modified, so Merge(Merge(c, i), i) equals Merge(c, i).
func Merge(cached, incremental []Record) []Record {
	byKey := make(map[string]Record, len(cached)+len(incremental))
	for _, r := range cached {
		n := Normalize(r)
		byKey[n.DateKey()] = n
	}
	for _, r := range incremental {
		n := Normalize(r)
		byKey[n.DateKey()] = n
	}

	out := make([]Record, 0, len(byKey))
	for _, r := range byKey {
		out = append(out, r)
	}
	Sort(out)
	return out
}

// Sort orders records ascending by canonical date key in place.
func Sort(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return strings.Compare(a.DateKey(), b.DateKey())
	})
}

// Latest returns the newest valid timestamp, or MinTime when no record has one.
func Latest(records []Record) time.Time {
	latest := MinTime
	for _, r := range records {
		if t := r.Time(); t.After(latest) {
			latest = t
		}
	}
	return latest
}

// Earliest returns the oldest valid timestamp, or MinTime when no record has one.
func Earliest(records []Record) time.Time {
	earliest := MinTime
	for _, r := range records {
		t := r.Time()
		if t.Equal(MinTime) {
			continue
		}
		if earliest.Equal(MinTime) || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest
}

// Between returns the records dated in [from, until). A zero bound is open.
// Records without a valid date are always excluded.
func Between(records []Record, from, until time.Time) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		t := r.Time()
		if t.Equal(MinTime) {
			continue
		}
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !until.IsZero() && !t.Before(until) {
			continue
		}
		out = append(out, r)
	}
	return out
}
