package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jonwraymond/marketcache/record"
)

// entryVersion is bumped whenever the wire layout changes; older blobs then
// decode as a miss.
const entryVersion = 1

// ErrEntryVersion indicates a stored entry written by an incompatible layout.
var ErrEntryVersion = errors.New("cache: unsupported entry version")

// Entry is one cached result.
//
// Records are sorted ascending by canonical date key with no duplicate keys.
// From is the earliest date the entry is known to cover; zero means the entry
// was fetched with an unbounded start and holds all available history.
//
// Through is the last day the source was asked about. Days after the
// newest record up to Through are known to have no data yet.
//
// Snapshot entries hold a whole non-series result (news, option chains):
// their records keep upstream order and may share or lack dates.
type Entry struct {
	Records   []record.Record
	From      time.Time
	Through   time.Time
	WrittenAt time.Time
	TTL       time.Duration
	Snapshot  bool
}

// Latest returns the newest record date, or record.MinTime for an empty entry.
func (e *Entry) Latest() time.Time {
	return record.Latest(e.Records)
}

// Len returns the number of records.
func (e *Entry) Len() int {
	return len(e.Records)
}

type wireEntry struct {
	Version   int              `msgpack:"v"`
	Records   []map[string]any `msgpack:"r"`
	From      int64            `msgpack:"f"`
	Through   int64            `msgpack:"u,omitempty"`
	WrittenAt int64            `msgpack:"w"`
	TTL       int64            `msgpack:"t"`
	Snapshot  bool             `msgpack:"s,omitempty"`
}

// EncodeEntry serializes e with msgpack. Records are normalized first, so
// numbers are stored as float64 and dates as canonical strings.
func EncodeEntry(e *Entry) ([]byte, error) {
	w := wireEntry{
		Version:   entryVersion,
		Records:   make([]map[string]any, len(e.Records)),
		From:      unixNano(e.From),
		Through:   unixNano(e.Through),
		WrittenAt: unixNano(e.WrittenAt),
		TTL:       int64(e.TTL),
		Snapshot:  e.Snapshot,
	}
	for i, r := range e.Records {
		n := record.Normalize(r)
		m := make(map[string]any, len(n))
		for k, v := range n {
			m[string(k)] = v
		}
		w.Records[i] = m
	}
	b, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("cache: encode entry: %w", err)
	}
	return b, nil
}

// DecodeEntry reverses EncodeEntry and re-establishes the ordering invariant
// for series entries.
func DecodeEntry(b []byte) (*Entry, error) {
	var w wireEntry
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("cache: decode entry: %w", err)
	}
	if w.Version != entryVersion {
		return nil, fmt.Errorf("%w: %d", ErrEntryVersion, w.Version)
	}

	records := make([]record.Record, len(w.Records))
	for i, m := range w.Records {
		r := make(record.Record, len(m))
		for k, v := range m {
			r[record.Field(k)] = v
		}
		records[i] = record.Normalize(r)
	}
	if !w.Snapshot {
		record.Sort(records)
	}

	return &Entry{
		Records:   records,
		From:      fromUnixNano(w.From),
		Through:   fromUnixNano(w.Through),
		WrittenAt: fromUnixNano(w.WrittenAt),
		TTL:       time.Duration(w.TTL),
		Snapshot:  w.Snapshot,
	}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
