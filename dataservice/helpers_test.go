package dataservice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
	"github.com/jonwraymond/marketcache/upstream"
)

var cst = time.FixedZone("CST", 8*3600)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rng(start, end string) tradedate.Range {
	var r tradedate.Range
	if start != "" {
		r.Start = d(start)
	}
	if end != "" {
		r.End = d(end)
	}
	return r
}

// fakeSource serves one daily record per weekday between listed and
// published, inclusive.
type fakeSource struct {
	mu        sync.Mutex
	queries   []upstream.Query
	err       error
	listed    time.Time
	published time.Time
}

func (f *fakeSource) Fetch(ctx context.Context, q upstream.Query) ([]record.Record, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	start, end := f.listed, f.published
	if !q.Range.Start.IsZero() && q.Range.Start.After(start) {
		start = tradedate.Day(q.Range.Start)
	}
	if !q.Range.End.IsZero() && q.Range.End.Before(end) {
		end = q.Range.End
	}
	var out []record.Record
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if tradedate.IsWeekend(day) {
			continue
		}
		out = append(out, record.Record{
			record.FieldDate:   day.Format("2006-01-02"),
			record.FieldClose:  float64(day.YearDay()),
			record.FieldAmount: float64(day.Day()),
		})
	}
	return out, nil
}

func (f *fakeSource) calls() []upstream.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.Query(nil), f.queries...)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type harness struct {
	clock *clockwork.FakeClock
	cache *cache.Manager
	src   *fakeSource
	svc   *Service
}

// newHarness starts on Wednesday 2023-01-11 16:00 CST, after the close,
// so the latest trading day is 2023-01-11.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2023, 1, 11, 16, 0, 0, 0, cst))
	m, err := cache.NewManager(context.Background(), cache.Config{Namespace: "test"}, cache.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	src := &fakeSource{listed: d("2022-12-01"), published: d("2023-01-11")}
	cal := tradedate.NewWeekdayCalendar(tradedate.WeekdayCalendarConfig{Location: cst, Clock: clock})
	opts = append([]Option{WithCalendar(cal), WithTelemetry(observe.NopTelemetry())}, opts...)

	return &harness{
		clock: clock,
		cache: m,
		src:   src,
		svc:   New(m, src, opts...),
	}
}

func dates(records []record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Time().Format("2006-01-02")
	}
	return out
}
