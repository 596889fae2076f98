package tools

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/dataservice"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
	"github.com/jonwraymond/marketcache/upstream"
)

var cst = time.FixedZone("CST", 8*3600)

// stubSource answers every resource from its own function and records
// the queries it saw.
type stubSource struct {
	mu      sync.Mutex
	queries []upstream.Query
	routes  map[string]func(upstream.Query) ([]record.Record, error)
}

func (s *stubSource) Fetch(_ context.Context, q upstream.Query) ([]record.Record, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	route := s.routes[q.Resource]
	s.mu.Unlock()
	if route == nil {
		return nil, upstream.ErrUnknownResource
	}
	return route(q)
}

func (s *stubSource) count(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queries {
		if q.Resource == resource {
			n++
		}
	}
	return n
}

func (s *stubSource) last(resource string) upstream.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.queries) - 1; i >= 0; i-- {
		if s.queries[i].Resource == resource {
			return s.queries[i]
		}
	}
	return upstream.Query{}
}

// daily returns one record per weekday in q.Range built by row.
func daily(row func(day time.Time) record.Record) func(upstream.Query) ([]record.Record, error) {
	return func(q upstream.Query) ([]record.Record, error) {
		start := q.Range.Start
		if start.IsZero() {
			start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
		}
		var out []record.Record
		for day := start; !day.After(q.Range.End); day = day.AddDate(0, 0, 1) {
			if tradedate.IsWeekend(day) {
				continue
			}
			r := row(day)
			r[record.FieldDate] = day.Format("2006-01-02")
			out = append(out, r)
		}
		return out, nil
	}
}

func newTestRegistry(t *testing.T) (*Registry, *stubSource) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2023, 1, 11, 16, 0, 0, 0, cst))
	m, err := cache.NewManager(context.Background(), cache.Config{Namespace: "tools"}, cache.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	src := &stubSource{routes: map[string]func(upstream.Query) ([]record.Record, error){
		dataservice.ResourceIndexHistory: daily(func(d time.Time) record.Record {
			return record.Record{record.FieldClose: float64(3000 + d.Day())}
		}),
		dataservice.ResourceTurnoverSH: daily(func(time.Time) record.Record {
			return record.Record{record.FieldAmount: 0.1}
		}),
		dataservice.ResourceTurnoverSZ: daily(func(time.Time) record.Record {
			return record.Record{record.FieldAmount: 0.2}
		}),
		dataservice.ResourceMargin: daily(func(time.Time) record.Record {
			return record.Record{record.FieldMarginBalance: 100.0, record.FieldShortBalance: 5.0}
		}),
		dataservice.ResourceMacro: func(upstream.Query) ([]record.Record, error) {
			return []record.Record{{record.FieldDate: "2022-12", record.FieldValue: 1.8}}, nil
		},
		ResourceNews: func(upstream.Query) ([]record.Record, error) {
			return []record.Record{
				{record.FieldDate: "2023-01-11 15:30:00", record.FieldTitle: "Close review"},
				{record.FieldDate: "2023-01-11 09:30:00", record.FieldTitle: "Open"},
			}, nil
		},
		ResourceOptionChain: func(upstream.Query) ([]record.Record, error) {
			return []record.Record{{record.FieldStrike: 2.7, record.FieldCallPrice: 0.05}}, nil
		},
	}}

	cal := tradedate.NewWeekdayCalendar(tradedate.WeekdayCalendarConfig{Location: cst, Clock: clock})
	svc := dataservice.New(m, src, dataservice.WithCalendar(cal))

	r := NewRegistry(observe.NopTelemetry())
	require.NoError(t, RegisterMarketTools(r, Deps{
		Service:  svc,
		Snapshot: cache.NewSnapshot(m, 0),
		Fetcher:  src,
	}))
	return r, src
}

func TestRegistry_List(t *testing.T) {
	r, _ := newTestRegistry(t)

	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		"index_history", "macro_series", "margin_history",
		"market_news", "option_chain", "turnover_history",
	}, names)
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry(observe.NopTelemetry())
	noop := func(context.Context, Args) (*Output, error) { return &Output{}, nil }

	require.NoError(t, r.Register(Tool{Name: "a", Handler: noop}))
	assert.ErrorIs(t, r.Register(Tool{Name: "a", Handler: noop}), ErrDuplicateTool)
	assert.ErrorIs(t, r.Register(Tool{Name: "b"}), ErrInvalidArgs)
	assert.ErrorIs(t, r.Register(Tool{Handler: noop}), ErrInvalidArgs)
}

func TestRegistry_CallUnknown(t *testing.T) {
	r := NewRegistry(observe.NopTelemetry())
	_, err := r.Call(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestIndexHistory(t *testing.T) {
	r, src := newTestRegistry(t)
	ctx := context.Background()
	args := map[string]any{"symbol": "000300", "start_date": "20230109", "locale": "zh"}

	out, err := r.Call(ctx, "index_history", args)
	require.NoError(t, err)
	assert.Equal(t, string(dataservice.SourceUpstream), out.Source)
	assert.Equal(t, "日期", out.Columns[0])
	assert.Equal(t, "收盘", out.Columns[4])
	require.Len(t, out.Rows, 3)
	assert.Equal(t, "2023-01-09 00:00:00", out.Rows[0][0])
	assert.Equal(t, 3009.0, out.Rows[0][4])
	assert.Nil(t, out.Rows[0][1], "missing fields render as nil")

	out, err = r.Call(ctx, "index_history", args)
	require.NoError(t, err)
	assert.Equal(t, string(dataservice.SourceCache), out.Source)
	assert.Equal(t, 1, src.count(dataservice.ResourceIndexHistory))
}

func TestIndexHistory_InvalidArgs(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want error
	}{
		{"missing symbol", map[string]any{}, ErrInvalidArgs},
		{"bad freq", map[string]any{"symbol": "000300", "freq": "fortnight"}, ErrInvalidArgs},
		{"bad date", map[string]any{"symbol": "000300", "start_date": "Jan 3"}, ErrInvalidArgs},
		{"bad adjust", map[string]any{"symbol": "000300", "adjust": "xyz"}, dataservice.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(ctx, "index_history", tt.args)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTurnoverHistory(t *testing.T) {
	r, _ := newTestRegistry(t)

	out, err := r.Call(context.Background(), "turnover_history", map[string]any{"start_date": "2023-01-10"})
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount", "amount_sh", "amount_sz"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, 0.3, out.Rows[0][1])
}

func TestMarginHistory_DefaultsToShanghai(t *testing.T) {
	r, src := newTestRegistry(t)

	out, err := r.Call(context.Background(), "margin_history", map[string]any{"start_date": "2023-01-11"})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 105.0, out.Rows[0][5])
	assert.Equal(t, "sh", src.last(dataservice.ResourceMargin).Params["exchange"])
}

func TestMacroSeries(t *testing.T) {
	r, src := newTestRegistry(t)

	out, err := r.Call(context.Background(), "macro_series", map[string]any{"indicator": "CPI", "start_date": "2022-12-01"})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 1.8, out.Rows[0][1])
	assert.Equal(t, "cpi", src.last(dataservice.ResourceMacro).Params["indicator"])
}

func TestMarketNews_Snapshot(t *testing.T) {
	r, src := newTestRegistry(t)
	ctx := context.Background()

	out, err := r.Call(ctx, "market_news", map[string]any{"locale": "zh"})
	require.NoError(t, err)
	assert.Equal(t, string(dataservice.SourceUpstream), out.Source)
	assert.Equal(t, "标题", out.Columns[1])
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "Close review", out.Rows[0][1], "snapshot keeps upstream order")

	out, err = r.Call(ctx, "market_news", map[string]any{"locale": "en"})
	require.NoError(t, err)
	assert.Equal(t, string(dataservice.SourceCache), out.Source, "locale is not part of the key")
	assert.Equal(t, 1, src.count(ResourceNews))

	_, err = r.Call(ctx, "market_news", map[string]any{"symbol": "600519"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.count(ResourceNews))
	assert.Equal(t, map[string]string{"symbol": "600519"}, src.last(ResourceNews).Params)
}

func TestOptionChain(t *testing.T) {
	r, src := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Call(ctx, "option_chain", map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidArgs)

	out, err := r.Call(ctx, "option_chain", map[string]any{"symbol": 510050.0, "expiry": "2023-03", "ignored": "x"})
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 2.7, out.Rows[0][1])
	assert.Equal(t, map[string]string{"symbol": "510050", "expiry": "2023-03"}, src.last(ResourceOptionChain).Params)
}

func TestCall_PropagatesUpstreamFailure(t *testing.T) {
	r, src := newTestRegistry(t)
	boom := errors.New("boom")
	src.routes[ResourceOptionChain] = func(upstream.Query) ([]record.Record, error) { return nil, boom }

	_, err := r.Call(context.Background(), "option_chain", map[string]any{"symbol": "510050"})
	assert.ErrorIs(t, err, boom)
}

func TestArgs_String(t *testing.T) {
	a := Args{"s": "  000300 ", "f": 300.0, "i": 7, "b": true}
	assert.Equal(t, "000300", a.String("s"))
	assert.Equal(t, "300", a.String("f"))
	assert.Equal(t, "7", a.String("i"))
	assert.Equal(t, "true", a.String("b"))
	assert.Equal(t, "", a.String("missing"))
}
