package dataservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/marketcache/cache"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
	"github.com/jonwraymond/marketcache/upstream"
)

// Source reports where a result's records came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceMerged   Source = "merged"
	SourceDegraded Source = "degraded"
)

// Request is one date-ranged query.
type Request struct {
	Resource string
	Params   map[string]string
	Range    tradedate.Range
	Freq     tradedate.Freq
}

// Result is the answer to a Request. Records are shared with concurrent
// callers when coalescing is on and must not be modified.
type Result struct {
	Records []record.Record
	Source  Source

	// Warning is set, as an *UpstreamError, when cached records were
	// served because the fetch failed.
	Warning error

	// Range is the request range after trading-day normalization.
	Range tradedate.Range

	// Fetched lists the ranges fetched from upstream and merged. It is nil
	// on a cache hit and on a degraded result.
	Fetched []tradedate.Range
}

// Option configures a Service.
type Option func(*Service)

// WithCalendar sets the trading calendar. Default: a WeekdayCalendar on
// the Manager's clock.
func WithCalendar(c tradedate.Calendar) Option {
	return func(s *Service) { s.calendar = c }
}

// WithTelemetry sets the logger, metrics and tracer.
func WithTelemetry(t observe.Telemetry) Option {
	return func(s *Service) { s.tel = t }
}

// WithCoalescing makes concurrent identical requests share one execution.
func WithCoalescing() Option {
	return func(s *Service) { s.coalesce = true }
}

// Service runs the incremental caching sequence for date-ranged resources.
//
// Contract:
// - Concurrency: safe for concurrent use. Requests for different keys are
//   independent; concurrent writes to one key are last-write-wins.
// - Errors: cache failures never surface. Upstream failures surface only
//   when no cached records exist for the request.
type Service struct {
	cache    *cache.Manager
	fetcher  upstream.Fetcher
	calendar tradedate.Calendar
	tel      observe.Telemetry
	coalesce bool
	group    singleflight.Group
}

// New creates a Service reading through m and fetching with f.
func New(m *cache.Manager, f upstream.Fetcher, opts ...Option) *Service {
	s := &Service{cache: m, fetcher: f}
	for _, opt := range opts {
		opt(s)
	}
	if s.calendar == nil {
		s.calendar = tradedate.NewWeekdayCalendar(tradedate.WeekdayCalendarConfig{Clock: m.Clock()})
	}
	s.tel = s.tel.OrNop()
	s.tel.Logger = s.tel.Logger.With(observe.F("component", "dataservice"))
	return s
}

// Cache returns the Manager the service reads through.
func (s *Service) Cache() *cache.Manager { return s.cache }

// GetCachedData returns the records cached at key.
func (s *Service) GetCachedData(ctx context.Context, key string) ([]record.Record, bool) {
	return s.cache.GetCachedData(ctx, key)
}

// SetCachedData caches records at key for ttl.
func (s *Service) SetCachedData(ctx context.Context, key string, records []record.Record, ttl time.Duration) bool {
	return s.cache.SetCachedData(ctx, key, records, ttl)
}

// KeyFor returns the cache key of req. The range is not part of the key.
func (s *Service) KeyFor(req Request) (string, error) {
	return s.cache.Key(req.Resource, keyParams{Params: req.Params, Freq: req.Freq.String()})
}

type keyParams struct {
	Params map[string]string `json:"params,omitempty"`
	Freq   string            `json:"freq"`
}

// Get returns the records of req, fetching only what the cache lacks.
func (s *Service) Get(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Resource) == "" {
		return nil, fmt.Errorf("%w: empty resource", ErrInvalidRequest)
	}
	if !req.Range.Start.IsZero() && !req.Range.End.IsZero() && req.Range.Start.After(req.Range.End) {
		return nil, fmt.Errorf("%w: start %s after end %s", ErrInvalidRequest,
			req.Range.Start.Format("2006-01-02"), req.Range.End.Format("2006-01-02"))
	}

	latest, err := s.calendar.LatestTradingDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataservice: latest trading day: %w", err)
	}
	rng := req.Range.Normalize(latest)
	if rng.Empty() {
		return &Result{Source: SourceCache, Range: rng}, nil
	}

	key, err := s.KeyFor(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if !s.coalesce {
		return s.get(ctx, req, key, rng)
	}
	// The shared fetch outlives any single caller; each caller stops
	// waiting when its own ctx is done.
	ch := s.group.DoChan(key+"|"+rng.String(), func() (any, error) {
		return s.get(context.WithoutCancel(ctx), req, key, rng)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

func (s *Service) get(ctx context.Context, req Request, key string, rng tradedate.Range) (*Result, error) {
	log := s.tel.Logger.With(observe.F("resource", req.Resource), observe.F("key", key))

	lookupCtx, span := s.tel.Tracer.StartOp(ctx, observe.Op{Stage: "lookup", Resource: req.Resource, Key: key})
	entry, cached := s.cache.GetEntry(lookupCtx, key)
	if cached && entry.Snapshot {
		entry, cached = nil, false
	}
	gaps := MissingRanges(entry, rng, req.Freq)
	s.tel.Tracer.EndSpan(span, nil)

	if len(gaps) == 0 {
		s.tel.Metrics.RecordLookup(ctx, req.Resource, observe.OutcomeHit)
		log.Debug(ctx, "cache hit", observe.F("range", rng.String()))
		return &Result{
			Records: within(entry.Records, rng, req.Freq),
			Source:  SourceCache,
			Range:   rng,
		}, nil
	}

	fetched, err := s.fetchGaps(ctx, req, gaps)
	if err != nil {
		uerr := &UpstreamError{Resource: req.Resource, Range: gapSpan(gaps), Err: err}
		var recs []record.Record
		if cached {
			recs = within(entry.Records, rng, req.Freq)
		}
		if len(recs) == 0 {
			s.tel.Metrics.RecordLookup(ctx, req.Resource, observe.OutcomeMiss)
			return nil, uerr
		}
		s.tel.Metrics.RecordLookup(ctx, req.Resource, observe.OutcomeDegraded)
		log.Warn(ctx, "upstream fetch failed, serving cached data",
			observe.F("range", rng.String()), observe.Err(err))
		return &Result{
			Records: recs,
			Source:  SourceDegraded,
			Warning: uerr,
			Range:   rng,
		}, nil
	}

	var (
		base   []record.Record
		from   = rng.Start
		thru   time.Time
		source = SourceUpstream
	)
	if cached {
		base = entry.Records
		from = entry.From
		thru = entry.Through
		source = SourceMerged
		s.tel.Metrics.RecordLookup(ctx, req.Resource, observe.OutcomePartial)
	} else {
		s.tel.Metrics.RecordLookup(ctx, req.Resource, observe.OutcomeMiss)
	}
	for _, g := range gaps {
		if g.Start.IsZero() || (!from.IsZero() && g.Start.Before(from)) {
			from = g.Start
		}
		if g.End.After(thru) {
			thru = g.End
		}
	}

	writeCtx, span := s.tel.Tracer.StartOp(ctx, observe.Op{Stage: "write", Resource: req.Resource, Key: key})
	merged := record.Merge(base, fetched)
	if len(merged) > 0 {
		ttl := s.cache.Policy().TTLFor(record.Latest(merged), s.today(), req.Freq.Intraday())
		s.cache.SetEntry(writeCtx, key, &cache.Entry{
			Records: merged,
			From:    from,
			Through: thru,
			TTL:     ttl,
		})
	}
	s.tel.Tracer.EndSpan(span, nil)

	log.Debug(ctx, "cache updated",
		observe.F("source", string(source)),
		observe.F("gaps", len(gaps)),
		observe.F("fetched", len(fetched)),
		observe.F("records", len(merged)))

	return &Result{
		Records: within(merged, rng, req.Freq),
		Source:  source,
		Range:   rng,
		Fetched: gaps,
	}, nil
}

func (s *Service) fetchGaps(ctx context.Context, req Request, gaps []tradedate.Range) ([]record.Record, error) {
	results := make([][]record.Record, len(gaps))
	g, gctx := errgroup.WithContext(ctx)
	for i, gap := range gaps {
		g.Go(func() error {
			recs, err := s.fetcher.Fetch(gctx, upstream.Query{
				Resource: req.Resource,
				Params:   req.Params,
				Range:    gap,
				Freq:     req.Freq,
			})
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []record.Record
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

// today is the market's current date when the calendar knows it.
func (s *Service) today() time.Time {
	if c, ok := s.calendar.(interface{ Today() time.Time }); ok {
		return c.Today()
	}
	return tradedate.Day(s.cache.Clock().Now())
}

// within returns the records inside rng. Weekly and monthly bars are
// matched from the start of the bucket holding rng.Start.
func within(records []record.Record, rng tradedate.Range, freq tradedate.Freq) []record.Record {
	from := rng.Start
	if !from.IsZero() && (freq.Unit == tradedate.UnitWeek || freq.Unit == tradedate.UnitMonth) {
		from = tradedate.Truncate(from, freq)
	}
	return record.Between(records, from, rng.Until())
}

// gapSpan returns the smallest range covering all gaps.
func gapSpan(gaps []tradedate.Range) tradedate.Range {
	out := gaps[0]
	for _, g := range gaps[1:] {
		if g.Start.Before(out.Start) {
			out.Start = g.Start
		}
		if g.End.After(out.End) {
			out.End = g.End
		}
	}
	return out
}
