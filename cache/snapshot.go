package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
)

// FetchFunc produces a whole result for a snapshot query.
type FetchFunc func(ctx context.Context) ([]record.Record, error)

type bypassKey struct{}

// WithBypass marks ctx so Snapshot.Execute skips the lookup and refreshes
// the stored result.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Snapshot caches whole results of queries that are not date-ranged series,
// such as news feeds and option chains.
type Snapshot struct {
	m   *Manager
	ttl time.Duration
}

// NewSnapshot returns a Snapshot writing through m. ttl<=0 uses the
// Manager policy's SnapshotTTL.
func NewSnapshot(m *Manager, ttl time.Duration) *Snapshot {
	return &Snapshot{m: m, ttl: m.Policy().EffectiveTTL(ttl)}
}

// Execute returns the stored result for (resource, params) or runs fetch and
// stores its result. The bool reports a cache hit. Errors are not cached.
func (s *Snapshot) Execute(ctx context.Context, resource string, params any, fetch FetchFunc) ([]record.Record, bool, error) {
	if s.ttl <= 0 {
		recs, err := fetch(ctx)
		return recs, false, err
	}

	key, err := s.m.Key(resource, params)
	if err != nil {
		s.m.log.Warn(ctx, "snapshot key failed, fetching uncached", observe.F("resource", resource), observe.Err(err))
		recs, err := fetch(ctx)
		return recs, false, err
	}

	if !bypassed(ctx) {
		if e, ok := s.m.GetEntry(ctx, key); ok {
			return e.Records, true, nil
		}
	}

	recs, err := fetch(ctx)
	if err != nil {
		return recs, false, err
	}

	s.m.SetEntry(ctx, key, &Entry{Records: recs, TTL: s.ttl, Snapshot: true})
	return recs, false, nil
}
