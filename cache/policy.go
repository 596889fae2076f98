package cache

import "time"

// Policy chooses entry TTLs from how volatile the cached data is.
type Policy struct {
	// HistoricalTTL applies when the newest record predates today.
	// Default: 24h
	HistoricalTTL time.Duration `yaml:"historical_ttl"`

	// RecentTTL applies when daily-or-coarser data reaches today, and to
	// empty results. Default: 1h
	RecentTTL time.Duration `yaml:"recent_ttl"`

	// IntradayTTL applies when minute data reaches today. Default: 5m
	IntradayTTL time.Duration `yaml:"intraday_ttl"`

	// SnapshotTTL applies to whole-result tools such as news. Default: 10m
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`

	// MaxTTL clamps every TTL. If zero, no maximum is enforced.
	MaxTTL time.Duration `yaml:"max_ttl"`
}

// DefaultPolicy returns the default caching policy.
func DefaultPolicy() Policy {
	return Policy{
		HistoricalTTL: 24 * time.Hour,
		RecentTTL:     time.Hour,
		IntradayTTL:   5 * time.Minute,
		SnapshotTTL:   10 * time.Minute,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.HistoricalTTL == 0 {
		p.HistoricalTTL = d.HistoricalTTL
	}
	if p.RecentTTL == 0 {
		p.RecentTTL = d.RecentTTL
	}
	if p.IntradayTTL == 0 {
		p.IntradayTTL = d.IntradayTTL
	}
	if p.SnapshotTTL == 0 {
		p.SnapshotTTL = d.SnapshotTTL
	}
	return p
}

// ShouldCache reports whether any TTL is positive.
func (p Policy) ShouldCache() bool {
	return p.HistoricalTTL > 0 || p.RecentTTL > 0 || p.IntradayTTL > 0 || p.SnapshotTTL > 0
}

// TTLFor returns the TTL for a series whose newest record is dated latest.
// today is the current calendar day in the market's location; a zero latest
// means the series is empty.
func (p Policy) TTLFor(latest, today time.Time, intraday bool) time.Duration {
	var ttl time.Duration
	switch {
	case latest.IsZero():
		ttl = p.RecentTTL
	case !dayOf(latest).Before(dayOf(today)):
		if intraday {
			ttl = p.IntradayTTL
		} else {
			ttl = p.RecentTTL
		}
	default:
		ttl = p.HistoricalTTL
	}
	return p.clamp(ttl)
}

// EffectiveTTL returns override if positive, SnapshotTTL otherwise, clamped
// to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.SnapshotTTL
	}
	return p.clamp(ttl)
}

func (p Policy) clamp(ttl time.Duration) time.Duration {
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		return p.MaxTTL
	}
	return ttl
}

// dayOf compares calendar dates by wall clock, ignoring location.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
