package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures the Manager's backend.
type Config struct {
	// Backend is memory, sqlite or redis. Default: memory
	Backend string `yaml:"backend"`

	RedisHost     string `yaml:"redis_host"` // Default: localhost
	RedisPort     int    `yaml:"redis_port"` // Default: 6379
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// SQLitePath is the database file. Default: <user cache dir>/marketcache/cache.db
	SQLitePath string `yaml:"sqlite_path"`

	// Namespace prefixes keys and scopes ClearAll. Default: "marketcache"
	Namespace string `yaml:"namespace"`

	// OpTimeout bounds each backend operation. Default: 5s
	OpTimeout time.Duration `yaml:"op_timeout"`

	// Policy chooses TTLs. Zero fields take DefaultPolicy values.
	Policy Policy `yaml:"policy"`
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.RedisPort < 0 || c.RedisPort > 65535 {
		return fmt.Errorf("%w: redis port %d out of range", ErrInvalidConfig, c.RedisPort)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("%w: redis db must be >= 0", ErrInvalidConfig)
	}
	if c.OpTimeout < 0 {
		return fmt.Errorf("%w: op timeout must be >= 0", ErrInvalidConfig)
	}
	if err := ValidateKey(c.Namespace + "x"); err != nil {
		return fmt.Errorf("%w: namespace: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.SQLitePath == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		c.SQLitePath = filepath.Join(dir, "marketcache", "cache.db")
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	c.Policy = c.Policy.WithDefaults()
	return c
}

// RedisAddr returns host:port.
func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default: observe.NopLogger()
func WithLogger(l observe.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock sets the clock used for WrittenAt and the memory/sqlite expiry.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithStore bypasses backend construction and uses s directly.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// Stats is a snapshot of Manager counters.
type Stats struct {
	Backend      string
	Hits         uint64
	Misses       uint64
	Sets         uint64
	SetFailures  uint64
	DecodeErrors uint64
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Manager is the typed façade over a Store. It is constructed once at
// startup and passed to every data service.
//
// Contract:
// - Concurrency: safe for concurrent use; entries are independent per key.
// - Errors: after construction no method panics or surfaces backend errors
//   from reads. Reads fail open to "absent"; writes report false.
type Manager struct {
	store   Store
	backend string
	keyer   *DefaultKeyer
	policy  Policy
	clock   clockwork.Clock
	log     observe.Logger

	closeOnce sync.Once
	closeErr  error

	hits, misses, sets, setFailures, decodeErrors atomic.Uint64
}

// NewManager validates cfg and opens the configured backend. Only invalid
// configuration is fatal; an unreachable backend is logged and the Manager
// serves misses until it recovers.
func NewManager(ctx context.Context, cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	m := &Manager{
		backend: cfg.Backend,
		keyer:   NewKeyer(cfg.Namespace),
		policy:  cfg.Policy,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.log == nil {
		m.log = observe.NopLogger()
	}
	m.log = m.log.With(observe.F("component", "cache"))

	if m.store != nil {
		return m, nil
	}

	switch cfg.Backend {
	case BackendMemory:
		m.store = NewMemoryStore(m.clock)

	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath, SQLiteOptions{
			Namespace: cfg.Namespace,
			OpTimeout: cfg.OpTimeout,
			Clock:     m.clock,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidConfig) {
				return nil, err
			}
			m.log.Warn(ctx, "sqlite cache unavailable, using memory",
				observe.F("path", cfg.SQLitePath), observe.Err(err))
			m.store = NewMemoryStore(m.clock)
			m.backend = BackendMemory
			break
		}
		m.store = s

	case BackendRedis:
		s, err := NewRedisStore(RedisOptions{
			Addr:      cfg.RedisAddr(),
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.Namespace,
			OpTimeout: cfg.OpTimeout,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			m.log.Warn(ctx, "redis unreachable at startup, cache will miss until it recovers",
				observe.F("addr", cfg.RedisAddr()), observe.Err(err))
		}
		m.store = s
	}

	m.log.Info(ctx, "cache manager ready",
		observe.F("backend", m.backend), observe.F("namespace", cfg.Namespace))
	return m, nil
}

// Keyer returns the key builder bound to this Manager's namespace.
func (m *Manager) Keyer() Keyer { return m.keyer }

// Key is shorthand for Keyer().Key.
func (m *Manager) Key(resource string, params any) (string, error) {
	return m.keyer.Key(resource, params)
}

// Policy returns the TTL policy.
func (m *Manager) Policy() Policy { return m.policy }

// Clock returns the Manager's clock.
func (m *Manager) Clock() clockwork.Clock { return m.clock }

// Backend returns the active backend name.
func (m *Manager) Backend() string { return m.backend }

// GetEntry returns the entry at key. Misses, backend failures and undecodable
// blobs all report (nil, false).
func (m *Manager) GetEntry(ctx context.Context, key string) (*Entry, bool) {
	b, ok := m.store.Get(ctx, key)
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	e, err := DecodeEntry(b)
	if err != nil {
		m.misses.Add(1)
		m.decodeErrors.Add(1)
		m.log.Warn(ctx, "dropping undecodable cache entry", observe.F("key", key), observe.Err(err))
		_ = m.store.Delete(ctx, key)
		return nil, false
	}
	m.hits.Add(1)
	return e, true
}

// SetEntry stores e under key with e.TTL. WrittenAt is stamped when unset.
// It reports whether the write succeeded.
func (m *Manager) SetEntry(ctx context.Context, key string, e *Entry) bool {
	if e == nil || e.TTL <= 0 {
		return false
	}
	if e.WrittenAt.IsZero() {
		e.WrittenAt = m.clock.Now().UTC()
	}
	b, err := EncodeEntry(e)
	if err != nil {
		m.setFailures.Add(1)
		m.log.Warn(ctx, "cache encode failed", observe.F("key", key), observe.Err(err))
		return false
	}
	if err := m.store.Set(ctx, key, b, e.TTL); err != nil {
		m.setFailures.Add(1)
		m.log.Warn(ctx, "cache write failed", observe.F("key", key), observe.Err(err))
		return false
	}
	m.sets.Add(1)
	m.log.Debug(ctx, "cache write", observe.F("key", key),
		observe.F("records", len(e.Records)), observe.F("ttl", e.TTL))
	return true
}

// GetCachedData returns the records stored at key.
func (m *Manager) GetCachedData(ctx context.Context, key string) ([]record.Record, bool) {
	e, ok := m.GetEntry(ctx, key)
	if !ok {
		return nil, false
	}
	return e.Records, true
}

// SetCachedData normalizes and stores records under key. The entry's From is
// the earliest record date.
func (m *Manager) SetCachedData(ctx context.Context, key string, records []record.Record, ttl time.Duration) bool {
	merged := record.Merge(nil, records)
	return m.SetEntry(ctx, key, &Entry{
		Records: merged,
		From:    record.Earliest(merged),
		TTL:     ttl,
	})
}

// Clear removes one key and reports whether the backend accepted the delete.
func (m *Manager) Clear(ctx context.Context, key string) bool {
	if err := m.store.Delete(ctx, key); err != nil {
		m.log.Warn(ctx, "cache delete failed", observe.F("key", key), observe.Err(err))
		return false
	}
	return true
}

// ClearAll removes every entry in this Manager's namespace.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn(ctx, "cache clear failed", observe.Err(err))
		return err
	}
	m.log.Info(ctx, "cache cleared", observe.F("backend", m.backend))
	return nil
}

// Ping checks the backend.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Close releases the backend. Safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.store.Close()
	})
	return m.closeErr
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Backend:      m.backend,
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		Sets:         m.sets.Load(),
		SetFailures:  m.setFailures.Load(),
		DecodeErrors: m.decodeErrors.Load(),
	}
}
