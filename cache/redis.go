package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis under "<namespace>:" with native TTLs.
type RedisStore struct {
	rdb       redis.UniversalClient
	namespace string
	timeout   time.Duration
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key. Default: "marketcache"
	Namespace string

	// OpTimeout bounds each command. Default: DefaultOpTimeout
	OpTimeout time.Duration
}

// NewRedisStore creates a client for opts.Addr. It does not dial; use Ping
// to check reachability.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is empty", ErrInvalidConfig)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreFromClient(rdb, opts.Namespace, opts.OpTimeout), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns the
// client and closes it on Close.
func NewRedisStoreFromClient(rdb redis.UniversalClient, namespace string, timeout time.Duration) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &RedisStore{rdb: rdb, namespace: namespace, timeout: timeout}
}

func (s *RedisStore) key(k string) string {
	if strings.HasPrefix(k, s.namespace+":") {
		return k
	}
	return s.namespace + ":" + k
}

func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Get returns the stored bytes. Connection errors are a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set writes value with ttl. TTL<=0 stores nothing.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes key. Idempotent.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: redis del: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear deletes every key under the namespace prefix using SCAN, so other
// applications sharing the database are untouched.
func (s *RedisStore) Clear(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	iter := s.rdb.Scan(ctx, 0, escapeGlob(s.namespace)+":*", 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.rdb.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return fmt.Errorf("%w: redis clear: %v", ErrBackendUnavailable, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: redis scan: %v", ErrBackendUnavailable, err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("%w: redis clear: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*RedisStore)(nil)
