package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string `yaml:"header_name"`

	// Keys are the registered keys.
	Keys []APIKeyInfo `yaml:"keys"`

	// Clock checks key expiry. Default: real clock
	Clock clockwork.Clock `yaml:"-"`
}

// APIKeyInfo describes one registered API key.
type APIKeyInfo struct {
	// ID names the key in logs. It is never the key itself.
	ID string `yaml:"id"`

	// KeyHash is the SHA-256 hex of the key (see HashAPIKey).
	KeyHash string `yaml:"key_hash"`

	// Principal is the identity associated with this key.
	Principal string `yaml:"principal"`

	// Roles are granted to callers presenting this key.
	Roles []string `yaml:"roles"`

	// ExpiresAt is when this key expires. Zero means never.
	ExpiresAt time.Time `yaml:"expires_at"`
}

// APIKeyStore looks keys up by hash.
type APIKeyStore interface {
	// Lookup returns nil, nil when no key has the hash.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates an API key authenticator. A nil store is
// replaced by a MemoryAPIKeyStore holding config.Keys.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) (*APIKeyAuthenticator, error) {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if store == nil {
		mem := NewMemoryAPIKeyStore()
		for i := range config.Keys {
			if err := mem.Add(&config.Keys[i]); err != nil {
				return nil, err
			}
		}
		store = mem
	}
	return &APIKeyAuthenticator{config: config, store: store}, nil
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return "api_key" }

// Supports returns true if the request contains an API key header.
func (a *APIKeyAuthenticator) Supports(req *Request) bool {
	return req.Header(a.config.HeaderName) != ""
}

// Authenticate validates the API key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	key := strings.TrimSpace(req.Header(a.config.HeaderName))
	if key == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("auth: api key lookup: %w", err)
	}
	if info == nil {
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}

	id := &Identity{
		Principal: info.Principal,
		Roles:     info.Roles,
		Method:    MethodAPIKey,
		ExpiresAt: info.ExpiresAt,
		Claims:    map[string]any{"key_id": info.ID},
	}
	if id.ExpiredAt(a.config.Clock.Now()) {
		return Failure(ErrTokenExpired, a.Name()), nil
	}
	return Success(id), nil
}

// HashAPIKey hashes an API key using SHA-256 for storage.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is an in-memory API key store.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore creates an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo)}
}

// Lookup retrieves an API key by its hash.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[strings.ToLower(keyHash)], nil
}

// Add registers a key. The hash must be 64 hex characters.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) error {
	h := strings.ToLower(info.KeyHash)
	if b, err := hex.DecodeString(h); err != nil || len(b) != sha256.Size {
		return fmt.Errorf("%w: api key %q: key_hash must be a sha256 hex digest", ErrInvalidConfig, info.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[h] = info
	return nil
}

// Remove unregisters a key.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, strings.ToLower(keyHash))
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
