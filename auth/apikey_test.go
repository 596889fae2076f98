package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func keyRequest(key string) *Request {
	return &Request{Headers: http.Header{"X-Api-Key": {key}}}
}

func newTestAPIKey(t *testing.T, clock clockwork.Clock) *APIKeyAuthenticator {
	t.Helper()
	a, err := NewAPIKeyAuthenticator(APIKeyConfig{
		Clock: clock,
		Keys: []APIKeyInfo{
			{ID: "ops", KeyHash: HashAPIKey("ops-key"), Principal: "ops", Roles: []string{"admin"}},
			{ID: "trial", KeyHash: HashAPIKey("trial-key"), Principal: "trial", ExpiresAt: testNow.Add(time.Hour)},
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewAPIKeyAuthenticator() error = %v", err)
	}
	return a
}

func TestHashAPIKey(t *testing.T) {
	got := HashAPIKey("test")
	want := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if got != want {
		t.Errorf("HashAPIKey() = %s, want %s", got, want)
	}
}

func TestAPIKeyAuthenticator_Authenticate(t *testing.T) {
	a := newTestAPIKey(t, clockwork.NewFakeClockAt(testNow))

	res, err := a.Authenticate(context.Background(), keyRequest("  ops-key "))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !res.Authenticated {
		t.Fatalf("Authenticated = false, error = %v", res.Error)
	}
	if res.Identity.Principal != "ops" || res.Identity.Method != MethodAPIKey {
		t.Errorf("Identity = %+v", res.Identity)
	}
	if res.Identity.Claims["key_id"] != "ops" {
		t.Errorf("key_id = %v", res.Identity.Claims["key_id"])
	}
}

func TestAPIKeyAuthenticator_UnknownKey(t *testing.T) {
	a := newTestAPIKey(t, clockwork.NewFakeClockAt(testNow))

	res, err := a.Authenticate(context.Background(), keyRequest("nope"))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if res.Authenticated || !errors.Is(res.Error, ErrInvalidCredentials) {
		t.Errorf("result = %+v, want ErrInvalidCredentials", res)
	}
}

func TestAPIKeyAuthenticator_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	a := newTestAPIKey(t, clock)

	res, _ := a.Authenticate(context.Background(), keyRequest("trial-key"))
	if !res.Authenticated {
		t.Fatalf("trial key rejected before expiry: %v", res.Error)
	}

	clock.Advance(time.Hour)
	res, _ = a.Authenticate(context.Background(), keyRequest("trial-key"))
	if res.Authenticated || !errors.Is(res.Error, ErrTokenExpired) {
		t.Errorf("result = %+v, want ErrTokenExpired", res)
	}
}

func TestMemoryAPIKeyStore_RejectsBadHash(t *testing.T) {
	s := NewMemoryAPIKeyStore()
	err := s.Add(&APIKeyInfo{ID: "raw", KeyHash: "plaintext-key"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Add() error = %v, want ErrInvalidConfig", err)
	}
}

func TestMemoryAPIKeyStore_Remove(t *testing.T) {
	s := NewMemoryAPIKeyStore()
	h := HashAPIKey("k")
	if err := s.Add(&APIKeyInfo{ID: "k", KeyHash: h}); err != nil {
		t.Fatal(err)
	}
	s.Remove(h)
	info, err := s.Lookup(context.Background(), h)
	if err != nil || info != nil {
		t.Errorf("Lookup() = %v, %v after Remove", info, err)
	}
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (*APIKeyInfo, error) {
	return nil, errors.New("store down")
}

func TestAPIKeyAuthenticator_StoreError(t *testing.T) {
	a, err := NewAPIKeyAuthenticator(APIKeyConfig{}, failingStore{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(context.Background(), keyRequest("k")); err == nil {
		t.Fatal("expected internal error")
	}
}
