package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// SecretProvider resolves secret references.
//
// Implementations must be safe for concurrent use and must not log secret values.
type SecretProvider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// FileProvider reads a secret from a file, such as a mounted Docker or
// Kubernetes secret. Trailing newlines are trimmed.
type FileProvider struct{}

// Name returns "file".
func (FileProvider) Name() string { return "file" }

// Resolve reads the file at ref.
func (FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	b, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// SecretResolver replaces secretref:<provider>:<ref> values.
//
// A value that is exactly a reference is replaced whole; references inside
// a longer value (e.g. "Bearer secretref:file:/run/token") are replaced in
// place. Empty resolved values are errors.
type SecretResolver struct {
	providers map[string]SecretProvider
}

// NewSecretResolver creates a resolver. FileProvider is always registered.
func NewSecretResolver(providers ...SecretProvider) *SecretResolver {
	r := &SecretResolver{providers: map[string]SecretProvider{"file": FileProvider{}}}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

var secretRefPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// Resolve returns value with every reference resolved.
func (r *SecretResolver) Resolve(ctx context.Context, value string) (string, error) {
	matches := secretRefPattern.FindAllStringSubmatchIndex(value, -1)
	out := value
	// Replace from the end so earlier indexes stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		name, ref := out[m[2]:m[3]], out[m[4]:m[5]]

		p, ok := r.providers[name]
		if !ok {
			return "", fmt.Errorf("%w: secret provider %q is not registered", ErrInvalidConfig, name)
		}
		resolved, err := p.Resolve(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("%w: secret %s: %w", ErrInvalidConfig, name, err)
		}
		if resolved == "" {
			return "", fmt.Errorf("%w: secret provider %q returned empty value", ErrInvalidConfig, name)
		}
		out = out[:m[0]] + resolved + out[m[1]:]
	}
	return out, nil
}

// resolveSecrets resolves every field that may carry a credential.
func (c *Config) resolveSecrets(ctx context.Context, r *SecretResolver) error {
	fields := []*string{
		&c.Cache.RedisPassword,
		&c.Server.Auth.JWT.Secret,
	}
	for i := range fields {
		v, err := r.Resolve(ctx, *fields[i])
		if err != nil {
			return err
		}
		*fields[i] = v
	}
	for k, v := range c.Upstream.HTTP.Headers {
		resolved, err := r.Resolve(ctx, v)
		if err != nil {
			return fmt.Errorf("upstream header %s: %w", k, err)
		}
		c.Upstream.HTTP.Headers[k] = resolved
	}
	return nil
}
