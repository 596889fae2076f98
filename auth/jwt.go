package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HMAC signing key. Required.
	Secret string `yaml:"secret"`

	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string `yaml:"issuer"`

	// Audience is the expected aud claim. Empty skips the check.
	Audience string `yaml:"audience"`

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string `yaml:"header_name"`

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string `yaml:"token_prefix"`

	// RolesClaim is the claim containing caller roles.
	// Default: "roles"
	RolesClaim string `yaml:"roles_claim"`

	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration `yaml:"leeway"`

	// Clock validates time claims. Default: real clock
	Clock clockwork.Clock `yaml:"-"`
}

// JWTAuthenticator validates HS256/384/512 bearer tokens.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator. The secret is required.
func NewJWTAuthenticator(config JWTConfig) (*JWTAuthenticator, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is required", ErrInvalidConfig)
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithTimeFunc(config.Clock.Now),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}, nil
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return "jwt" }

// Supports returns true if the header carries the token prefix.
func (a *JWTAuthenticator) Supports(req *Request) bool {
	return strings.HasPrefix(req.Header(a.config.HeaderName), a.config.TokenPrefix)
}

// Authenticate validates the bearer token.
func (a *JWTAuthenticator) Authenticate(_ context.Context, req *Request) (*Result, error) {
	header := req.Header(a.config.HeaderName)
	raw, ok := strings.CutPrefix(header, a.config.TokenPrefix)
	if !ok || strings.TrimSpace(raw) == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return []byte(a.config.Secret), nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Failure(ErrTokenExpired, a.Name()), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Failure(ErrTokenMalformed, a.Name()), nil
	default:
		return Failure(fmt.Errorf("%w: %w", ErrInvalidCredentials, err), a.Name()), nil
	}

	id := &Identity{
		Method: MethodJWT,
		Claims: map[string]any(claims),
		Roles:  stringSlice(claims[a.config.RolesClaim]),
	}
	id.Principal, _ = claims.GetSubject()
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	if id.Principal == "" {
		return Failure(fmt.Errorf("%w: token has no subject", ErrInvalidCredentials), a.Name()), nil
	}
	return Success(id), nil
}

func stringSlice(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s, ok := s.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

var _ Authenticator = (*JWTAuthenticator)(nil)
