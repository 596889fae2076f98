package auth

import (
	"slices"
	"time"
)

// Method indicates how a caller was authenticated.
type Method string

const (
	MethodNone      Method = "none"
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Principal is the unique caller identifier (token subject or key owner).
	Principal string

	// Roles are the roles granted to the caller.
	Roles []string

	// Method indicates how authentication was performed.
	Method Method

	// Claims holds raw token claims, or key metadata for API keys.
	Claims map[string]any

	// ExpiresAt is when the credential expires. Zero means never.
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// ExpiredAt reports whether the identity has expired at now.
func (id *Identity) ExpiredAt(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id.Method == MethodAnonymous || id.Principal == ""
}

// AnonymousIdentity is attached when authentication is disabled.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    MethodAnonymous,
	}
}
