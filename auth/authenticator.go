package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns (nil, error) for internal errors and
//   (Result, nil) for rejected credentials (check Result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if the request carries credentials this
	// authenticator understands.
	Supports(req *Request) bool

	// Authenticate validates the request credentials.
	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Request carries what an authenticator may inspect.
type Request struct {
	Headers http.Header

	// Resource is the tool being called, if any.
	Resource string
}

// Header returns the first value of the named header.
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Authenticated bool
	Identity      *Identity
	Error         error
	Method        string
}

// Success wraps an identity in an authenticated result.
func Success(id *Identity) *Result {
	return &Result{Authenticated: true, Identity: id, Method: string(id.Method)}
}

// Failure builds a rejected result.
func Failure(err error, method string) *Result {
	return &Result{Error: err, Method: method}
}

// Chain tries authenticators in order and returns the first success.
type Chain []Authenticator

// Name returns "chain".
func (c Chain) Name() string { return "chain" }

// Supports reports whether any member supports the request.
func (c Chain) Supports(req *Request) bool {
	for _, a := range c {
		if a.Supports(req) {
			return true
		}
	}
	return false
}

// Authenticate returns the first successful result, the last rejection, or
// ErrMissingCredentials when no member supports the request.
func (c Chain) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	var last *Result
	for _, a := range c {
		if !a.Supports(req) {
			continue
		}
		res, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Authenticated {
			return res, nil
		}
		last = res
	}
	if last != nil {
		return last, nil
	}
	return Failure(ErrMissingCredentials, ""), nil
}

var _ Authenticator = Chain(nil)
