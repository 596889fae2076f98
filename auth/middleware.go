package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/marketcache/observe"
)

// Middleware authenticates every request with a and attaches the identity
// to the request context. A nil authenticator attaches AnonymousIdentity.
// Rejected requests get 401 with a JSON error body; lookup failures get 500.
func Middleware(a Authenticator, log observe.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if a == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, AnonymousIdentity())))
				return
			}

			req := &Request{Headers: r.Header, Resource: r.URL.Path}
			res, err := a.Authenticate(ctx, req)
			if err != nil {
				log.Error(ctx, "authentication error", observe.F("path", r.URL.Path), observe.Err(err))
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if !res.Authenticated {
				reason := ErrMissingCredentials
				if res.Error != nil {
					reason = res.Error
				}
				log.Warn(ctx, "authentication rejected",
					observe.F("path", r.URL.Path),
					observe.F("method", res.Method),
					observe.Err(reason),
				)
				writeError(w, http.StatusUnauthorized, publicReason(reason))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, res.Identity)))
		})
	}
}

func publicReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "missing credentials"
	case errors.Is(err, ErrTokenExpired):
		return "credentials expired"
	default:
		return "invalid credentials"
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
