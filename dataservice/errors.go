package dataservice

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/marketcache/tradedate"
)

// Sentinel errors for data service operations.
var (
	// ErrUpstreamFetchFailed is wrapped by every UpstreamError.
	ErrUpstreamFetchFailed = errors.New("dataservice: upstream fetch failed")

	// ErrInvalidRequest indicates a request missing required fields.
	ErrInvalidRequest = errors.New("dataservice: invalid request")
)

// UpstreamError reports a failed fetch of one resource range. It is the
// returned error when nothing was cached, and Result.Warning otherwise.
type UpstreamError struct {
	Resource string
	Range    tradedate.Range
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrUpstreamFetchFailed, e.Resource, e.Range, e.Err)
}

// Unwrap exposes both ErrUpstreamFetchFailed and the fetch error.
func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamFetchFailed, e.Err}
}
