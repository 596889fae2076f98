package upstream

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/tradedate"
)

// Sentinel errors for upstream fetches.
var (
	// ErrFetchFailed wraps every failure to obtain records from a source.
	ErrFetchFailed = errors.New("upstream: fetch failed")

	// ErrStatus indicates a non-2xx HTTP response.
	ErrStatus = errors.New("upstream: unexpected status")

	// ErrUnknownResource indicates no endpoint is configured for a resource.
	ErrUnknownResource = errors.New("upstream: unknown resource")

	// ErrMalformedResponse indicates a body that could not be turned into records.
	ErrMalformedResponse = errors.New("upstream: malformed response")
)

// Query identifies one fetch: a resource, its parameters and a date range.
type Query struct {
	Resource string
	Params   map[string]string
	Range    tradedate.Range
	Freq     tradedate.Freq
}

// String formats the query for logs.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Resource)
	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" " + k + "=" + q.Params[k])
	}
	b.WriteString(" freq=" + q.Freq.String())
	b.WriteString(" range=" + q.Range.String())
	return b.String()
}

// Fetcher returns records for a query.
//
// Contract:
// - Ordering: records are returned in the source's order; callers sort.
// - Errors: failures wrap ErrFetchFailed. Errors that retrying cannot fix
//   are marked with resilience.Permanent.
// - Context: Fetch must honor cancellation and deadlines.
// - Concurrency: implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]record.Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, q Query) ([]record.Record, error)

// Fetch calls f(ctx, q).
func (f FetcherFunc) Fetch(ctx context.Context, q Query) ([]record.Record, error) {
	return f(ctx, q)
}

var _ Fetcher = FetcherFunc(nil)
