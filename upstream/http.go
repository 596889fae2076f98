package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/record"
	"github.com/jonwraymond/marketcache/resilience"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 32 << 20

// Endpoint describes how one resource is fetched and where its rows live in
// the JSON response.
type Endpoint struct {
	// Path is joined to the base URL. "{name}" segments are replaced by the
	// query parameter of that name, which is then not sent as a query value.
	Path string `yaml:"path"`

	// Rows is the gjson path of the row array. Empty means the document root.
	// A missing or null value yields no records.
	Rows string `yaml:"rows"`

	// Columns names the values of rows encoded as arrays or delimited strings.
	Columns []string `yaml:"columns"`

	// Separator splits string rows. Default: ","
	Separator string `yaml:"separator"`

	// Query holds static query parameters sent with every request.
	Query map[string]string `yaml:"query"`

	// StartParam and EndParam name the range bounds.
	// Default: start_date and end_date.
	StartParam string `yaml:"start_param"`
	EndParam   string `yaml:"end_param"`

	// DateLayout formats the range bounds. Default: 20060102
	DateLayout string `yaml:"date_layout"`

	// FreqParam names the frequency parameter. Empty means it is not sent.
	FreqParam string `yaml:"freq_param"`
}

func (e Endpoint) withDefaults() Endpoint {
	if e.Separator == "" {
		e.Separator = ","
	}
	if e.StartParam == "" {
		e.StartParam = "start_date"
	}
	if e.EndParam == "" {
		e.EndParam = "end_date"
	}
	if e.DateLayout == "" {
		e.DateLayout = "20060102"
	}
	return e
}

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	// BaseURL is the scheme and host every endpoint path is joined to.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single request when no client is supplied.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`

	// Headers are sent with every request, typically an API token.
	Headers map[string]string `yaml:"headers"`

	// Endpoints maps resource names to endpoints.
	Endpoints map[string]Endpoint `yaml:"endpoints"`
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l observe.Logger) HTTPOption {
	return func(f *HTTPFetcher) { f.log = l }
}

// HTTPFetcher fetches JSON from per-resource HTTP endpoints and turns the
// selected rows into records.
type HTTPFetcher struct {
	base      *url.URL
	userAgent string
	headers   map[string]string
	endpoints map[string]Endpoint
	client    *http.Client
	log       observe.Logger
}

// NewHTTPFetcher validates cfg and creates a fetcher.
func NewHTTPFetcher(cfg HTTPConfig, opts ...HTTPOption) (*HTTPFetcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	endpoints := make(map[string]Endpoint, len(cfg.Endpoints))
	for name, ep := range cfg.Endpoints {
		endpoints[name] = ep.withDefaults()
	}

	f := &HTTPFetcher{
		base:      base,
		userAgent: cfg.UserAgent,
		headers:   cfg.Headers,
		endpoints: endpoints,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = observe.NopLogger()
	}
	return f, nil
}

// Resources returns the configured resource names.
func (f *HTTPFetcher) Resources() []string {
	out := make([]string, 0, len(f.endpoints))
	for name := range f.endpoints {
		out = append(out, name)
	}
	return out
}

// Fetch requests the endpoint configured for q.Resource.
// 4xx responses other than 429 are permanent; 429, 5xx and transport
// errors may be retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, q Query) ([]record.Record, error) {
	ep, ok := f.endpoints[q.Resource]
	if !ok {
		return nil, resilience.Permanent(fmt.Errorf("%w: %w: %s", ErrFetchFailed, ErrUnknownResource, q.Resource))
	}

	u, err := f.buildURL(ep, q)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("%w: %s: %w", ErrFetchFailed, q.Resource, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("%w: %s: create request: %w", ErrFetchFailed, q.Resource, err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, q.Resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %w", ErrFetchFailed, q.Resource, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w: %s: %w: %d", ErrFetchFailed, q.Resource, ErrStatus, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	records, err := parseRows(body, ep)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("%w: %s: %w", ErrFetchFailed, q.Resource, err))
	}

	f.log.Debug(ctx, "upstream fetch",
		observe.F("resource", q.Resource),
		observe.F("range", q.Range.String()),
		observe.F("records", len(records)))
	return records, nil
}

func (f *HTTPFetcher) buildURL(ep Endpoint, q Query) (string, error) {
	path := ep.Path
	values := url.Values{}
	for k, v := range ep.Query {
		values.Set(k, v)
	}
	for k, v := range q.Params {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(v))
			continue
		}
		values.Set(k, v)
	}
	if strings.Contains(path, "{") {
		return "", fmt.Errorf("unresolved path parameter in %q", path)
	}

	if !q.Range.Start.IsZero() {
		values.Set(ep.StartParam, q.Range.Start.Format(ep.DateLayout))
	}
	if !q.Range.End.IsZero() {
		values.Set(ep.EndParam, q.Range.End.Format(ep.DateLayout))
	}
	if ep.FreqParam != "" {
		values.Set(ep.FreqParam, q.Freq.String())
	}

	u := f.base.JoinPath(path)
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// textFields are kept as strings when rows arrive as delimited text.
var textFields = map[record.Field]bool{
	record.FieldDate:    true,
	record.FieldSymbol:  true,
	record.FieldName:    true,
	record.FieldTitle:   true,
	record.FieldContent: true,
	record.FieldSource:  true,
	record.FieldURL:     true,
	record.FieldExpiry:  true,
}

func parseRows(body []byte, ep Endpoint) ([]record.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	rows := gjson.ParseBytes(body)
	if ep.Rows != "" {
		rows = rows.Get(ep.Rows)
	}
	if !rows.Exists() || rows.Type == gjson.Null {
		return nil, nil
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("%w: %q is not an array", ErrMalformedResponse, ep.Rows)
	}

	var (
		records []record.Record
		perr    error
	)
	rows.ForEach(func(_, row gjson.Result) bool {
		raw, err := rowValues(row, ep)
		if err != nil {
			perr = err
			return false
		}
		records = append(records, record.Translate(raw))
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return records, nil
}

func rowValues(row gjson.Result, ep Endpoint) (map[string]any, error) {
	raw := make(map[string]any)
	switch {
	case row.IsObject():
		row.ForEach(func(k, v gjson.Result) bool {
			if s := scalar(v); s != nil {
				raw[k.String()] = s
			}
			return true
		})

	case row.IsArray():
		for i, v := range row.Array() {
			if i >= len(ep.Columns) {
				break
			}
			if s := scalar(v); s != nil {
				raw[ep.Columns[i]] = s
			}
		}

	case row.Type == gjson.String:
		for i, part := range strings.Split(row.Str, ep.Separator) {
			if i >= len(ep.Columns) {
				break
			}
			raw[ep.Columns[i]] = textValue(ep.Columns[i], part)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported row %s", ErrMalformedResponse, row.Raw)
	}
	return raw, nil
}

func scalar(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.String:
		return v.Str
	default:
		return v.Raw
	}
}

func textValue(column, s string) any {
	s = strings.TrimSpace(s)
	if textFields[record.Lookup(column)] {
		return s
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

var _ Fetcher = (*HTTPFetcher)(nil)
