package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/marketcache/auth"
	"github.com/jonwraymond/marketcache/dataservice"
	"github.com/jonwraymond/marketcache/health"
	"github.com/jonwraymond/marketcache/observe"
	"github.com/jonwraymond/marketcache/tools"
	"github.com/jonwraymond/marketcache/upstream"
)

func newTestServer(t *testing.T, authn auth.Authenticator) *Server {
	t.Helper()
	reg := tools.NewRegistry(observe.NopTelemetry())
	require.NoError(t, reg.Register(tools.Tool{
		Name:     "echo",
		Category: tools.CategoryHistory,
		Handler: func(ctx context.Context, a tools.Args) (*tools.Output, error) {
			return &tools.Output{
				Columns: []string{"symbol", "principal"},
				Rows:    [][]any{{a.String("symbol"), auth.PrincipalFromContext(ctx)}},
				Source:  "cache",
			}, nil
		},
	}))
	require.NoError(t, reg.Register(tools.Tool{
		Name: "fail",
		Handler: func(_ context.Context, a tools.Args) (*tools.Output, error) {
			switch a.String("mode") {
			case "args":
				return nil, tools.ErrInvalidArgs
			case "upstream":
				return nil, &dataservice.UpstreamError{Resource: "x", Err: upstream.ErrStatus}
			default:
				return nil, errors.New("boom")
			}
		},
	}))

	agg := health.NewAggregator()
	agg.Register(health.NewCheckerFunc("cache", func(context.Context) health.Result {
		return health.Healthy("ok")
	}))

	return New(Config{Addr: "127.0.0.1:0", Metrics: true}, reg, agg, authn, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/tools", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tools, 2)
	assert.Equal(t, "echo", body.Tools[0].Name)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCallTool(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/tools/echo", `{"symbol":"000300"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out tools.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []any{"000300", "anonymous"}, out.Rows[0])
	assert.Equal(t, "cache", out.Source)
}

func TestCallTool_EmptyBody(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/tools/echo", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallTool_ErrorStatus(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown tool", "/tools/nope", `{}`, http.StatusNotFound},
		{"malformed body", "/tools/echo", `{"symbol":`, http.StatusBadRequest},
		{"invalid args", "/tools/fail", `{"mode":"args"}`, http.StatusBadRequest},
		{"upstream failure", "/tools/fail", `{"mode":"upstream"}`, http.StatusBadGateway},
		{"internal", "/tools/fail", `{}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, tt.path, tt.body, http.Header{RequestIDHeader: {"req-1"}})
			assert.Equal(t, tt.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestToolsRequireAuth(t *testing.T) {
	authn, err := auth.New(auth.Config{
		Mode:   auth.ModeAPIKey,
		APIKey: auth.APIKeyConfig{Keys: []auth.APIKeyInfo{{ID: "ops", KeyHash: auth.HashAPIKey("k"), Principal: "ops"}}},
	})
	require.NoError(t, err)
	s := newTestServer(t, authn)

	rec := do(t, s.Handler(), http.MethodPost, "/tools/echo", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, "/tools/echo", `{}`, http.Header{"X-Api-Key": {"k"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out tools.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ops", out.Rows[0][1])

	rec = do(t, s.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache"`)

	rec = do(t, s.Handler(), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID_Generated(t *testing.T) {
	s := newTestServer(t, nil)
	a := do(t, s.Handler(), http.MethodGet, "/tools", "", nil).Header().Get(RequestIDHeader)
	b := do(t, s.Handler(), http.MethodGet, "/tools", "", nil).Header().Get(RequestIDHeader)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
