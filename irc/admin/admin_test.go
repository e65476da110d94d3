package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/metrics"
	"github.com/presbrey/ircd/irc/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	channels []server.ChannelInfo
	notices  []string
	err      error
}

func (f *fakeBackend) Stats(ctx context.Context) (server.Stats, error) {
	if f.err != nil {
		return server.Stats{}, f.err
	}
	return server.Stats{Sessions: 3, Registered: 2, Channels: len(f.channels), Uptime: "1m0s"}, nil
}

func (f *fakeBackend) ChannelList(ctx context.Context) ([]server.ChannelInfo, error) {
	return f.channels, f.err
}

func (f *fakeBackend) NoticeChannel(ctx context.Context, name, text string) error {
	for _, ch := range f.channels {
		if ch.Name == name {
			f.notices = append(f.notices, name+" "+text)
			return nil
		}
	}
	return server.ErrNoSuchChannel
}

func newTestAPI(t *testing.T, tokens ...string) (*API, *fakeBackend, *metrics.Collector) {
	t.Helper()
	cfg := config.Default()
	cfg.Admin.Tokens = tokens
	backend := &fakeBackend{channels: []server.ChannelInfo{
		{
			Name:      "#go",
			Topic:     "gophers",
			Modes:     "+t",
			Members:   []string{"@alice", "bob"},
			CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}}
	collector := metrics.New()
	return New(backend, cfg, collector), backend, collector
}

func do(api *API, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	api, _, _ := newTestAPI(t, "s3cret")

	rec := do(api, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := do(api, http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats server.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Sessions)
	assert.Equal(t, 2, stats.Registered)
	assert.Equal(t, 1, stats.Channels)
}

func TestChannels(t *testing.T) {
	api, backend, _ := newTestAPI(t)

	rec := do(api, http.MethodGet, "/api/channels", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"#go","topic":"gophers","modes":"+t","members":["@alice","bob"],"created_at":"2024-01-02T03:04:05Z"}]`, rec.Body.String())

	backend.channels = nil
	rec = do(api, http.MethodGet, "/api/channels", "", "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestNotice(t *testing.T) {
	api, backend, _ := newTestAPI(t)

	rec := do(api, http.MethodPost, "/api/channels/go/notice", `{"text":"restart at noon"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"#go restart at noon"}, backend.notices)

	rec = do(api, http.MethodPost, "/api/channels/%23go/notice", `{"text":"again"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, backend.notices, 2)

	rec = do(api, http.MethodPost, "/api/channels/missing/notice", `{"text":"hi"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(api, http.MethodPost, "/api/channels/go/notice", `{"text":""}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "text failed required")

	rec = do(api, http.MethodPost, "/api/channels/go/notice", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackendUnavailable(t *testing.T) {
	api, backend, _ := newTestAPI(t)
	backend.err = errors.New("server: closed")

	rec := do(api, http.MethodGet, "/api/stats", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBearerTokens(t *testing.T) {
	api, _, _ := newTestAPI(t, "s3cret", "other")

	assert.Equal(t, http.StatusUnauthorized, do(api, http.MethodGet, "/api/stats", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(api, http.MethodGet, "/api/stats", "", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(api, http.MethodGet, "/api/stats", "", "s3cret").Code)
	assert.Equal(t, http.StatusOK, do(api, http.MethodGet, "/api/stats", "", "other").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Basic s3cret")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api, _, collector := newTestAPI(t)
	collector.Connected()
	do(api, http.MethodGet, "/healthz", "", "")

	rec := do(api, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ircd_connections_total 1")
	assert.Contains(t, body, `ircd_http_requests_total{code="200",method="GET",path="/healthz"} 1`)
}

func TestServeAndShutdown(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := httptest.NewUnstartedServer(nil)
	ln := srv.Listener

	served := make(chan error, 1)
	go func() { served <- api.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, api.Shutdown(ctx))
	assert.NoError(t, <-served)
}
