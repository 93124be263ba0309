package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/render"
	"github.com/hitoshi/postline/internal/security"
)

func TestRouter_UnknownPathRendersNotFoundPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/no/such/page/")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<code>/no/such/page/</code>")
}

func TestRouter_AboutPages(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/about/author/", "/about/tech/"} {
		w := env.get(path)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_PostWithoutCSRFTokenIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.store.MustUser("alice")

	req := httptest.NewRequest(http.MethodPost, "/create/", strings.NewReader(url.Values{"text": {"本文"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(env.loginAs(t, alice))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, env.store.PostCount())
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRSS_ListsNewestPosts(t *testing.T) {
	env := newTestEnv(t)
	alice := env.store.MustUser("alice")
	g := env.store.MustGroup("Go", "go")
	for i := 0; i < 12; i++ {
		env.store.MustPost(alice, fmt.Sprintf("その%02d番目のRSSに載る投稿です", i), g)
	}

	w := env.get("/rss/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rssContentType, w.Header().Get("Content-Type"))

	parsed, err := gofeed.NewParser().ParseString(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "rss", parsed.FeedType)
	assert.Equal(t, "Postline", parsed.Title)
	require.Len(t, parsed.Items, 10)

	first := parsed.Items[0]
	assert.Equal(t, "その11番目のRSSに載る投稿です", first.Description)
	assert.Equal(t, "その11番目のRSSに載る投稿", first.Title)
	assert.True(t, strings.HasPrefix(first.Link, "http://postline.test/posts/"))
	assert.NotNil(t, first.PublishedParsed)
	assert.Contains(t, first.Categories, "Go")
}

func TestRSS_EmptyFeed(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/rss/")
	require.Equal(t, http.StatusOK, w.Code)

	parsed, err := gofeed.NewParser().ParseString(w.Body.String())
	require.NoError(t, err)
	assert.Empty(t, parsed.Items)
}

// stubResolver は常に未ログインとして扱うUserResolver。
type stubResolver struct{}

func (stubResolver) GetCurrentUser(context.Context, string) (*model.User, error) {
	return nil, nil
}

func newBareRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	renderer, err := render.New(security.NewContentFormatter())
	require.NoError(t, err)
	deps.Renderer = renderer
	deps.UserResolver = stubResolver{}
	deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(deps)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
		wantBody   string
	}{
		{"no checker", nil, http.StatusOK, "ok"},
		{"db up", &mockHealthChecker{}, http.StatusOK, "ok"},
		{"db down", &mockHealthChecker{err: errPing}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newBareRouter(t, &RouterDeps{HealthChecker: tt.checker})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body["status"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	router := newBareRouter(t, &RouterDeps{
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `postline_http_requests_total{method="GET",status_code="200"} 1`)
}

func TestMetricsEndpoint_DisabledWithoutHandler(t *testing.T) {
	router := newBareRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
