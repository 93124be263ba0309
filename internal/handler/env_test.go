package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/html"

	"github.com/hitoshi/postline/internal/auth"
	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/follow"
	"github.com/hitoshi/postline/internal/media"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/pagecache"
	"github.com/hitoshi/postline/internal/post"
	"github.com/hitoshi/postline/internal/render"
	"github.com/hitoshi/postline/internal/repository/repotest"
	"github.com/hitoshi/postline/internal/security"
	"github.com/hitoshi/postline/internal/user"
)

// testCSRFToken はテストのPOSTで送るCSRFトークン。
const testCSRFToken = "test-csrf-token"

// testEnv はインメモリストアと実サービスで構成したルーター一式。
type testEnv struct {
	store     *repotest.Store
	cache     *pagecache.MemoryCache
	mediaRoot string
	router    http.Handler

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     repotest.NewStore(),
		mediaRoot: t.TempDir(),
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.cache = pagecache.NewMemoryCacheWithClock(env.clock)

	renderer, err := render.New(security.NewContentFormatter())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := env.store

	followService := follow.NewService(s.Follows(), s.Users(), nil, logger)
	authService := auth.NewService(s.Users(), s.Sessions(), auth.ServiceConfig{
		SessionMaxAge: 3600,
		BcryptCost:    bcrypt.MinCost,
	})

	env.router = NewRouter(&RouterDeps{
		UserResolver: authService,
		Logger:       logger,
		CookieConfig: middleware.CookieConfig{MaxAge: 3600},
		MaxBodySize:  10 << 20,

		Renderer:  renderer,
		Responder: ResponderConfig{LoginURL: "/auth/login/", MaxUploadSize: 1 << 20},
		BaseURL:   "http://postline.test",

		PageCache:        env.cache,
		PageCacheOptions: pagecache.Options{Prefix: pagecache.DefaultPrefix, TTL: 20 * time.Second},

		FeedService:   feed.NewService(s.Posts(), s.Groups(), s.Users(), followService, 10),
		PostService:   post.NewService(s.Posts(), s.Comments(), s.Groups(), media.NewLocalStore(env.mediaRoot), nil, logger),
		FollowService: followService,
		AuthService:   authService,
		UserService:   user.NewService(s.Users(), s.Sessions()),

		MediaRoot: env.mediaRoot,
	})
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

// loginAs はユーザーのセッションを作成し、セッションCookieを返す。
func (e *testEnv) loginAs(t *testing.T, u *model.User) *http.Cookie {
	t.Helper()
	sess := &model.Session{
		ID:        "session-" + u.Username,
		UserID:    u.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, e.store.Sessions().Create(context.Background(), sess))
	return &http.Cookie{Name: middleware.SessionCookieName, Value: sess.ID}
}

// get はGETリクエストを送る。
func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// post はCSRFトークン付きのフォームをPOSTする。
func (e *testEnv) post(path string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	if values == nil {
		values = url.Values{}
	}
	values.Set(middleware.CSRFFieldName, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.send(req, cookies)
}

// postMultipart はCSRFトークン付きのmultipartフォームをPOSTする。
func (e *testEnv) postMultipart(t *testing.T, path string, values map[string]string, image []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(middleware.CSRFFieldName, testCSRFToken))
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile(imageField, "upload.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(req, cookies)
}

func (e *testEnv) send(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// pngImage は最小の1x1 PNG画像。
var pngImage = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// --- HTML検査ヘルパー ---

func parseHTML(t *testing.T, body []byte) *html.Node {
	t.Helper()
	doc, err := html.Parse(bytes.NewReader(body))
	require.NoError(t, err)
	return doc
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// findAll はtagとclassに一致する要素をすべて返す。classが空の場合はtagのみで判定する。
func findAll(doc *html.Node, tag, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag && (class == "" || hasClass(n, class)) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// countPosts はページ内の投稿数を返す。
func countPosts(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	return len(findAll(parseHTML(t, w.Body.Bytes()), "article", "post"))
}

// currentPage はページ送りの現在ページ表示を返す。ページ送りがない場合は空文字列。
func currentPage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	spans := findAll(parseHTML(t, w.Body.Bytes()), "span", "current")
	if len(spans) == 0 {
		return ""
	}
	return textOf(spans[0])
}

// errPing はヘルスチェック失敗を表すテスト用エラー。
var errPing = errors.New("connection refused")

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}
