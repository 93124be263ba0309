package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/postline/internal/media"
	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/pagecache"
	"github.com/hitoshi/postline/internal/render"
)

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker  HealthChecker
	UserResolver   middleware.UserResolver
	RateLimiter    *middleware.RateLimiter
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
	Logger         *slog.Logger
	CookieConfig   middleware.CookieConfig
	MaxBodySize    int64

	// 描画
	Renderer  *render.Renderer
	Responder ResponderConfig
	BaseURL   string

	// トップページキャッシュ
	PageCache        pagecache.Cache
	PageCacheOptions pagecache.Options

	// ドメインサービス
	FeedService   FeedServiceInterface
	PostService   PostServiceInterface
	FollowService FollowServiceInterface
	AuthService   AuthServiceInterface
	UserService   UserServiceInterface

	// アップロード画像の保存先
	MediaRoot string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging → BodyLimit → CSRF
//	→ RateLimit(General) → RateLimit(Write)
//
// ログインが必要なルートにはさらにLoginRequiredを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	rs := NewResponder(deps.Renderer, deps.Responder, logger)
	var following FollowingLister
	if deps.FollowService != nil {
		following = deps.FollowService
	}
	feedHandler := NewFeedHandler(deps.FeedService, following, rs)
	postHandler := NewPostHandler(deps.PostService, rs)
	followHandler := NewFollowHandler(deps.FollowService)
	authHandler := NewAuthHandler(deps.AuthService, deps.UserService, deps.CookieConfig, rs)
	pageHandler := NewPageHandler(rs)
	rssHandler := NewRSSHandler(deps.FeedService, deps.BaseURL)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.MaxBodySize > 0 {
		r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodySize))
	}
	r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
		CookieSecure: deps.CookieConfig.Secure,
		CookieDomain: deps.CookieConfig.Domain,
	}))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.RateLimiter.WriteMiddleware())
	}

	// --- インフラ ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.MediaRoot != "" {
		r.Handle(media.URLPrefix+"*", media.Handler(deps.MediaRoot))
	}

	// --- 認証不要のルート ---
	cacheOpts := deps.PageCacheOptions
	if cacheOpts.Recorder == nil {
		cacheOpts.Recorder = collector
	}
	if cacheOpts.Logger == nil {
		cacheOpts.Logger = logger
	}
	index := http.Handler(rs.Handle(feedHandler.Index))
	if deps.PageCache != nil {
		index = pagecache.Middleware(deps.PageCache, cacheOpts)(index)
	}
	r.Method(http.MethodGet, "/", index)

	r.Get("/group/{slug}/", rs.Handle(feedHandler.GroupPosts))
	r.Get("/profile/{username}/", rs.Handle(feedHandler.Profile))
	r.Get("/posts/{id}/", rs.Handle(postHandler.Detail))
	r.Get("/rss/", rs.Handle(rssHandler.Feed))
	r.Get("/about/author/", rs.Handle(pageHandler.AboutAuthor))
	r.Get("/about/tech/", rs.Handle(pageHandler.AboutTech))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/signup/", rs.Handle(authHandler.SignupForm))
		r.Post("/signup/", rs.Handle(authHandler.Signup))
		r.Get("/login/", rs.Handle(authHandler.LoginForm))
		r.Post("/login/", rs.Handle(authHandler.Login))
		r.Get("/logout/", rs.Handle(authHandler.LogoutConfirm))
		r.Post("/logout/", rs.Handle(authHandler.Logout))

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewLoginRequiredMiddleware(rs.loginURL))
			r.Get("/withdraw/", rs.Handle(authHandler.WithdrawConfirm))
			r.Post("/withdraw/", rs.Handle(authHandler.Withdraw))
		})
	})

	// --- ログインが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoginRequiredMiddleware(rs.loginURL))

		r.Get("/create/", rs.Handle(postHandler.CreateForm))
		r.Post("/create/", rs.Handle(postHandler.Create))
		r.Get("/posts/{id}/edit/", rs.Handle(postHandler.EditForm))
		r.Post("/posts/{id}/edit/", rs.Handle(postHandler.Edit))
		r.Post("/posts/{id}/comment/", rs.Handle(postHandler.AddComment))

		r.Get("/follow/", rs.Handle(feedHandler.FollowIndex))
		r.Get("/profile/{username}/follow/", rs.Handle(followHandler.Follow))
		r.Get("/profile/{username}/unfollow/", rs.Handle(followHandler.Unfollow))
	})

	r.NotFound(rs.Handle(pageHandler.NotFound))

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = http.StatusServiceUnavailable
				body = map[string]string{"status": "unavailable"}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
