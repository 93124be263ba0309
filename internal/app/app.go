package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/postline/internal/auth"
	"github.com/hitoshi/postline/internal/config"
	"github.com/hitoshi/postline/internal/database"
	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/follow"
	"github.com/hitoshi/postline/internal/group"
	"github.com/hitoshi/postline/internal/handler"
	"github.com/hitoshi/postline/internal/logger"
	"github.com/hitoshi/postline/internal/media"
	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/pagecache"
	"github.com/hitoshi/postline/internal/post"
	"github.com/hitoshi/postline/internal/render"
	"github.com/hitoshi/postline/internal/repository"
	"github.com/hitoshi/postline/internal/security"
	"github.com/hitoshi/postline/internal/user"
	"github.com/hitoshi/postline/internal/worker/cleanup"
)

// dbConnectTimeout は起動時のDB疎通確認のタイムアウト。
const dbConnectTimeout = 10 * time.Second

// cacheSweepInterval はプロセス内キャッシュの期限切れエントリ掃除の間隔。
const cacheSweepInterval = time.Minute

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	var groupArgs *GroupArgs
	if cmd == CommandGroup {
		ga, err := ParseGroupArgs(args[1:])
		if err != nil {
			return err
		}
		groupArgs = ga
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandClearCache:
		return runClearCache(cfg)
	case CommandGroup:
		return runGroup(cfg, groupArgs)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. ページキャッシュ
	cache, closeCache, err := newPageCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 4. ルーターの構築
	router, shutdown, err := NewHandler(cfg, db, cache, reg, slog.Default())
	if err != nil {
		return err
	}
	defer shutdown()

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// NewHandler はリポジトリ・サービス・ミドルウェアをワイヤリングしたHTTPハンドラーを返す。
// 返却されるshutdownはレートリミッターのバックグラウンド処理を停止する。
// regにはアプリケーションのメトリクスが登録され、/metricsで公開される。
func NewHandler(
	cfg *config.Config,
	db *sql.DB,
	cache pagecache.Cache,
	reg *prometheus.Registry,
	log *slog.Logger,
) (http.Handler, func(), error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	groupRepo := repository.NewPostgresGroupRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)

	// 2. 描画
	renderer, err := render.New(security.NewContentFormatter())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 3. ドメインサービスの初期化
	collector := metrics.NewCollector(reg)

	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	followService := follow.NewService(followRepo, userRepo, collector, log)
	feedService := feed.NewService(postRepo, groupRepo, userRepo, followService, cfg.PostsPerPage)
	postService := post.NewService(postRepo, commentRepo, groupRepo, media.NewLocalStore(cfg.MediaRoot), collector, log)
	userService := user.NewService(userRepo, sessionRepo)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))

	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:  db,
		UserResolver:   authService,
		RateLimiter:    rateLimiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		Logger:         log,
		CookieConfig: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},
		// 画像に加えてフォームの他フィールド分の余裕をとる
		MaxBodySize: cfg.MediaMaxSize + 1<<20,

		Renderer: renderer,
		Responder: handler.ResponderConfig{
			LoginURL:      cfg.LoginURL,
			MaxUploadSize: cfg.MediaMaxSize,
		},
		BaseURL: cfg.BaseURL,

		PageCache: cache,
		PageCacheOptions: pagecache.Options{
			Prefix: cfg.PageCachePrefix,
			TTL:    cfg.PageCacheTTL,
		},

		FeedService:   feedService,
		PostService:   postService,
		FollowService: followService,
		AuthService:   authService,
		UserService:   userService,

		MediaRoot: cfg.MediaRoot,
	})

	return router, rateLimiter.Stop, nil
}

// newPageCache はREDIS_URLが設定されていればRedis、なければプロセス内メモリのキャッシュを返す。
// 返却されるcloseはRedis接続の切断またはスイーパーの停止を行う。
func newPageCache(cfg *config.Config) (pagecache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		cache := pagecache.NewMemoryCache()
		cache.StartSweeper(cacheSweepInterval)
		slog.Info("page cache: in-process memory")
		return cache, cache.Stop, nil
	}

	client, err := pagecache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	cache := pagecache.NewRedisCache(client, pagecache.DefaultRedisNamespace)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("page cache: redis")
	return cache, func() { client.Close() }, nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	job := cleanup.NewSessionCleanupJob(repository.NewPostgresSessionRepo(db), nil, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runClearCache は共有ページキャッシュを全削除する。
// プロセス内キャッシュはWebサーバーのプロセスごとに保持されるため、このコマンドでは削除できない。
func runClearCache(cfg *config.Config) error {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set; in-process page cache cannot be cleared from another process")
		return nil
	}

	cache, closeCache, err := newPageCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear page cache: %w", err)
	}

	slog.Info("page cache cleared", slog.String("namespace", pagecache.DefaultRedisNamespace))
	return nil
}

// runGroup はグループの作成・削除を行う。
// グループ削除後も所属していた投稿はグループなしとして残る。
func runGroup(cfg *config.Config, args *GroupArgs) error {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := group.NewService(repository.NewPostgresGroupRepo(db), slog.Default())
	switch args.Action {
	case "create":
		g, err := svc.Create(ctx, args.Title, args.Slug, args.Description)
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		slog.Info("group created", slog.Int64("id", g.ID), slog.String("slug", g.Slug))
	case "delete":
		if err := svc.Delete(ctx, args.Slug); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
