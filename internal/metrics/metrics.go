// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordPageCache(hit bool)
	RecordPostCreated()
	RecordCommentCreated()
	RecordFollow(action string)
	RecordSessionsCleaned(count int64)
}

// フォロー操作のラベル値
const (
	FollowActionFollow   = "follow"
	FollowActionUnfollow = "unfollow"
	FollowActionNoop     = "noop"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	pageCache       *prometheus.CounterVec
	postsCreated    prometheus.Counter
	commentsCreated prometheus.Counter
	follows         *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postline_http_requests_total",
			Help: "メソッド・ステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "postline_http_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		pageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postline_page_cache_requests_total",
			Help: "ページキャッシュの参照結果（hit/miss）別の回数",
		}, []string{"result"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postline_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postline_comments_created_total",
			Help: "作成されたコメントの合計数",
		}),
		follows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postline_follow_operations_total",
			Help: "フォロー操作の合計数",
		}, []string{"action"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postline_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.httpLatency,
		c.pageCache,
		c.postsCreated,
		c.commentsCreated,
		c.follows,
		c.sessionsCleaned,
	)

	return c
}

// RecordHTTPRequest はレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordPageCache はページキャッシュのヒット/ミスを記録する。
func (c *Collector) RecordPageCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.pageCache.WithLabelValues(result).Inc()
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordCommentCreated はコメント作成を記録する。
func (c *Collector) RecordCommentCreated() {
	c.commentsCreated.Inc()
}

// RecordFollow はフォロー操作を記録する。
func (c *Collector) RecordFollow(action string) {
	c.follows.WithLabelValues(action).Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
func (Nop) RecordPageCache(bool)                         {}
func (Nop) RecordPostCreated()                           {}
func (Nop) RecordCommentCreated()                        {}
func (Nop) RecordFollow(string)                          {}
func (Nop) RecordSessionsCleaned(int64)                  {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
