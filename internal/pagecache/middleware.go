package pagecache

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// DefaultPrefix はトップページのキャッシュキー接頭辞。
const DefaultPrefix = "index_page"

// DefaultTTL はページキャッシュの既定の有効期間。
const DefaultTTL = 20 * time.Second

// HitRecorder はキャッシュのヒット/ミスを記録する。
type HitRecorder interface {
	RecordPageCache(hit bool)
}

// Options はキャッシュミドルウェアの設定。
type Options struct {
	Prefix   string
	TTL      time.Duration
	Recorder HitRecorder
	Logger   *slog.Logger
}

// Key はリクエストに対応するキャッシュキーを返す。
// パスとクエリ文字列の両方を含むため、?page=2 は別エントリになる。
func Key(prefix string, r *http.Request) string {
	return prefix + ":" + r.URL.RequestURI()
}

// Middleware はGET/HEADの200レスポンスをキャッシュするミドルウェアを返す。
// キャッシュヒット時は保存済みの本文をそのまま返し、下流のハンドラーは呼ばない。
// キャッシュの読み書きに失敗した場合はキャッシュなしで処理を続行する。
func Middleware(cache Cache, opts Options) func(http.Handler) http.Handler {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := Key(opts.Prefix, r)

			raw, ok, err := cache.Get(r.Context(), key)
			if err != nil {
				opts.Logger.Warn("page cache read failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
			if ok {
				if contentType, body, decErr := decodeEntry(raw); decErr == nil {
					record(opts.Recorder, true)
					w.Header().Set("Content-Type", contentType)
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(http.StatusOK)
					if r.Method == http.MethodGet {
						w.Write(body)
					}
					return
				}
			}
			record(opts.Recorder, false)

			bw := &bufferingWriter{ResponseWriter: w, status: http.StatusOK}
			w.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(bw, r)

			if bw.status != http.StatusOK || r.Method != http.MethodGet {
				return
			}
			entry := encodeEntry(w.Header().Get("Content-Type"), bw.body.Bytes())
			if err := cache.Set(r.Context(), key, entry, opts.TTL); err != nil {
				opts.Logger.Warn("page cache write failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

func record(rec HitRecorder, hit bool) {
	if rec != nil {
		rec.RecordPageCache(hit)
	}
}

// bufferingWriter はレスポンスをクライアントへ書き込みつつ本文を保持する。
type bufferingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	if w.status == http.StatusOK {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// エントリはContent-Type、NUL区切り、本文の順に格納する。
func encodeEntry(contentType string, body []byte) []byte {
	out := make([]byte, 0, len(contentType)+1+len(body))
	out = append(out, contentType...)
	out = append(out, 0)
	return append(out, body...)
}

var errMalformedEntry = errors.New("malformed cache entry")

func decodeEntry(raw []byte) (string, []byte, error) {
	i := bytes.IndexByte(raw, 0)
	if i < 0 {
		return "", nil, errMalformedEntry
	}
	return string(raw[:i]), raw[i+1:], nil
}
