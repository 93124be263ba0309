// Package handler はHTTPエンドポイントとルーティングを提供する。
// 各エンドポイントはnet/httpに依存しないRequest/Responseを入出力とし、
// Responder.Handleでhttp.HandlerFuncに変換してルーターに登録する。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/model"
)

// imageField は投稿フォームの画像フィールド名。
const imageField = "image"

// Request はエンドポイントが受け取るリクエストの記述子。
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Params    map[string]string // URLパスパラメータ
	User      *model.User       // 未ログインはnil
	SessionID string
	CSRFToken string
	Form      url.Values   // POSTのフォーム値
	Image     *form.Upload // アップロード画像。なければnil
}

// Param はURLパスパラメータを返す。
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// ParamInt64 は数値のURLパスパラメータを返す。
func (r *Request) ParamInt64(name string) (int64, bool) {
	v, err := strconv.ParseInt(r.Params[name], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PageNumber はクエリのpageを解析したページ番号を返す。
func (r *Request) PageNumber() int {
	return feed.ParsePageNumber(r.Query.Get("page"))
}

// URI はクエリ文字列を含むリクエストパスを返す。
func (r *Request) URI() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Response はエンドポイントが返すレスポンスの記述子。
// Redirectが設定されている場合はBodyを無視してリダイレクトする。
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	Redirect    string
	Cookies     []*http.Cookie
}

// RedirectTo は302リダイレクトのResponseを返す。
func RedirectTo(location string) *Response {
	return &Response{Status: http.StatusFound, Redirect: location}
}

// Endpoint はRequestを処理してResponseを返す。
// エラーを返した場合はResponderがエラー種別に応じたレスポンスに変換する。
type Endpoint func(ctx context.Context, req *Request) (*Response, error)

// Handle はEndpointをhttp.HandlerFuncに変換する。
func (rs *Responder) Handle(ep Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := rs.newRequest(r)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, &model.APIError{
					Code:     "REQUEST_TOO_LARGE",
					Message:  "リクエストのサイズが大きすぎます",
					Category: model.CategoryValidation,
					Action:   "ファイルサイズを小さくして再度お試しください",
				})
				return
			}
			rs.logger.Error("failed to parse request",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "BAD_REQUEST",
				Message:  "リクエストの形式が不正です",
				Category: model.CategoryValidation,
				Action:   "入力内容を確認してください",
			})
			return
		}

		res, err := ep(r.Context(), req)
		if err != nil {
			res = rs.handleServiceError(req, err)
		}
		writeResponse(w, r, res)
	}
}

// newRequest はhttp.RequestからRequestを組み立てる。
func (rs *Responder) newRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Params:    map[string]string{},
		User:      middleware.UserFromContext(r.Context()),
		SessionID: middleware.SessionIDFromContext(r.Context()),
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			req.Params[key] = rctx.URLParams.Values[i]
		}
	}

	if r.Method != http.MethodPost {
		return req, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(rs.maxUploadSize); err != nil {
			return nil, err
		}
		upload, err := readUpload(r, imageField, rs.maxUploadSize)
		if err != nil {
			return nil, err
		}
		req.Image = upload
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req.Form = r.PostForm
	return req, nil
}

// readUpload はアップロードされたファイルを上限+1バイトまで読み込む。
// 上限を超えたかどうかの判定はフォームの検証に任せる。
func readUpload(r *http.Request, field string, limit int64) (*form.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 && header.Filename == "" {
		return nil, nil
	}
	return &form.Upload{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// writeResponse はResponseをhttp.ResponseWriterに書き出す。
func writeResponse(w http.ResponseWriter, r *http.Request, res *Response) {
	for _, c := range res.Cookies {
		http.SetCookie(w, c)
	}

	if res.Redirect != "" {
		status := res.Status
		if status < 300 || status >= 400 {
			status = http.StatusFound
		}
		http.Redirect(w, r, res.Redirect, status)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(res.Body)
	}
}
