package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/render"
)

// ResponderConfig はResponderの設定。
type ResponderConfig struct {
	LoginURL      string
	MaxUploadSize int64 // 画像アップロードの上限（バイト）
}

// Responder はページの描画とサービスエラーのレスポンス変換を担う。
type Responder struct {
	renderer      *render.Renderer
	loginURL      string
	maxUploadSize int64
	logger        *slog.Logger
}

// NewResponder はResponderを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewResponder(renderer *render.Renderer, config ResponderConfig, logger *slog.Logger) *Responder {
	if config.LoginURL == "" {
		config.LoginURL = "/auth/login/"
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 5 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		renderer:      renderer,
		loginURL:      config.LoginURL,
		maxUploadSize: config.MaxUploadSize,
		logger:        logger,
	}
}

// MaxUploadSize は画像アップロードの上限を返す。
func (rs *Responder) MaxUploadSize() int {
	return int(rs.maxUploadSize)
}

// Page はテンプレートを描画したResponseを返す。
func (rs *Responder) Page(req *Request, status int, name, title string, data any) (*Response, error) {
	body, err := rs.renderer.Bytes(name, &render.View{
		Title:     title,
		User:      req.User,
		CSRFToken: req.CSRFToken,
		Data:      data,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Status: status, Body: body}, nil
}

// SharedPage は閲覧者に依存しない内容でテンプレートを描画する。
// 共有キャッシュに保存されるページで使用する。
func (rs *Responder) SharedPage(name, title string, data any) (*Response, error) {
	body, err := rs.renderer.Bytes(name, &render.View{
		Title:  title,
		Shared: true,
		Data:   data,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusOK, Body: body}, nil
}

// LoginRedirect はログインページへのリダイレクトを返す。
func (rs *Responder) LoginRedirect(req *Request) *Response {
	return RedirectTo(middleware.LoginRedirectURL(rs.loginURL, req.URI()))
}

// NotFound は404ページのResponseを返す。
func (rs *Responder) NotFound(req *Request, message string) *Response {
	res, err := rs.Page(req, http.StatusNotFound, render.PageNotFound, "ページが見つかりません", render.ErrorData{
		Message: message,
		Path:    req.Path,
	})
	if err != nil {
		return rs.serverError(req, err)
	}
	return res
}

// handleServiceError はサービス層のエラーをレスポンスに変換する。
//
//	not_found  → 404ページ
//	auth       → ログインページへリダイレクト
//	forbidden  → 投稿詳細（なければトップ）へリダイレクト
//	validation → 入力画面へリダイレクト
//
// それ以外のエラーはログに記録して500ページを返す。
func (rs *Responder) handleServiceError(req *Request, err error) *Response {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return rs.serverError(req, err)
	}

	switch apiErr.Category {
	case model.CategoryNotFound:
		return rs.NotFound(req, apiErr.Message)
	case model.CategoryAuth:
		return rs.LoginRedirect(req)
	case model.CategoryForbidden:
		if id, ok := req.ParamInt64("id"); ok {
			return RedirectTo(postDetailURL(id))
		}
		return RedirectTo("/")
	case model.CategoryValidation:
		return RedirectTo(req.Path)
	default:
		return rs.serverError(req, err)
	}
}

// serverError はエラーをログに記録して500ページを返す。
func (rs *Responder) serverError(req *Request, err error) *Response {
	rs.logger.Error("request failed",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("error", err.Error()),
	)
	body, renderErr := rs.renderer.Bytes(render.PageServerError, &render.View{
		Title: "サーバーエラー",
		User:  req.User,
	})
	if renderErr != nil {
		return &Response{
			Status:      http.StatusInternalServerError,
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(http.StatusText(http.StatusInternalServerError)),
		}
	}
	return &Response{Status: http.StatusInternalServerError, Body: body}
}

func postDetailURL(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10) + "/"
}

func profileURL(username string) string {
	return "/profile/" + username + "/"
}
