package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/postline/internal/render"
)

// PageHandler は静的ページのHTTPハンドラー。
type PageHandler struct {
	rs *Responder
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(rs *Responder) *PageHandler {
	return &PageHandler{rs: rs}
}

// AboutAuthor は作者紹介ページを表示する。
// GET /about/author/
func (h *PageHandler) AboutAuthor(_ context.Context, req *Request) (*Response, error) {
	return h.rs.Page(req, http.StatusOK, render.PageAboutAuthor, "作者について", nil)
}

// AboutTech は技術紹介ページを表示する。
// GET /about/tech/
func (h *PageHandler) AboutTech(_ context.Context, req *Request) (*Response, error) {
	return h.rs.Page(req, http.StatusOK, render.PageAboutTech, "技術", nil)
}

// NotFound はどのルートにも一致しないリクエストに404ページを返す。
func (h *PageHandler) NotFound(_ context.Context, req *Request) (*Response, error) {
	return h.rs.NotFound(req, ""), nil
}
