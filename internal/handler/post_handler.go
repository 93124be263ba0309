package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/post"
	"github.com/hitoshi/postline/internal/render"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Detail(ctx context.Context, id int64) (*post.Detail, error)
	Groups(ctx context.Context) ([]*model.Group, error)
	Create(ctx context.Context, author *model.User, f *form.PostForm) (*model.Post, error)
	Editable(ctx context.Context, user *model.User, id int64) (*model.PostView, error)
	Edit(ctx context.Context, user *model.User, id int64, f *form.PostForm) (*model.Post, error)
	AddComment(ctx context.Context, user *model.User, postID int64, f *form.CommentForm) (*model.Comment, error)
}

// PostHandler は投稿の詳細・作成・編集・コメントのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	rs      *Responder
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, rs *Responder) *PostHandler {
	return &PostHandler{service: service, rs: rs}
}

// postID はURLの投稿IDを返す。数値でない場合はNotFoundエラーを返す。
func postID(req *Request) (int64, error) {
	id, ok := req.ParamInt64("id")
	if !ok {
		return 0, model.NewPostNotFoundError(0)
	}
	return id, nil
}

// Detail は投稿詳細とコメント一覧を表示する。
// GET /posts/{id}/
func (h *PostHandler) Detail(ctx context.Context, req *Request) (*Response, error) {
	id, err := postID(req)
	if err != nil {
		return nil, err
	}
	d, err := h.service.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.rs.Page(req, http.StatusOK, render.PageDetail, d.Post.String(), render.DetailData{
		Detail:      d,
		CommentForm: &form.CommentForm{},
		CanEdit:     req.User != nil && req.User.ID == d.Post.AuthorID,
	})
}

// CreateForm は新規投稿フォームを表示する。
// GET /create/
func (h *PostHandler) CreateForm(ctx context.Context, req *Request) (*Response, error) {
	return h.renderForm(ctx, req, &form.PostForm{}, 0, "")
}

// Create は投稿を作成して著者のプロフィールへリダイレクトする。
// 入力エラーの場合はフォームを再表示する。
// POST /create/
func (h *PostHandler) Create(ctx context.Context, req *Request) (*Response, error) {
	f := h.bindPostForm(req)
	if _, err := h.service.Create(ctx, req.User, f); err != nil {
		if model.IsCategory(err, model.CategoryValidation) {
			return h.renderForm(ctx, req, f, 0, "")
		}
		return nil, err
	}
	return RedirectTo(profileURL(req.User.Username)), nil
}

// EditForm は投稿編集フォームを表示する。
// 投稿者以外は投稿詳細へリダイレクトする。
// GET /posts/{id}/edit/
func (h *PostHandler) EditForm(ctx context.Context, req *Request) (*Response, error) {
	id, err := postID(req)
	if err != nil {
		return nil, err
	}
	p, err := h.service.Editable(ctx, req.User, id)
	if err != nil {
		return nil, err
	}
	return h.renderForm(ctx, req, form.NewPostFormFromPost(&p.Post), id, p.Image)
}

// Edit は投稿を更新して投稿詳細へリダイレクトする。
// POST /posts/{id}/edit/
func (h *PostHandler) Edit(ctx context.Context, req *Request) (*Response, error) {
	id, err := postID(req)
	if err != nil {
		return nil, err
	}
	current, err := h.service.Editable(ctx, req.User, id)
	if err != nil {
		return nil, err
	}

	f := h.bindPostForm(req)
	if _, err := h.service.Edit(ctx, req.User, id, f); err != nil {
		if model.IsCategory(err, model.CategoryValidation) {
			return h.renderForm(ctx, req, f, id, current.Image)
		}
		return nil, err
	}
	return RedirectTo(postDetailURL(id)), nil
}

// AddComment はコメントを追加して投稿詳細へリダイレクトする。
// 入力が不正な場合は何も作成せずにリダイレクトする。
// POST /posts/{id}/comment/
func (h *PostHandler) AddComment(ctx context.Context, req *Request) (*Response, error) {
	id, err := postID(req)
	if err != nil {
		return nil, err
	}
	f := &form.CommentForm{Text: req.Form.Get("text")}
	if _, err := h.service.AddComment(ctx, req.User, id, f); err != nil && !model.IsCategory(err, model.CategoryValidation) {
		return nil, err
	}
	return RedirectTo(postDetailURL(id)), nil
}

func (h *PostHandler) bindPostForm(req *Request) *form.PostForm {
	return &form.PostForm{
		Text:         req.Form.Get("text"),
		Group:        req.Form.Get("group"),
		Image:        req.Image,
		MaxImageSize: h.rs.MaxUploadSize(),
	}
}

// renderForm は投稿フォームを描画する。postIDが0の場合は新規作成。
func (h *PostHandler) renderForm(ctx context.Context, req *Request, f *form.PostForm, postID int64, image string) (*Response, error) {
	groups, err := h.service.Groups(ctx)
	if err != nil {
		return nil, err
	}
	title := "新規投稿"
	if postID != 0 {
		title = "投稿を編集"
	}
	return h.rs.Page(req, http.StatusOK, render.PagePostForm, title, render.PostFormData{
		Form:   f,
		Groups: groups,
		IsEdit: postID != 0,
		PostID: postID,
		Image:  image,
	})
}
