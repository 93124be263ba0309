package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/render"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	All(ctx context.Context, number int) (*feed.Page, error)
	Group(ctx context.Context, slug string, number int) (*feed.GroupFeed, error)
	Profile(ctx context.Context, username string, viewer *model.User, number int) (*feed.ProfileFeed, error)
	Follow(ctx context.Context, viewer *model.User, number int) (*feed.Page, error)
}

// FollowingLister はフォロー中の著者一覧の取得に必要な操作を定義する。
type FollowingLister interface {
	Following(ctx context.Context, user *model.User) ([]*model.Follow, error)
}

// FeedHandler は投稿フィード画面のHTTPハンドラー。
type FeedHandler struct {
	service   FeedServiceInterface
	following FollowingLister
	rs        *Responder
}

// NewFeedHandler はFeedHandlerを生成する。followingがnilの場合はフォロー一覧を表示しない。
func NewFeedHandler(service FeedServiceInterface, following FollowingLister, rs *Responder) *FeedHandler {
	return &FeedHandler{service: service, following: following, rs: rs}
}

// Index は全投稿のフィードを表示する。
// GET /
//
// 共有キャッシュに保存されるため、閲覧者固有の情報を含めずに描画する。
func (h *FeedHandler) Index(ctx context.Context, req *Request) (*Response, error) {
	page, err := h.service.All(ctx, req.PageNumber())
	if err != nil {
		return nil, err
	}
	return h.rs.SharedPage(render.PageIndex, render.PageTitle("最新の投稿", page), render.FeedData{Page: page})
}

// GroupPosts はグループの投稿フィードを表示する。
// GET /group/{slug}/
func (h *FeedHandler) GroupPosts(ctx context.Context, req *Request) (*Response, error) {
	gf, err := h.service.Group(ctx, req.Param("slug"), req.PageNumber())
	if err != nil {
		return nil, err
	}
	title := render.PageTitle(gf.Group.Title+" の投稿", gf.Page)
	return h.rs.Page(req, http.StatusOK, render.PageGroup, title, render.GroupData{
		Group: gf.Group,
		Page:  gf.Page,
	})
}

// Profile はユーザーの投稿フィードとフォロー状態を表示する。
// GET /profile/{username}/
func (h *FeedHandler) Profile(ctx context.Context, req *Request) (*Response, error) {
	pf, err := h.service.Profile(ctx, req.Param("username"), req.User, req.PageNumber())
	if err != nil {
		return nil, err
	}
	title := render.PageTitle(pf.Author.Username+" のプロフィール", pf.Page)
	return h.rs.Page(req, http.StatusOK, render.PageProfile, title, render.ProfileData{
		Author:    pf.Author,
		Page:      pf.Page,
		Following: pf.Following,
		IsSelf:    req.User != nil && req.User.ID == pf.Author.ID,
	})
}

// FollowIndex はフォロー中の著者一覧とその投稿フィードを表示する。
// GET /follow/
func (h *FeedHandler) FollowIndex(ctx context.Context, req *Request) (*Response, error) {
	page, err := h.service.Follow(ctx, req.User, req.PageNumber())
	if err != nil {
		return nil, err
	}
	data := render.FollowData{Page: page}
	if h.following != nil {
		if data.Following, err = h.following.Following(ctx, req.User); err != nil {
			return nil, err
		}
	}
	return h.rs.Page(req, http.StatusOK, render.PageFollow, render.PageTitle("フォロー中の投稿", page), data)
}
