package handler

import (
	"context"

	"github.com/hitoshi/postline/internal/model"
)

// FollowServiceInterface はフォローハンドラーが必要とするサービスインターフェース。
type FollowServiceInterface interface {
	Follow(ctx context.Context, user *model.User, authorUsername string) error
	Unfollow(ctx context.Context, user *model.User, authorUsername string) error
	Following(ctx context.Context, user *model.User) ([]*model.Follow, error)
}

// FollowHandler はフォロー・フォロー解除のHTTPハンドラー。
type FollowHandler struct {
	service FollowServiceInterface
}

// NewFollowHandler はFollowHandlerを生成する。
func NewFollowHandler(service FollowServiceInterface) *FollowHandler {
	return &FollowHandler{service: service}
}

// Follow は著者をフォローしてプロフィールへリダイレクトする。
// GET /profile/{username}/follow/
func (h *FollowHandler) Follow(ctx context.Context, req *Request) (*Response, error) {
	username := req.Param("username")
	if err := h.service.Follow(ctx, req.User, username); err != nil {
		return nil, err
	}
	return RedirectTo(profileURL(username)), nil
}

// Unfollow はフォローを解除してプロフィールへリダイレクトする。
// GET /profile/{username}/unfollow/
func (h *FollowHandler) Unfollow(ctx context.Context, req *Request) (*Response, error) {
	username := req.Param("username")
	if err := h.service.Unfollow(ctx, req.User, username); err != nil {
		return nil, err
	}
	return RedirectTo(profileURL(username)), nil
}
