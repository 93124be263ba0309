package render

import (
	"github.com/hitoshi/postline/internal/feed"
	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/post"
)

// FeedData は全体・フォローフィード画面のデータ。
type FeedData struct {
	Page *feed.Page
}

// FollowData はフォローフィード画面のデータ。
type FollowData struct {
	Page      *feed.Page
	Following []*model.Follow // フォロー中の著者（著者名順）
}

// GroupData はグループフィード画面のデータ。
type GroupData struct {
	Group *model.Group
	Page  *feed.Page
}

// ProfileData はプロフィール画面のデータ。
type ProfileData struct {
	Author    *model.User
	Page      *feed.Page
	Following bool
	IsSelf    bool // 閲覧者本人のプロフィールか
}

// DetailData は投稿詳細画面のデータ。
type DetailData struct {
	*post.Detail
	CommentForm *form.CommentForm
	CanEdit     bool
}

// PostFormData は投稿作成・編集画面のデータ。
type PostFormData struct {
	Form   *form.PostForm
	Groups []*model.Group
	IsEdit bool
	PostID int64
	Image  string // 編集時の既存画像
}

// AuthFormData はログイン・登録画面のデータ。
type AuthFormData struct {
	Username string
	Next     string
	Errors   form.Errors
	Message  string // フォーム全体に対するエラー
}

// ErrorData はエラー画面のデータ。
type ErrorData struct {
	Message string
	Path    string
}
