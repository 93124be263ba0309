// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/postline/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 投稿・コメント・フォロー・セッションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// GroupRepository はグループデータの永続化インターフェース。
type GroupRepository interface {
	// FindByID は指定IDのグループを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Group, error)
	// FindBySlug はスラッグでグループを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Group, error)
	// List はタイトル順にすべてのグループを返す。
	List(ctx context.Context) ([]*model.Group, error)
	// Create はグループを作成する。スラッグが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, group *model.Group) error
	// DeleteBySlug はグループを削除する。所属投稿のgroup_idはNULLになる。
	// 削除対象が存在しなかった場合はfalseを返す。
	DeleteBySlug(ctx context.Context, slug string) (bool, error)
}

// PostFilter は投稿一覧の絞り込み条件。ゼロ値は全件を表す。
type PostFilter struct {
	GroupID    *int64 // 指定グループの投稿のみ
	AuthorID   string // 指定ユーザーの投稿のみ
	FollowerID string // 指定ユーザーがフォローしている著者の投稿のみ
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を著者・グループ情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.PostView, error)

	// Count はフィルタに一致する投稿数を返す。
	Count(ctx context.Context, filter PostFilter) (int, error)

	// List はフィルタに一致する投稿をpub_date降順（同時刻はid降順）で返す。
	List(ctx context.Context, filter PostFilter, limit, offset int) ([]*model.PostView, error)

	// Create は投稿を作成し、採番されたIDと投稿日時をpostに設定する。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿の本文・グループ・画像を更新する。
	Update(ctx context.Context, post *model.Post) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成し、採番されたIDと作成日時をcommentに設定する。
	Create(ctx context.Context, comment *model.Comment) error
	// ListByPost は投稿のコメントを新しい順に返す。
	ListByPost(ctx context.Context, postID int64) ([]*model.Comment, error)
}

// FollowRepository はフォロー関係の永続化インターフェース。
type FollowRepository interface {
	// Create はフォロー関係を作成する。既に存在する場合は何もせずfalseを返す。
	Create(ctx context.Context, userID, authorID string) (bool, error)
	// Delete はフォロー関係を削除する。存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, userID, authorID string) (bool, error)
	// Exists はフォロー関係が存在するかを返す。
	Exists(ctx context.Context, userID, authorID string) (bool, error)
	// ListByUser はユーザーのフォロー一覧を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Follow, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
