// Package post は投稿の詳細表示・作成・編集・コメント追加を提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/media"
	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// Service は投稿に関するユースケースを提供する。
type Service struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	groupRepo   repository.GroupRepository
	images      media.Store
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
}

// NewService はServiceを生成する。collectorとloggerはnilでもよい。
func NewService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	groupRepo repository.GroupRepository,
	images media.Store,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		groupRepo:   groupRepo,
		images:      images,
		metrics:     collector,
		logger:      logger,
	}
}

// Detail は投稿詳細画面の表示内容。
type Detail struct {
	Post            *model.PostView
	AuthorPostCount int
	Comments        []*model.Comment // 新しい順
}

// Detail は投稿・著者の投稿数・コメント一覧を返す。
func (s *Service) Detail(ctx context.Context, id int64) (*Detail, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := s.postRepo.Count(ctx, repository.PostFilter{AuthorID: p.AuthorID})
	if err != nil {
		return nil, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}

	comments, err := s.commentRepo.ListByPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}

	return &Detail{Post: p, AuthorPostCount: count, Comments: comments}, nil
}

// Groups はフォームの選択肢となるグループ一覧を返す。
func (s *Service) Groups(ctx context.Context) ([]*model.Group, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("グループ一覧の取得に失敗しました: %w", err)
	}
	return groups, nil
}

// Create はフォームを検証して投稿を作成する。
// 検証エラーの場合はvalidationカテゴリのAPIErrorを返し、何も保存しない。
func (s *Service) Create(ctx context.Context, author *model.User, f *form.PostForm) (*model.Post, error) {
	if author == nil {
		return nil, model.NewUnauthenticatedError()
	}

	p, err := f.Validate(ctx, s.groupRepo)
	if err != nil {
		return nil, err
	}
	p.AuthorID = author.ID

	if err := s.saveImage(ctx, f, p); err != nil {
		return nil, err
	}

	if err := s.postRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	s.metrics.RecordPostCreated()
	s.logger.Info("post created",
		slog.Int64("post_id", p.ID),
		slog.String("author_id", author.ID),
	)
	return p, nil
}

// Editable は編集対象の投稿を返す。
// 存在しない場合はNotFound、投稿者以外の場合はForbiddenエラーを返す。
func (s *Service) Editable(ctx context.Context, user *model.User, id int64) (*model.PostView, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != user.ID {
		return nil, model.NewForbiddenError()
	}
	return p, nil
}

// Edit はフォームを検証して投稿を更新する。
// 画像がアップロードされなかった場合は既存の画像を維持する。
func (s *Service) Edit(ctx context.Context, user *model.User, id int64, f *form.PostForm) (*model.Post, error) {
	current, err := s.Editable(ctx, user, id)
	if err != nil {
		return nil, err
	}

	p, err := f.Validate(ctx, s.groupRepo)
	if err != nil {
		return nil, err
	}
	p.ID = current.ID
	p.AuthorID = current.AuthorID
	p.CreatedAt = current.CreatedAt
	p.Image = current.Image

	if err := s.saveImage(ctx, f, p); err != nil {
		return nil, err
	}

	if err := s.postRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	s.logger.Info("post updated",
		slog.Int64("post_id", p.ID),
		slog.String("author_id", user.ID),
	)
	return p, nil
}

// AddComment は投稿にコメントを追加する。
// 投稿が存在しない場合はNotFound、検証エラーの場合はvalidationカテゴリのAPIErrorを返す。
func (s *Service) AddComment(ctx context.Context, user *model.User, postID int64, f *form.CommentForm) (*model.Comment, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}
	if _, err := s.find(ctx, postID); err != nil {
		return nil, err
	}

	c, err := f.Validate()
	if err != nil {
		return nil, err
	}
	c.PostID = &postID
	c.AuthorID = user.ID

	if err := s.commentRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	s.metrics.RecordCommentCreated()
	s.logger.Info("comment created",
		slog.Int64("comment_id", c.ID),
		slog.Int64("post_id", postID),
		slog.String("author_id", user.ID),
	)
	return c, nil
}

func (s *Service) find(ctx context.Context, id int64) (*model.PostView, error) {
	p, err := s.postRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return p, nil
}

// saveImage はアップロード画像があれば保存し、パスを投稿に設定する。
func (s *Service) saveImage(ctx context.Context, f *form.PostForm, p *model.Post) error {
	if f.Image == nil || s.images == nil {
		return nil
	}
	rel, err := s.images.Save(ctx, f.Image.ContentType, f.Image.Data)
	if err != nil {
		return fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	p.Image = rel
	return nil
}
