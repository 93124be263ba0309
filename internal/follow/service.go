// Package follow はユーザー間のフォロー関係を管理する。
package follow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/postline/internal/metrics"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// Service はフォロー・フォロー解除のサービス層。
type Service struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
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
		followRepo: followRepo,
		userRepo:   userRepo,
		metrics:    collector,
		logger:     logger,
	}
}

// findAuthor はユーザー名で著者を取得する。存在しない場合はNotFoundエラーを返す。
func (s *Service) findAuthor(ctx context.Context, username string) (*model.User, error) {
	author, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if author == nil {
		return nil, model.NewUserNotFoundError(username)
	}
	return author, nil
}

// Follow はuserがauthorUsernameのユーザーをフォローする。
// 自分自身へのフォローは何もせず成功として扱う。既にフォロー済みの場合も成功とする。
func (s *Service) Follow(ctx context.Context, user *model.User, authorUsername string) error {
	if user == nil {
		return model.NewUnauthenticatedError()
	}

	author, err := s.findAuthor(ctx, authorUsername)
	if err != nil {
		return err
	}

	if author.Username == user.Username {
		s.metrics.RecordFollow(metrics.FollowActionNoop)
		return nil
	}

	created, err := s.followRepo.Create(ctx, user.ID, author.ID)
	if err != nil {
		return fmt.Errorf("フォローに失敗しました: %w", err)
	}

	if created {
		s.metrics.RecordFollow(metrics.FollowActionFollow)
		s.logger.Info("user followed",
			slog.String("user_id", user.ID),
			slog.String("author_id", author.ID),
		)
	} else {
		s.metrics.RecordFollow(metrics.FollowActionNoop)
	}
	return nil
}

// Unfollow はuserによるauthorUsernameのフォローを解除する。
// フォロー関係が存在しない場合はNotFoundエラーを返す。
func (s *Service) Unfollow(ctx context.Context, user *model.User, authorUsername string) error {
	if user == nil {
		return model.NewUnauthenticatedError()
	}

	author, err := s.findAuthor(ctx, authorUsername)
	if err != nil {
		return err
	}

	deleted, err := s.followRepo.Delete(ctx, user.ID, author.ID)
	if err != nil {
		return fmt.Errorf("フォロー解除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewFollowNotFoundError(authorUsername)
	}

	s.metrics.RecordFollow(metrics.FollowActionUnfollow)
	s.logger.Info("user unfollowed",
		slog.String("user_id", user.ID),
		slog.String("author_id", author.ID),
	)
	return nil
}

// IsFollowing はviewerがauthorをフォローしているかを返す。
// 未ログインの閲覧者、および自分自身のプロフィールではfalseを返す。
func (s *Service) IsFollowing(ctx context.Context, viewer *model.User, author *model.User) (bool, error) {
	if viewer == nil || author == nil || viewer.ID == author.ID {
		return false, nil
	}
	ok, err := s.followRepo.Exists(ctx, viewer.ID, author.ID)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
	}
	return ok, nil
}

// Following はuserがフォローしている著者の一覧を返す。
func (s *Service) Following(ctx context.Context, user *model.User) ([]*model.Follow, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}
	follows, err := s.followRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	return follows, nil
}
