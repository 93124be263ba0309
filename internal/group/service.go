// Package group はグループの作成・削除を提供する。
// グループはWeb画面からは管理せず、管理用サブコマンドから操作する。
package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

const maxTitleLength = 200

// 検証メッセージ
const (
	MsgTitleTooLong = "タイトルは200文字以内にしてください。"
	MsgInvalidSlug  = "スラッグには英数字・ハイフン・アンダースコアのみ使用できます。"
	MsgSlugTaken    = "このスラッグは既に使用されています。"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Service はグループ管理のサービス層。
type Service struct {
	groupRepo repository.GroupRepository
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewService(groupRepo repository.GroupRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{groupRepo: groupRepo, logger: logger}
}

// Create はグループを作成する。入力が不正な場合やスラッグが重複する場合はvalidationエラーを返す。
func (s *Service) Create(ctx context.Context, title, slug, description string) (*model.Group, error) {
	title = strings.TrimSpace(title)
	slug = strings.TrimSpace(slug)

	errs := form.Errors{}
	switch {
	case title == "":
		errs["title"] = append(errs["title"], form.MsgRequired)
	case utf8.RuneCountInString(title) > maxTitleLength:
		errs["title"] = append(errs["title"], MsgTitleTooLong)
	}
	switch {
	case slug == "":
		errs["slug"] = append(errs["slug"], form.MsgRequired)
	case !slugPattern.MatchString(slug):
		errs["slug"] = append(errs["slug"], MsgInvalidSlug)
	}
	if len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	g := &model.Group{Title: title, Slug: slug, Description: strings.TrimSpace(description)}
	if err := s.groupRepo.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewValidationError(map[string][]string{"slug": {MsgSlugTaken}})
		}
		return nil, fmt.Errorf("グループの作成に失敗しました: %w", err)
	}

	s.logger.Info("group created",
		slog.Int64("group_id", g.ID),
		slog.String("slug", g.Slug),
	)
	return g, nil
}

// Delete はスラッグで指定したグループを削除する。所属していた投稿はグループなしとして残る。
// グループが存在しない場合はNotFoundエラーを返す。
func (s *Service) Delete(ctx context.Context, slug string) error {
	deleted, err := s.groupRepo.DeleteBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("グループの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewGroupNotFoundError(slug)
	}

	s.logger.Info("group deleted", slog.String("slug", slug))
	return nil
}
