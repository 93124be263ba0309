// Package feed は投稿フィードの組み立て（ページ分割・絞り込み）を提供する。
package feed

import (
	"context"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
)

// FollowChecker はフォロー状態の確認に必要な操作を定義する。
type FollowChecker interface {
	IsFollowing(ctx context.Context, viewer *model.User, author *model.User) (bool, error)
}

// Service は4種類のフィード（全体・グループ・プロフィール・フォロー）を組み立てる。
// すべてのフィードで同じページサイズを使用する。
type Service struct {
	postRepo  repository.PostRepository
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
	follows   FollowChecker
	perPage   int
}

// NewService はServiceを生成する。perPageが1未満の場合はDefaultPerPageを使用する。
func NewService(
	postRepo repository.PostRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	follows FollowChecker,
	perPage int,
) *Service {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return &Service{
		postRepo:  postRepo,
		groupRepo: groupRepo,
		userRepo:  userRepo,
		follows:   follows,
		perPage:   perPage,
	}
}

// PerPage は1ページあたりの投稿数を返す。
func (s *Service) PerPage() int {
	return s.perPage
}

// GroupFeed はグループフィードの結果。
type GroupFeed struct {
	Group *model.Group
	Page  *Page
}

// ProfileFeed はプロフィールフィードの結果。
type ProfileFeed struct {
	Author    *model.User
	Page      *Page
	Following bool // 閲覧者が著者をフォローしているか
}

// paginate はフィルタに一致する投稿から指定ページを組み立てる。
func (s *Service) paginate(ctx context.Context, filter repository.PostFilter, number int) (*Page, error) {
	count, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}

	p := Paginator{PerPage: s.perPage, Count: count}
	page := &Page{
		Number:   p.Clamp(number),
		NumPages: p.NumPages(),
		Count:    count,
		PerPage:  s.perPage,
	}
	if count == 0 {
		page.Posts = []*model.PostView{}
		return page, nil
	}

	posts, err := s.postRepo.List(ctx, filter, s.perPage, p.Offset(number))
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	page.Posts = posts
	return page, nil
}

// All は全投稿のフィードを返す。
func (s *Service) All(ctx context.Context, number int) (*Page, error) {
	return s.paginate(ctx, repository.PostFilter{}, number)
}

// Group はグループに属する投稿のフィードを返す。
// スラッグに該当するグループがない場合はNotFoundエラーを返す。
func (s *Service) Group(ctx context.Context, slug string, number int) (*GroupFeed, error) {
	group, err := s.groupRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("グループの取得に失敗しました: %w", err)
	}
	if group == nil {
		return nil, model.NewGroupNotFoundError(slug)
	}

	page, err := s.paginate(ctx, repository.PostFilter{GroupID: &group.ID}, number)
	if err != nil {
		return nil, err
	}
	return &GroupFeed{Group: group, Page: page}, nil
}

// Profile はユーザーの投稿フィードを返す。
// viewerはnil（未ログイン）でもよい。ユーザー名に該当するユーザーがない場合はNotFoundエラーを返す。
func (s *Service) Profile(ctx context.Context, username string, viewer *model.User, number int) (*ProfileFeed, error) {
	author, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if author == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	page, err := s.paginate(ctx, repository.PostFilter{AuthorID: author.ID}, number)
	if err != nil {
		return nil, err
	}

	following, err := s.follows.IsFollowing(ctx, viewer, author)
	if err != nil {
		return nil, err
	}

	return &ProfileFeed{Author: author, Page: page, Following: following}, nil
}

// Follow は閲覧者がフォローしている著者の投稿フィードを返す。
// 未ログインの場合はUnauthenticatedエラーを返す。
func (s *Service) Follow(ctx context.Context, viewer *model.User, number int) (*Page, error) {
	if viewer == nil {
		return nil, model.NewUnauthenticatedError()
	}
	return s.paginate(ctx, repository.PostFilter{FollowerID: viewer.ID}, number)
}
