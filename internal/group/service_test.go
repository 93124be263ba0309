package group

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/repository"
	"github.com/hitoshi/postline/internal/repository/repotest"
)

// failingGroupRepo は書き込みが常に失敗するGroupRepository。
type failingGroupRepo struct {
	repository.GroupRepository
}

func (failingGroupRepo) Create(context.Context, *model.Group) error {
	return errors.New("connection reset")
}

func (failingGroupRepo) DeleteBySlug(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func TestService_Create(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store.Groups(), nil)

	g, err := svc.Create(context.Background(), " Go ", "go", "Goの話題")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID == 0 || g.Title != "Go" || g.Slug != "go" {
		t.Errorf("unexpected group: %+v", g)
	}

	found, err := store.Groups().FindBySlug(context.Background(), "go")
	if err != nil || found == nil {
		t.Fatalf("group not stored: %v", err)
	}
	if found.Description != "Goの話題" {
		t.Errorf("Description = %q", found.Description)
	}
}

func TestService_Create_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		title string
		slug  string
		field string
		msg   string
	}{
		{"タイトルが空", "", "go", "title", ""},
		{"タイトルが長すぎる", strings.Repeat("あ", 201), "go", "title", MsgTitleTooLong},
		{"スラッグが空", "Go", "", "slug", ""},
		{"スラッグに空白", "Go", "go lang", "slug", MsgInvalidSlug},
		{"スラッグに日本語", "Go", "ゴー", "slug", MsgInvalidSlug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repotest.NewStore()
			svc := NewService(store.Groups(), nil)

			_, err := svc.Create(context.Background(), tt.title, tt.slug, "")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Category != model.CategoryValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(apiErr.Fields[tt.field]) == 0 {
				t.Fatalf("expected error on %q, got %v", tt.field, apiErr.Fields)
			}
			if tt.msg != "" && apiErr.Fields[tt.field][0] != tt.msg {
				t.Errorf("message = %q, want %q", apiErr.Fields[tt.field][0], tt.msg)
			}
			if groups, _ := store.Groups().List(context.Background()); len(groups) != 0 {
				t.Error("group must not be created on validation error")
			}
		})
	}
}

func TestService_Create_DuplicateSlug(t *testing.T) {
	store := repotest.NewStore()
	store.MustGroup("Go", "go")
	svc := NewService(store.Groups(), nil)

	_, err := svc.Create(context.Background(), "Golang", "go", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Category != model.CategoryValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := apiErr.Fields["slug"]; len(got) != 1 || got[0] != MsgSlugTaken {
		t.Errorf("slug errors = %v", got)
	}
}

func TestService_Create_RepositoryError(t *testing.T) {
	svc := NewService(failingGroupRepo{}, nil)

	_, err := svc.Create(context.Background(), "Go", "go", "")
	if err == nil || model.IsCategory(err, model.CategoryValidation) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

// TestService_Delete はグループ削除後も所属投稿がグループなしで残ることを検証する。
func TestService_Delete(t *testing.T) {
	store := repotest.NewStore()
	alice := store.MustUser("alice")
	g := store.MustGroup("Go", "go")
	p := store.MustPost(alice, "Goの投稿", g)
	svc := NewService(store.Groups(), nil)

	if err := svc.Delete(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if found, _ := store.Groups().FindBySlug(context.Background(), "go"); found != nil {
		t.Error("group should be deleted")
	}
	view, err := store.Posts().FindByID(context.Background(), p.ID)
	if err != nil || view == nil {
		t.Fatalf("post should remain: %v", err)
	}
	if view.GroupID != nil {
		t.Errorf("GroupID = %v, want nil", *view.GroupID)
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	svc := NewService(repotest.NewStore().Groups(), nil)

	err := svc.Delete(context.Background(), "missing")
	if !model.IsCategory(err, model.CategoryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_Delete_RepositoryError(t *testing.T) {
	svc := NewService(failingGroupRepo{}, nil)

	if err := svc.Delete(context.Background(), "go"); err == nil || model.IsCategory(err, model.CategoryNotFound) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
