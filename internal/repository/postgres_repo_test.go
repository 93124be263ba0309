package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hitoshi/postline/internal/database"
	"github.com/hitoshi/postline/internal/model"
)

// 各PostgresリポジトリがRepositoryインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
	var _ GroupRepository = (*PostgresGroupRepo)(nil)
	var _ PostRepository = (*PostgresPostRepo)(nil)
	var _ CommentRepository = (*PostgresCommentRepo)(nil)
	var _ FollowRepository = (*PostgresFollowRepo)(nil)
}

func TestPostFilter_WhereClause(t *testing.T) {
	groupID := int64(7)
	tests := []struct {
		name      string
		filter    PostFilter
		wantWhere string
		wantArgs  int
	}{
		{"ゼロ値は条件なし", PostFilter{}, "", 0},
		{"グループ指定", PostFilter{GroupID: &groupID}, " WHERE p.group_id = $1", 1},
		{"著者指定", PostFilter{AuthorID: "u1"}, " WHERE p.author_id = $1", 1},
		{
			"フォロワー指定",
			PostFilter{FollowerID: "u2"},
			" WHERE p.author_id IN (SELECT author_id FROM follows WHERE user_id = $1)",
			1,
		},
		{
			"複数条件はANDで結合され、プレースホルダは連番になる",
			PostFilter{GroupID: &groupID, AuthorID: "u1"},
			" WHERE p.group_id = $1 AND p.author_id = $2",
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := tt.filter.whereClause()
			if where != tt.wantWhere {
				t.Errorf("where: got %q, want %q", where, tt.wantWhere)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args: got %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

// openTestDB はマイグレーション済みのテスト用DBを返す。接続できない場合はスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if _, err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE follows, comments, posts, groups, sessions, users CASCADE`); err != nil {
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo *PostgresUserRepo, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x"}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return u
}

func TestPostgresRepos_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepo(db)
	groups := NewPostgresGroupRepo(db)
	posts := NewPostgresPostRepo(db)
	comments := NewPostgresCommentRepo(db)
	follows := NewPostgresFollowRepo(db)
	sessions := NewPostgresSessionRepo(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	t.Run("ユーザー名の重複はErrDuplicate", func(t *testing.T) {
		err := users.Create(ctx, &model.User{Username: "alice"})
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("got %v, want ErrDuplicate", err)
		}
	})

	g := &model.Group{Title: "Cats", Slug: "cats", Description: "d"}
	if err := groups.Create(ctx, g); err != nil {
		t.Fatalf("グループ作成に失敗: %v", err)
	}

	for i := 0; i < 12; i++ {
		p := &model.Post{Text: fmt.Sprintf("post %02d", i), AuthorID: alice.ID}
		if i%2 == 0 {
			p.GroupID = &g.ID
		}
		if err := posts.Create(ctx, p); err != nil {
			t.Fatalf("投稿作成に失敗: %v", err)
		}
	}
	if err := posts.Create(ctx, &model.Post{Text: "bob post", AuthorID: bob.ID}); err != nil {
		t.Fatalf("投稿作成に失敗: %v", err)
	}

	t.Run("件数と新しい順の一覧", func(t *testing.T) {
		n, err := posts.Count(ctx, PostFilter{})
		if err != nil || n != 13 {
			t.Fatalf("Count: got %d, %v", n, err)
		}
		list, err := posts.List(ctx, PostFilter{}, 10, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 10 {
			t.Fatalf("len: got %d, want 10", len(list))
		}
		if list[0].Text != "bob post" {
			t.Errorf("先頭が最新投稿ではない: %q", list[0].Text)
		}
		for i := 1; i < len(list); i++ {
			if list[i].CreatedAt.After(list[i-1].CreatedAt) {
				t.Errorf("順序が不正: index %d", i)
			}
		}
	})

	t.Run("グループと著者での絞り込み", func(t *testing.T) {
		n, _ := posts.Count(ctx, PostFilter{GroupID: &g.ID})
		if n != 6 {
			t.Errorf("グループ件数: got %d, want 6", n)
		}
		n, _ = posts.Count(ctx, PostFilter{AuthorID: bob.ID})
		if n != 1 {
			t.Errorf("著者件数: got %d, want 1", n)
		}
	})

	t.Run("フォローは冪等でフォローフィードに反映される", func(t *testing.T) {
		created, err := follows.Create(ctx, bob.ID, alice.ID)
		if err != nil || !created {
			t.Fatalf("1回目: created=%v err=%v", created, err)
		}
		created, err = follows.Create(ctx, bob.ID, alice.ID)
		if err != nil || created {
			t.Fatalf("2回目: created=%v err=%v", created, err)
		}
		n, _ := posts.Count(ctx, PostFilter{FollowerID: bob.ID})
		if n != 12 {
			t.Errorf("フォローフィード件数: got %d, want 12", n)
		}
		deleted, err := follows.Delete(ctx, bob.ID, alice.ID)
		if err != nil || !deleted {
			t.Fatalf("削除: deleted=%v err=%v", deleted, err)
		}
		deleted, _ = follows.Delete(ctx, bob.ID, alice.ID)
		if deleted {
			t.Error("存在しない関係の削除がtrueを返した")
		}
	})

	t.Run("コメントは投稿に紐付き新しい順", func(t *testing.T) {
		list, _ := posts.List(ctx, PostFilter{AuthorID: alice.ID}, 1, 0)
		postID := list[0].ID
		for _, text := range []string{"first", "second"} {
			if err := comments.Create(ctx, &model.Comment{PostID: &postID, AuthorID: bob.ID, Text: text}); err != nil {
				t.Fatalf("コメント作成に失敗: %v", err)
			}
		}
		got, err := comments.ListByPost(ctx, postID)
		if err != nil {
			t.Fatalf("ListByPost: %v", err)
		}
		if len(got) != 2 || got[0].Text != "second" || got[0].AuthorUsername != "bob" {
			t.Errorf("コメント一覧が不正: %+v", got)
		}
	})

	t.Run("期限切れセッションの削除", func(t *testing.T) {
		now := time.Now()
		sessions.Create(ctx, &model.Session{ID: "expired", UserID: alice.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now})
		sessions.Create(ctx, &model.Session{ID: "alive", UserID: alice.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now})

		n, err := sessions.DeleteExpired(ctx)
		if err != nil || n != 1 {
			t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
		}
		s, _ := sessions.FindByID(ctx, "alive")
		if s == nil {
			t.Error("有効なセッションが削除された")
		}
	})

	t.Run("グループ削除で投稿は残りグループが外れる", func(t *testing.T) {
		deleted, err := groups.DeleteBySlug(ctx, "cats")
		if err != nil || !deleted {
			t.Fatalf("DeleteBySlug: deleted=%v err=%v", deleted, err)
		}
		n, _ := posts.Count(ctx, PostFilter{AuthorID: alice.ID})
		if n != 12 {
			t.Errorf("投稿数: got %d, want 12", n)
		}
	})
}
