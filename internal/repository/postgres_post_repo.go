package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/postline/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postViewSelect = `
	SELECT p.id, p.text, p.pub_date, p.author_id, p.group_id, p.image,
	       u.username, g.slug, g.title
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN groups g ON g.id = p.group_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostView(row rowScanner) (*model.PostView, error) {
	v := &model.PostView{}
	var groupID sql.NullInt64
	var groupSlug, groupTitle sql.NullString
	if err := row.Scan(
		&v.ID, &v.Text, &v.CreatedAt, &v.AuthorID, &groupID, &v.Image,
		&v.AuthorUsername, &groupSlug, &groupTitle,
	); err != nil {
		return nil, err
	}
	v.GroupID = nullInt64Ptr(groupID)
	v.GroupSlug = nullStringValue(groupSlug)
	v.GroupTitle = nullStringValue(groupTitle)
	return v, nil
}

// whereClause はフィルタからWHERE句と引数を組み立てる。
func (f PostFilter) whereClause() (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.GroupID != nil {
		conds = append(conds, "p.group_id = "+next(*f.GroupID))
	}
	if f.AuthorID != "" {
		conds = append(conds, "p.author_id = "+next(f.AuthorID))
	}
	if f.FollowerID != "" {
		conds = append(conds,
			"p.author_id IN (SELECT author_id FROM follows WHERE user_id = "+next(f.FollowerID)+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.PostView, error) {
	v, err := scanPostView(r.db.QueryRowContext(ctx, postViewSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return v, nil
}

// Count はフィルタに一致する投稿数を返す。
func (r *PostgresPostRepo) Count(ctx context.Context, filter PostFilter) (int, error) {
	where, args := filter.whereClause()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts p`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// List はフィルタに一致する投稿を新しい順に返す。
func (r *PostgresPostRepo) List(ctx context.Context, filter PostFilter, limit, offset int) ([]*model.PostView, error) {
	where, args := filter.whereClause()
	args = append(args, limit, offset)
	query := postViewSelect + where +
		fmt.Sprintf(` ORDER BY p.pub_date DESC, p.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.PostView, 0, limit)
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿のスキャンに失敗しました: %w", err)
		}
		posts = append(posts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (text, author_id, group_id, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, pub_date`,
		post.Text, post.AuthorID, post.GroupID, post.Image,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は投稿の本文・グループ・画像を更新する。著者と投稿日時は変更しない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET text = $1, group_id = $2, image = $3 WHERE id = $4`,
		post.Text, post.GroupID, post.Image, post.ID,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
