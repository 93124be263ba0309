package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
)

// PostgresGroupRepo はPostgreSQLを使用したグループリポジトリ。
type PostgresGroupRepo struct {
	db *sql.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sql.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

func (r *PostgresGroupRepo) findOne(ctx context.Context, where string, arg any) (*model.Group, error) {
	g := &model.Group{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, slug, description FROM groups WHERE `+where, arg,
	).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("グループの取得に失敗しました: %w", err)
	}
	return g, nil
}

// FindByID は指定IDのグループを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindByID(ctx context.Context, id int64) (*model.Group, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindBySlug はスラッグでグループを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindBySlug(ctx context.Context, slug string) (*model.Group, error) {
	return r.findOne(ctx, "slug = $1", slug)
}

// List はタイトル順にすべてのグループを返す。
func (r *PostgresGroupRepo) List(ctx context.Context) ([]*model.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, slug, description FROM groups ORDER BY title, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("グループ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		g := &model.Group{}
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, fmt.Errorf("グループのスキャンに失敗しました: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("グループ一覧の走査に失敗しました: %w", err)
	}
	return groups, nil
}

// Create はグループを作成する。
func (r *PostgresGroupRepo) Create(ctx context.Context, group *model.Group) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO groups (title, slug, description) VALUES ($1, $2, $3) RETURNING id`,
		group.Title, group.Slug, group.Description,
	).Scan(&group.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("グループの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteBySlug はグループを削除する。
func (r *PostgresGroupRepo) DeleteBySlug(ctx context.Context, slug string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE slug = $1`, slug)
	if err != nil {
		return false, fmt.Errorf("グループの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ GroupRepository = (*PostgresGroupRepo)(nil)
