package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/postline/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォローリポジトリ。
// (user_id, author_id) の一意制約により、同時実行されたフォローでも重複は作られない。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Create はフォロー関係を作成する。既に存在する場合はfalseを返す。
func (r *PostgresFollowRepo) Create(ctx context.Context, userID, authorID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (user_id, author_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, author_id) DO NOTHING`,
		userID, authorID,
	)
	if err != nil {
		return false, fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete はフォロー関係を削除する。存在しなかった場合はfalseを返す。
func (r *PostgresFollowRepo) Delete(ctx context.Context, userID, authorID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE user_id = $1 AND author_id = $2`,
		userID, authorID,
	)
	if err != nil {
		return false, fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Exists はフォロー関係が存在するかを返す。
func (r *PostgresFollowRepo) Exists(ctx context.Context, userID, authorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1 AND author_id = $2)`,
		userID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
	}
	return exists, nil
}

// ListByUser はユーザーのフォロー一覧を著者名順に返す。
func (r *PostgresFollowRepo) ListByUser(ctx context.Context, userID string) ([]*model.Follow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, f.user_id, f.author_id, u.username, a.username
		 FROM follows f
		 JOIN users u ON u.id = f.user_id
		 JOIN users a ON a.id = f.author_id
		 WHERE f.user_id = $1
		 ORDER BY a.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var follows []*model.Follow
	for rows.Next() {
		f := &model.Follow{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.AuthorID, &f.Username, &f.AuthorUsername); err != nil {
			return nil, fmt.Errorf("フォローのスキャンに失敗しました: %w", err)
		}
		follows = append(follows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー一覧の走査に失敗しました: %w", err)
	}
	return follows, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
