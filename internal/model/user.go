// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Follow はフォロー関係（User -> Author）を表す。
type Follow struct {
	ID       int64
	UserID   string
	AuthorID string

	// 表示用
	Username       string
	AuthorUsername string
}

// String はフォロー関係の表示ラベルを返す。
func (f *Follow) String() string {
	return f.Username + " -> " + f.AuthorUsername
}
