// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// 画面に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: not_found, validation, forbidden, auth
	Action   string // ユーザー向け対処方法

	// Fields はフォーム項目ごとの検証エラーを保持する（validationのみ）。
	Fields map[string][]string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryNotFound   = "not_found"
	CategoryValidation = "validation"
	CategoryForbidden  = "forbidden"
	CategoryAuth       = "auth"
)

// 定義済みエラーコード
const (
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeGroupNotFound      = "GROUP_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeFollowNotFound     = "FOLLOW_NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
)

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %d", postID),
		Category: CategoryNotFound,
		Action:   "投稿IDを確認してください。",
	}
}

// NewGroupNotFoundError はグループ未検出エラーを生成する。
func NewGroupNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  fmt.Sprintf("指定されたグループが見つかりません: %s", slug),
		Category: CategoryNotFound,
		Action:   "グループのURLを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", username),
		Category: CategoryNotFound,
		Action:   "ユーザー名を確認してください。",
	}
}

// NewFollowNotFoundError はフォロー関係が存在しない場合のエラーを生成する。
func NewFollowNotFoundError(author string) *APIError {
	return &APIError{
		Code:     ErrCodeFollowNotFound,
		Message:  fmt.Sprintf("%s をフォローしていません。", author),
		Category: CategoryNotFound,
		Action:   "フォロー状態を確認してください。",
	}
}

// NewValidationError はフォーム検証エラーを生成する。
func NewValidationError(fields map[string][]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: CategoryValidation,
		Action:   "エラー内容を確認して再度送信してください。",
		Fields:   fields,
	}
}

// NewForbiddenError は権限のない操作に対するエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: CategoryForbidden,
		Action:   "投稿者本人のみ編集できます。",
	}
}

// NewUnauthenticatedError は未ログイン状態での操作に対するエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("ユーザー名 %s は既に使われています。", username),
		Category: CategoryValidation,
		Action:   "別のユーザー名を指定してください。",
		Fields:   map[string][]string{"username": {"このユーザー名は既に使われています。"}},
	}
}

// IsCategory はerrがAPIErrorで、指定カテゴリに属するかを判定する。
func IsCategory(err error, category string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == category
	}
	return false
}
