package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/postline/internal/form"
	"github.com/hitoshi/postline/internal/model"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
	// bcryptが扱えるパスワードの最大バイト数
	maxPasswordBytes = 72
)

// 検証メッセージ
const (
	MsgInvalidUsername  = "ユーザー名には英数字と @/./+/-/_ のみ使用できます（150文字以内）。"
	MsgPasswordTooShort = "パスワードは8文字以上にしてください。"
	MsgPasswordMismatch = "確認用パスワードが一致しません。"
	MsgPasswordTooLong  = "パスワードは72バイト以内にしてください。"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// SignupForm はユーザー登録フォーム。
type SignupForm struct {
	Username        string
	Password        string
	PasswordConfirm string
	Errors          form.Errors
}

// Validate は入力を検証する。エラーはf.Errorsに格納する。
func (f *SignupForm) Validate() error {
	f.Errors = form.Errors{}

	username := strings.TrimSpace(f.Username)
	switch {
	case username == "":
		f.Errors["username"] = append(f.Errors["username"], form.MsgRequired)
	case utf8.RuneCountInString(username) > maxUsernameLength || !usernamePattern.MatchString(username):
		f.Errors["username"] = append(f.Errors["username"], MsgInvalidUsername)
	}

	switch {
	case f.Password == "":
		f.Errors["password"] = append(f.Errors["password"], form.MsgRequired)
	case utf8.RuneCountInString(f.Password) < minPasswordLength:
		f.Errors["password"] = append(f.Errors["password"], MsgPasswordTooShort)
	case len(f.Password) > maxPasswordBytes:
		f.Errors["password"] = append(f.Errors["password"], MsgPasswordTooLong)
	}

	if f.Password != f.PasswordConfirm {
		f.Errors["password_confirm"] = append(f.Errors["password_confirm"], MsgPasswordMismatch)
	}

	if len(f.Errors) > 0 {
		return model.NewValidationError(f.Errors)
	}
	return nil
}

// LoginForm はログインフォーム。
type LoginForm struct {
	Username string
	Password string
	Next     string
	Errors   form.Errors
}

// Validate は必須項目を検証する。
func (f *LoginForm) Validate() error {
	f.Errors = form.Errors{}
	if strings.TrimSpace(f.Username) == "" {
		f.Errors["username"] = append(f.Errors["username"], form.MsgRequired)
	}
	if f.Password == "" {
		f.Errors["password"] = append(f.Errors["password"], form.MsgRequired)
	}
	if len(f.Errors) > 0 {
		return model.NewValidationError(f.Errors)
	}
	return nil
}
