package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/postline/internal/auth"
	"github.com/hitoshi/postline/internal/middleware"
	"github.com/hitoshi/postline/internal/model"
	"github.com/hitoshi/postline/internal/render"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, f *auth.SignupForm) (*model.User, *model.Session, error)
	Login(ctx context.Context, f *auth.LoginForm) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Withdraw(ctx context.Context, userID string) error
}

// AuthHandler は登録・ログイン・ログアウト・退会のHTTPハンドラー。
type AuthHandler struct {
	auth   AuthServiceInterface
	users  UserServiceInterface
	cookie middleware.CookieConfig
	rs     *Responder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, userService UserServiceInterface, cookie middleware.CookieConfig, rs *Responder) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		users:  userService,
		cookie: cookie,
		rs:     rs,
	}
}

// SignupForm はユーザー登録フォームを表示する。
// GET /auth/signup/
func (h *AuthHandler) SignupForm(_ context.Context, req *Request) (*Response, error) {
	return h.rs.Page(req, http.StatusOK, render.PageSignup, "新規登録", render.AuthFormData{})
}

// Signup はユーザーを作成してログイン状態にし、トップページへリダイレクトする。
// POST /auth/signup/
func (h *AuthHandler) Signup(ctx context.Context, req *Request) (*Response, error) {
	f := &auth.SignupForm{
		Username:        req.Form.Get("username"),
		Password:        req.Form.Get("password"),
		PasswordConfirm: req.Form.Get("password_confirm"),
	}
	_, session, err := h.auth.Signup(ctx, f)
	if err != nil {
		if model.IsCategory(err, model.CategoryValidation) {
			return h.rs.Page(req, http.StatusOK, render.PageSignup, "新規登録", render.AuthFormData{
				Username: f.Username,
				Errors:   f.Errors,
			})
		}
		return nil, err
	}

	res := RedirectTo("/")
	res.Cookies = append(res.Cookies, middleware.SessionCookie(session.ID, h.cookie))
	return res, nil
}

// LoginForm はログインフォームを表示する。
// GET /auth/login/
func (h *AuthHandler) LoginForm(_ context.Context, req *Request) (*Response, error) {
	return h.rs.Page(req, http.StatusOK, render.PageLogin, "ログイン", render.AuthFormData{
		Next: req.Query.Get("next"),
	})
}

// Login はセッションを発行し、nextで指定されたサイト内のパスへリダイレクトする。
// POST /auth/login/
func (h *AuthHandler) Login(ctx context.Context, req *Request) (*Response, error) {
	f := &auth.LoginForm{
		Username: req.Form.Get("username"),
		Password: req.Form.Get("password"),
		Next:     req.Form.Get("next"),
	}
	_, session, err := h.auth.Login(ctx, f)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Category == model.CategoryValidation {
			data := render.AuthFormData{Username: f.Username, Next: f.Next, Errors: f.Errors}
			if apiErr.Code == model.ErrCodeInvalidCredentials {
				data.Message = apiErr.Message
			}
			return h.rs.Page(req, http.StatusOK, render.PageLogin, "ログイン", data)
		}
		return nil, err
	}

	res := RedirectTo(auth.SafeNext(f.Next, "/"))
	res.Cookies = append(res.Cookies, middleware.SessionCookie(session.ID, h.cookie))
	return res, nil
}

// LogoutConfirm はログアウトの確認画面を表示する。
// GET /auth/logout/
func (h *AuthHandler) LogoutConfirm(_ context.Context, req *Request) (*Response, error) {
	return h.rs.Page(req, http.StatusOK, render.PageLogout, "ログアウト", nil)
}

// Logout はセッションを破棄してログアウト完了画面を表示する。
// POST /auth/logout/
func (h *AuthHandler) Logout(ctx context.Context, req *Request) (*Response, error) {
	if req.SessionID != "" {
		if err := h.auth.Logout(ctx, req.SessionID); err != nil {
			// Cookieは削除するので続行する
			h.rs.logger.Error("failed to delete session on logout",
				slog.String("error", err.Error()),
			)
		}
	}

	loggedOut := *req
	loggedOut.User = nil
	loggedOut.SessionID = ""
	res, err := h.rs.Page(&loggedOut, http.StatusOK, render.PageLogout, "ログアウト", nil)
	if err != nil {
		return nil, err
	}
	res.Cookies = append(res.Cookies, middleware.ExpiredSessionCookie(h.cookie))
	return res, nil
}

// WithdrawConfirm は退会の確認画面を表示する。
// GET /auth/withdraw/
func (h *AuthHandler) WithdrawConfirm(_ context.Context, req *Request) (*Response, error) {
	return h.rs.Page(req, http.StatusOK, render.PageWithdraw, "退会", nil)
}

// Withdraw はアカウントを削除してトップページへリダイレクトする。
// POST /auth/withdraw/
func (h *AuthHandler) Withdraw(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return nil, model.NewUnauthenticatedError()
	}
	if err := h.users.Withdraw(ctx, req.User.ID); err != nil {
		return nil, err
	}

	res := RedirectTo("/")
	res.Cookies = append(res.Cookies, middleware.ExpiredSessionCookie(h.cookie))
	return res, nil
}
