// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/leanbff/internal/account"
	"github.com/hitoshi/leanbff/internal/middleware"
	"github.com/hitoshi/leanbff/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, in account.SignUpInput) (*model.Identity, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	Me(ctx context.Context, accessToken string) (*model.Account, error)
}

// AuthHandler はアカウントライフサイクルのHTTPハンドラー。
// いずれのルートも認証ゲートの外に置く。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// SignUp はメールアドレスとパスワードでアカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeRequest(r, &req, model.MsgCredentialsRequired); err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.service.SignUp(r.Context(), account.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    toUserSummaryResponse(created),
	})
}

// SignIn はメールアドレスとパスワードで認証し、セッションを返す。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeRequest(r, &req, model.MsgCredentialsRequired); err != nil {
		handleServiceError(w, r, err)
		return
	}

	signedIn, session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    toUserSummaryResponse(signedIn),
		"session": toSessionResponse(session),
	})
}

// SignOut は呼び出し元のセッションを無効化する。
// Bearerトークンは検証せずにそのままバックエンドへ渡す。トークンがない場合は何もせず成功とする。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.ExtractBearer(r.Header.Get("Authorization"))

	if err := h.service.SignOut(r.Context(), token); err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Logout successful",
	})
}

// Refresh はリフレッシュトークンを新しいセッションに交換する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeRequest(r, &req, model.MsgRefreshTokenRequired); err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Token refreshed successfully",
		"session": toSessionResponse(session),
	})
}

// Me は呼び出し元のIdentityとプロフィールを合成して返す。
// 認証ゲートを使わず、サービス層でトークンを検証する。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.ExtractBearer(r.Header.Get("Authorization"))

	acc, err := h.service.Me(r.Context(), token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"user": toAccountResponse(acc),
	})
}
