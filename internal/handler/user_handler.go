package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/leanbff/internal/middleware"
	"github.com/hitoshi/leanbff/internal/model"
	"github.com/hitoshi/leanbff/internal/profile"
)

// ProfileServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error)
	// DeleteAccount はプロフィールを削除した後にIdentityを削除する。
	DeleteAccount(ctx context.Context, userID string) error
}

// UserHandler はプロフィール管理のHTTPハンドラー。
// 全てのメソッドは認証ゲートを通過したIdentityを引数に取る。
type UserHandler struct {
	service ProfileServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service ProfileServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// GetProfile は呼び出し元のプロフィールを返す。
// GET /user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request, id model.Identity) {
	p, err := h.service.Get(r.Context(), id.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"profile": toProfileResponse(p),
	})
}

// UpdateProfile はプロフィールを入力値で置き換える。
// PUT /user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, id model.Identity) {
	var req updateProfileRequest
	if err := decodeRequest(r, &req, model.MsgInvalidRequestBody); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), id.ID, profile.UpdateInput{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"profile": toProfileResponse(p),
	})
}

// DeleteAccount はプロフィールとIdentityを削除する。
// DELETE /user/account
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request, id model.Identity) {
	if err := h.service.DeleteAccount(r.Context(), id.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Account deleted successfully",
	})
}
