package handler

import (
	"time"

	"github.com/hitoshi/leanbff/internal/model"
)

// userSummaryResponse はサインアップとサインインで返すユーザー概要。
type userSummaryResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

// sessionResponse はクライアントへ受け渡すトークンペア。
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// accountResponse は/auth/meで返すIdentityとプロフィールの合成ビュー。
type accountResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  *string    `json:"full_name"`
	AvatarURL *string    `json:"avatar_url"`
	CreatedAt *time.Time `json:"created_at"`
}

// profileResponse はプロフィールレコードのAPIレスポンス。
type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserSummaryResponse(id *model.Identity) userSummaryResponse {
	return userSummaryResponse{
		ID:       id.ID,
		Email:    id.Email,
		FullName: model.StringPtr(id.FullName),
	}
}

func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.FullName,
		AvatarURL: a.AvatarURL,
		CreatedAt: a.CreatedAt,
	}
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
