// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は外部IDバックエンドが管理する認証済みプリンシパルを表す。
// リクエストごとにバックエンドから解決され、ゲートウェイ内ではキャッシュも永続化もしない。
// 解決したリクエストの処理期間中のみ有効。
type Identity struct {
	ID       string
	Email    string
	FullName string // user_metadata.full_name。未設定の場合は空文字列
}

// Session はIDバックエンドが発行するトークンペアを表す。
// ゲートウェイは保存せず、クライアントへそのまま受け渡す。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // UNIX秒
}

// Profile はIdentityに紐づくアプリケーション管理のプロフィールレコード。
// IDはIdentity.IDと一致するが、両者の削除はトランザクションで保護されない。
type Profile struct {
	ID        string
	Email     string
	FullName  *string
	AvatarURL *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account は /auth/me が返すIdentityとProfileの合成ビュー。
// Profileが取得できなかった場合、Profile由来のフィールドはnilのまま。
type Account struct {
	ID        string
	Email     string
	FullName  *string
	AvatarURL *string
	CreatedAt *time.Time
}

// NewAccount はIdentityとProfileを合成する。
// full_nameはProfileの値が空でなければそちらを優先し、なければIdentityのメタデータを使う。
func NewAccount(identity *Identity, profile *Profile) *Account {
	acc := &Account{
		ID:    identity.ID,
		Email: identity.Email,
	}
	if identity.FullName != "" {
		name := identity.FullName
		acc.FullName = &name
	}
	if profile == nil {
		return acc
	}
	if profile.FullName != nil && *profile.FullName != "" {
		acc.FullName = profile.FullName
	}
	acc.AvatarURL = profile.AvatarURL
	createdAt := profile.CreatedAt
	acc.CreatedAt = &createdAt
	return acc
}

// StringPtr は空文字列をnilとして扱うポインタ変換。
// プロフィールの任意項目は「空」と「未指定」を区別せずNULLとして保存する。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
