// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/leanbff/internal/model"
)

// ProfileRepository はプロフィールレコードの永続化インターフェース。
// レコードバックエンドへの呼び出しはすべてこのインターフェースを経由する。
type ProfileRepository interface {
	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Update はfull_nameとavatar_urlを指定値で置き換える。
	// nilの項目はNULLとして保存する（部分更新ではない）。
	// 対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id string, fullName, avatarURL *string, updatedAt time.Time) (*model.Profile, error)

	// DeleteByID は指定IDのプロフィールを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}
