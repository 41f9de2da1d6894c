// Package profile はプロフィールの参照、更新とアカウント削除のドメインロジックを提供する。
// 全ての操作は認証ゲートを通過したIdentityを前提とする。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/leanbff/internal/besteffort"
	"github.com/hitoshi/leanbff/internal/identity"
	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/model"
	"github.com/hitoshi/leanbff/internal/repository"
	"github.com/hitoshi/leanbff/internal/security"
)

// IdentityDeleter はIDバックエンドのIdentity削除インターフェース。
type IdentityDeleter interface {
	DeleteIdentity(ctx context.Context, id string) error
}

// UpdateInput はプロフィール更新の入力。
// 空文字列の項目はNULLとして保存する。
type UpdateInput struct {
	FullName  string
	AvatarURL string
}

// Service はプロフィール管理のサービス層。
type Service struct {
	profiles   repository.ProfileRepository
	identities IdentityDeleter
	sanitizer  security.TextSanitizer
	bestEffort *besteffort.Policy
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profiles repository.ProfileRepository,
	identities IdentityDeleter,
	sanitizer security.TextSanitizer,
	bestEffort *besteffort.Policy,
) *Service {
	if bestEffort == nil {
		bestEffort = besteffort.New(nil)
	}
	return &Service{
		profiles:   profiles,
		identities: identities,
		sanitizer:  sanitizer,
		bestEffort: bestEffort,
		now:        time.Now,
	}
}

// Get は指定ユーザーのプロフィールを取得する。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError(fmt.Errorf("プロフィールの取得に失敗しました: %w", err))
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// Update はfull_nameとavatar_urlを入力値で置き換える。
// 省略された項目は既存値を保持せずNULLにする。
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*model.Profile, error) {
	fullName := model.StringPtr(s.sanitizer.SanitizeText(in.FullName))
	avatarURL := model.StringPtr(strings.TrimSpace(in.AvatarURL))

	p, err := s.profiles.Update(ctx, userID, fullName, avatarURL, s.now())
	if err != nil {
		if msg, ok := repository.IsConstraintViolation(err); ok {
			return nil, model.NewBackendRejectedError(msg, err)
		}
		return nil, model.NewInternalError(fmt.Errorf("プロフィールの更新に失敗しました: %w", err))
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// DeleteAccount はプロフィールを削除した後、Identityを削除する。
// プロフィール削除はベストエフォートで、失敗してもIdentity削除は必ず試みる。
// 結果はIdentity削除の成否のみで決まる。
// Identity削除に失敗した場合、プロフィールだけが消えた状態が残りうる。
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	s.bestEffort.Run(ctx, besteffort.StepAccountDeleteProfile, userID, func(ctx context.Context) error {
		return s.profiles.DeleteByID(ctx, userID)
	})

	if err := s.identities.DeleteIdentity(ctx, userID); err != nil {
		var be *identity.BackendError
		if errors.As(err, &be) {
			return model.NewBackendRejectedError(be.Message, err)
		}
		return model.NewInternalError(fmt.Errorf("Identityの削除に失敗しました: %w", err))
	}

	logger.FromContext(ctx).Info("account deleted",
		slog.String("user_id", userID),
	)
	return nil
}
