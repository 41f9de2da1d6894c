// Package account はサインアップ、サインイン、サインアウト、セッション更新、
// 本人情報取得のドメインロジックを提供する。
//
// IDバックエンドがアカウントの存在に関する唯一の正であり、
// プロフィールストアの障害でサインアップと本人情報取得が失敗することはない。
package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/leanbff/internal/besteffort"
	"github.com/hitoshi/leanbff/internal/identity"
	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/model"
	"github.com/hitoshi/leanbff/internal/security"
)

// IdentityBackend はアカウント操作に必要なIDバックエンドの操作。
type IdentityBackend interface {
	ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*model.Identity, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
}

// ProfileStore はアカウント操作に必要なプロフィールストアの操作。
type ProfileStore interface {
	Create(ctx context.Context, profile *model.Profile) error
	FindByID(ctx context.Context, id string) (*model.Profile, error)
}

// SignUpInput はサインアップの入力。
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

// Service はアカウントライフサイクルのサービス層。
type Service struct {
	identities IdentityBackend
	profiles   ProfileStore
	sanitizer  security.TextSanitizer
	bestEffort *besteffort.Policy
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	identities IdentityBackend,
	profiles ProfileStore,
	sanitizer security.TextSanitizer,
	bestEffort *besteffort.Policy,
) *Service {
	if bestEffort == nil {
		bestEffort = besteffort.New(nil)
	}
	return &Service{
		identities: identities,
		profiles:   profiles,
		sanitizer:  sanitizer,
		bestEffort: bestEffort,
		now:        time.Now,
	}
}

// SignUp はIdentityを作成し、続けてプロフィールをベストエフォートで作成する。
// プロフィール作成の失敗はログに残すのみで、サインアップ自体は成功とする。
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.Identity, error) {
	fullName := s.sanitizer.SanitizeText(in.FullName)

	var metadata map[string]any
	if fullName != "" {
		metadata = map[string]any{"full_name": fullName}
	}

	created, err := s.identities.SignUp(ctx, in.Email, in.Password, metadata)
	if err != nil {
		var be *identity.BackendError
		if errors.As(err, &be) {
			return nil, model.NewBackendRejectedError(be.Message, err)
		}
		return nil, model.NewInternalError(err)
	}
	if created.ID == "" {
		return nil, model.NewInternalError(errors.New("identity backend returned a user without id"))
	}
	if created.Email == "" {
		created.Email = in.Email
	}
	if created.FullName == "" {
		created.FullName = fullName
	}

	now := s.now()
	profile := &model.Profile{
		ID:        created.ID,
		Email:     created.Email,
		FullName:  model.StringPtr(fullName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.bestEffort.Run(ctx, besteffort.StepSignupCreateProfile, created.ID, func(ctx context.Context) error {
		return s.profiles.Create(ctx, profile)
	})

	logger.FromContext(ctx).Info("user signed up",
		slog.String("user_id", created.ID),
	)

	return created, nil
}

// SignIn はメールアドレスとパスワードで認証し、Identityと新しいSessionを返す。
// バックエンドが認証情報を拒否した場合はバックエンドのメッセージで認証エラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	signedIn, session, err := s.identities.SignIn(ctx, email, password)
	if err != nil {
		var be *identity.BackendError
		if errors.As(err, &be) {
			return nil, nil, model.NewUnauthenticatedError(be.Message, err)
		}
		return nil, nil, model.NewInternalError(err)
	}
	return signedIn, session, nil
}

// SignOut はアクセストークンに紐づくセッションを無効化する。
// トークンはゲートで検証せずにそのままバックエンドへ渡す。
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if err := s.identities.SignOut(ctx, accessToken); err != nil {
		var be *identity.BackendError
		if errors.As(err, &be) {
			return model.NewBackendRejectedError(be.Message, err)
		}
		return model.NewInternalError(err)
	}
	return nil
}

// Refresh はリフレッシュトークンを新しいSessionに交換する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	session, err := s.identities.RefreshSession(ctx, refreshToken)
	if err != nil {
		var be *identity.BackendError
		if errors.As(err, &be) {
			return nil, model.NewUnauthenticatedError(be.Message, err)
		}
		return nil, model.NewInternalError(err)
	}
	return session, nil
}

// Me はアクセストークンを検証し、Identityとプロフィールを合成して返す。
// 共通の認証ゲートは通らず、同等の検証をここで行う。
// トークンが無効な場合も検証できなかった場合も、同じ "Invalid token" を返す。
// プロフィールの取得に失敗した場合はIdentityの情報のみで応答する。
func (s *Service) Me(ctx context.Context, accessToken string) (*model.Account, error) {
	if accessToken == "" {
		return nil, model.NewUnauthenticatedError(model.MsgNoTokenProvided, nil)
	}

	resolved, err := s.identities.ResolveIdentity(ctx, accessToken)
	if err != nil {
		return nil, model.NewUnauthenticatedError(model.MsgInvalidToken, err)
	}

	profile, err := s.profiles.FindByID(ctx, resolved.ID)
	if err != nil {
		logger.FromContext(ctx).Warn("profile lookup failed, responding with identity only",
			slog.String("user_id", resolved.ID),
			slog.String("error", err.Error()),
		)
		profile = nil
	}

	return model.NewAccount(resolved, profile), nil
}
