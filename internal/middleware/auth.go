// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/leanbff/internal/identity"
	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/metrics"
	"github.com/hitoshi/leanbff/internal/model"
)

const bearerPrefix = "Bearer "

// 認証ゲートの拒否理由。ログとメトリクスのreasonラベルに使う。
const (
	ReasonMissingCredential  = "missing_credential"
	ReasonInvalidCredential  = "invalid_credential"
	ReasonVerificationFailed = "verification_failed"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はログ用に検証済みIdentityの写しを格納するキー。
var identityContextKey = contextKey("identity")

// IdentityResolver はアクセストークンからIdentityを解決するインターフェース。
// identity.Clientの部分集合として定義する。
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error)
}

// AuthenticatedHandlerFunc は認証ゲートを通過したリクエストを処理するハンドラー。
// Identityは必ず検証済みで、AuthGate.Requireを経由しないと呼び出せない。
type AuthenticatedHandlerFunc func(w http.ResponseWriter, r *http.Request, id model.Identity)

// AuthGate はBearerトークンを検証し、認証済みハンドラーへIdentityを渡すゲート。
// リクエストごとにIDバックエンドで検証し、結果はキャッシュしない。
type AuthGate struct {
	resolver IdentityResolver
	metrics  metrics.MetricsCollector
}

// NewAuthGate はAuthGateを生成する。mがnilの場合はメトリクスを記録しない。
func NewAuthGate(resolver IdentityResolver, m metrics.MetricsCollector) *AuthGate {
	if m == nil {
		m = metrics.Nop{}
	}
	return &AuthGate{resolver: resolver, metrics: m}
}

// Require はトークン検証に成功したリクエストのみhを呼び出すhttp.Handlerを返す。
//   - ヘッダーなし、またはBearer形式でない: 401（バックエンドは呼ばない）
//   - バックエンドがトークンを拒否: 401
//   - バックエンドで検証できない: 401
func (g *AuthGate) Require(h AuthenticatedHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := ExtractBearer(r.Header.Get("Authorization"))
		if !ok {
			g.reject(ctx, w, ReasonMissingCredential, model.MsgGateNoTokenProvided, nil)
			return
		}

		resolved, err := g.resolver.ResolveIdentity(ctx, token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				g.reject(ctx, w, ReasonInvalidCredential, model.MsgGateInvalidToken, err)
			} else {
				g.reject(ctx, w, ReasonVerificationFailed, model.MsgGateVerificationError, err)
			}
			return
		}

		id := *resolved
		setAccessLogUserID(ctx, id.ID)
		ctx = ContextWithIdentity(ctx, id)
		h(w, r.WithContext(ctx), id)
	})
}

func (g *AuthGate) reject(ctx context.Context, w http.ResponseWriter, reason, message string, cause error) {
	g.metrics.RecordAuthRejection(reason)

	attrs := []any{slog.String("reason", reason)}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	logger.FromContext(ctx).Warn("auth gate rejected request", attrs...)

	WriteError(w, http.StatusUnauthorized, message)
}

// ExtractBearer はAuthorizationヘッダーの値からBearerトークンを取り出す。
// "Bearer "で始まらない場合やトークンが空の場合はfalseを返す。
func ExtractBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// ContextWithIdentity はコンテキストにIdentityの写しを格納する。
// ログ出力など、Identityを引数で受け取れない箇所から参照するために使う。
func ContextWithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext はコンテキストからIdentityの写しを取得する。
// 認証ゲートを通過していないリクエストではfalseを返す。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(model.Identity)
	return id, ok
}
