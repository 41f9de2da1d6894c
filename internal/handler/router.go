package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/leanbff/internal/metrics"
	"github.com/hitoshi/leanbff/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	CORSAllowedOrigins []string
	AuthGate           *middleware.AuthGate

	// アカウントライフサイクル
	AuthService AuthServiceInterface

	// プロフィール
	ProfileService ProfileServiceInterface

	// ヘルスチェック、メトリクス公開
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Metrics → Recovery → SecurityHeaders → CORS
//
// /user/* は認証ゲートを通過したハンドラーのみを登録する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(l))
	r.Use(middleware.NewMetricsMiddleware(m))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	healthHandler := NewHealthHandler(deps.HealthChecker)
	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.ProfileService)

	// --- 認証不要のルート ---

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// アカウントライフサイクル（/auth/meはハンドラー内で検証する）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
		r.Post("/refresh", authHandler.Refresh)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	gate := deps.AuthGate
	r.Route("/user", func(r chi.Router) {
		r.Method(http.MethodGet, "/profile", gate.Require(userHandler.GetProfile))
		r.Method(http.MethodPut, "/profile", gate.Require(userHandler.UpdateProfile))
		r.Method(http.MethodDelete, "/account", gate.Require(userHandler.DeleteAccount))
	})

	return r
}
