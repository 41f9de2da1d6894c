package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/middleware"
)

const (
	apiName    = "Lean Stack BFF API"
	apiVersion = "1.0.0"

	healthCheckTimeout = 2 * time.Second
)

// HealthChecker はレコードバックエンドの疎通確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はAPI情報とヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
	now     func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。checkerがnilの場合は常に正常を返す。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker, now: time.Now}
}

// Root はAPI名、バージョン、現在時刻を返す。
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   apiName,
		"version":   apiVersion,
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// Health はデータベースへの疎通を確認する。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.checker.PingContext(ctx); err != nil {
			logger.FromContext(r.Context()).Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusServiceUnavailable, "Service Unavailable")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}
