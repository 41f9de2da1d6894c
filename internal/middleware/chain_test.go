package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/model"
)

// newTestChain はルーターと同じ順序でミドルウェアを組み立てる。
func newTestChain(l *slog.Logger, m *mockMetrics, h http.Handler) http.Handler {
	return NewRequestIDMiddleware()(
		NewLoggingMiddleware(l)(
			NewMetricsMiddleware(m)(
				NewRecoveryMiddleware()(
					NewSecurityHeadersMiddleware()(h),
				),
			),
		),
	)
}

// TestMiddlewareChain_AuthenticatedRequest は認証済みリクエストのアクセスログにuser_idとrequest_idが含まれることを検証する。
func TestMiddlewareChain_AuthenticatedRequest(t *testing.T) {
	var buf bytes.Buffer
	l := logger.Setup(&buf, slog.LevelInfo)
	m := &mockMetrics{}

	resolver := &mockIdentityResolver{
		resolveFn: func(ctx context.Context, accessToken string) (*model.Identity, error) {
			return &model.Identity{ID: "user-chain-test"}, nil
		},
	}
	gate := NewAuthGate(resolver, m)

	var capturedID string
	handler := newTestChain(l, m, gate.Require(func(w http.ResponseWriter, r *http.Request, id model.Identity) {
		capturedID = id.ID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer valid")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedID != "user-chain-test" {
		t.Errorf("userID = %q, want %q", capturedID, "user-chain-test")
	}

	entry := parseLogEntry(t, &buf)
	if entry["user_id"] != "user-chain-test" {
		t.Errorf("access log user_id = %v", entry["user_id"])
	}
	if entry["request_id"] != w.Header().Get(RequestIDHeader) {
		t.Errorf("access log request_id = %v, header = %q", entry["request_id"], w.Header().Get(RequestIDHeader))
	}
	if len(m.statuses) != 1 || m.statuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v", m.statuses)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("セキュリティヘッダーが付与されていません")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("Cache-Controlが付与されていません")
	}
}

// TestMiddlewareChain_Rejected はゲートの拒否がログとメトリクスに反映されることを検証する。
func TestMiddlewareChain_Rejected(t *testing.T) {
	var buf bytes.Buffer
	l := logger.Setup(&buf, slog.LevelInfo)
	orig := slog.Default()
	slog.SetDefault(l)
	t.Cleanup(func() { slog.SetDefault(orig) })
	m := &mockMetrics{}

	gate := NewAuthGate(&mockIdentityResolver{}, m)
	handler := newTestChain(l, m, gate.Require(func(w http.ResponseWriter, r *http.Request, id model.Identity) {
		t.Error("handler should not have been called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/profile", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if len(m.statuses) != 1 || m.statuses[0] != http.StatusUnauthorized {
		t.Errorf("recorded statuses = %v", m.statuses)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"reason":"missing_credential"`)) {
		t.Errorf("拒否理由がログに記録されていません: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"`+w.Header().Get(RequestIDHeader)+`"`)) {
		t.Errorf("拒否ログにrequest_idがありません: %s", buf.String())
	}
}

// TestMiddlewareChain_PanicIsRecorded はpanicが500としてメトリクスに記録されることを検証する。
func TestMiddlewareChain_PanicIsRecorded(t *testing.T) {
	var buf bytes.Buffer
	l := logger.Setup(&buf, slog.LevelInfo)
	orig := slog.Default()
	slog.SetDefault(l)
	t.Cleanup(func() { slog.SetDefault(orig) })
	m := &mockMetrics{}

	handler := newTestChain(l, m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if len(m.statuses) != 1 || m.statuses[0] != http.StatusInternalServerError {
		t.Errorf("recorded statuses = %v", m.statuses)
	}
}
