package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/leanbff/internal/identity"
	"github.com/hitoshi/leanbff/internal/model"
)

// mockIdentityResolver はIdentityResolverのモック。
type mockIdentityResolver struct {
	resolveFn func(ctx context.Context, accessToken string) (*model.Identity, error)
	calls     int
}

func (m *mockIdentityResolver) ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error) {
	m.calls++
	return m.resolveFn(ctx, accessToken)
}

// mockMetrics はRecordAuthRejectionとRecordHTTPStatusの呼び出しを記録するモック。
type mockMetrics struct {
	reasons  []string
	statuses []int
}

func (m *mockMetrics) RecordAuthRejection(reason string)                       { m.reasons = append(m.reasons, reason) }
func (m *mockMetrics) RecordBackendCall(string, string, string, time.Duration) {}
func (m *mockMetrics) RecordBestEffortFailure(string)                          {}
func (m *mockMetrics) RecordHTTPStatus(code int)                               { m.statuses = append(m.statuses, code) }

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error
}

// TestAuthGate_MissingCredential はBearerヘッダーがない場合にバックエンドを呼ばずに401を返すことを検証する。
func TestAuthGate_MissingCredential(t *testing.T) {
	headers := []struct {
		name  string
		value string
	}{
		{"ヘッダーなし", ""},
		{"Basic認証", "Basic dXNlcjpwYXNz"},
		{"スキームのみ", "Bearer "},
		{"小文字のスキーム", "bearer token"},
		{"区切りなし", "Bearertoken"},
	}

	for _, tt := range headers {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockIdentityResolver{
				resolveFn: func(ctx context.Context, accessToken string) (*model.Identity, error) {
					return &model.Identity{ID: "user-1"}, nil
				},
			}
			m := &mockMetrics{}
			handlerCalled := false
			gate := NewAuthGate(resolver, m)
			h := gate.Require(func(w http.ResponseWriter, r *http.Request, id model.Identity) {
				handlerCalled = true
			})

			req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
			if tt.value != "" {
				req.Header.Set("Authorization", tt.value)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := decodeErrorBody(t, w); got != "Unauthorized - No token provided" {
				t.Errorf("error = %q", got)
			}
			if resolver.calls != 0 {
				t.Errorf("ResolveIdentity called %d times, want 0", resolver.calls)
			}
			if handlerCalled {
				t.Error("handler should not have been called")
			}
			if len(m.reasons) != 1 || m.reasons[0] != ReasonMissingCredential {
				t.Errorf("reasons = %v", m.reasons)
			}
		})
	}
}

// TestAuthGate_BackendFailures はバックエンドの判定ごとに拒否理由とメッセージが区別されることを検証する。
func TestAuthGate_BackendFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantReason  string
	}{
		{
			name:        "無効なトークン",
			err:         fmt.Errorf("%w: invalid JWT", identity.ErrInvalidToken),
			wantMessage: "Unauthorized - Invalid token",
			wantReason:  ReasonInvalidCredential,
		},
		{
			name:        "バックエンド障害",
			err:         fmt.Errorf("%w: status 503", identity.ErrUnavailable),
			wantMessage: "Unauthorized - Token verification failed",
			wantReason:  ReasonVerificationFailed,
		},
		{
			name:        "タイムアウト",
			err:         context.DeadlineExceeded,
			wantMessage: "Unauthorized - Token verification failed",
			wantReason:  ReasonVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockIdentityResolver{
				resolveFn: func(ctx context.Context, accessToken string) (*model.Identity, error) {
					return nil, tt.err
				},
			}
			m := &mockMetrics{}
			gate := NewAuthGate(resolver, m)
			h := gate.Require(func(w http.ResponseWriter, r *http.Request, id model.Identity) {
				t.Error("handler should not have been called")
			})

			req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := decodeErrorBody(t, w); got != tt.wantMessage {
				t.Errorf("error = %q, want %q", got, tt.wantMessage)
			}
			if len(m.reasons) != 1 || m.reasons[0] != tt.wantReason {
				t.Errorf("reasons = %v, want [%s]", m.reasons, tt.wantReason)
			}
		})
	}
}

// TestAuthGate_PassesIdentity はバックエンドが解決したIdentityがそのままハンドラーに渡ることを検証する。
func TestAuthGate_PassesIdentity(t *testing.T) {
	var gotToken string
	resolver := &mockIdentityResolver{
		resolveFn: func(ctx context.Context, accessToken string) (*model.Identity, error) {
			gotToken = accessToken
			return &model.Identity{ID: "3f1c-user", Email: "a@b.com", FullName: "Alice"}, nil
		},
	}
	m := &mockMetrics{}

	var gotID model.Identity
	var ctxID model.Identity
	var ctxOK bool
	gate := NewAuthGate(resolver, m)
	h := gate.Require(func(w http.ResponseWriter, r *http.Request, id model.Identity) {
		gotID = id
		ctxID, ctxOK = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotToken != "valid-token" {
		t.Errorf("token = %q, want %q", gotToken, "valid-token")
	}
	if gotID.ID != "3f1c-user" || gotID.Email != "a@b.com" {
		t.Errorf("identity = %+v", gotID)
	}
	if !ctxOK || ctxID.ID != "3f1c-user" {
		t.Errorf("context identity = %+v, ok = %v", ctxID, ctxOK)
	}
	if len(m.reasons) != 0 {
		t.Errorf("成功時に拒否が記録されました: %v", m.reasons)
	}
}

func TestNewAuthGate_NilMetrics(t *testing.T) {
	resolver := &mockIdentityResolver{
		resolveFn: func(ctx context.Context, accessToken string) (*model.Identity, error) {
			return nil, errors.New("unreachable")
		},
	}
	h := NewAuthGate(resolver, nil).Require(func(w http.ResponseWriter, r *http.Request, id model.Identity) {})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header    string
		wantToken string
		wantOK    bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer   padded  ", "padded", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		token, ok := ExtractBearer(tt.header)
		if token != tt.wantToken || ok != tt.wantOK {
			t.Errorf("ExtractBearer(%q) = (%q, %v), want (%q, %v)", tt.header, token, ok, tt.wantToken, tt.wantOK)
		}
	}
}

func TestIdentityFromContext_Missing(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("expected ok = false for context without identity")
	}
}
