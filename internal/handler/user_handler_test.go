package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/leanbff/internal/model"
	"github.com/hitoshi/leanbff/internal/profile"
)

// --- モック定義 ---

type mockProfileService struct {
	getFn           func(ctx context.Context, userID string) (*model.Profile, error)
	updateFn        func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error)
	deleteAccountFn func(ctx context.Context, userID string) error
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, errors.New("unexpected call to Get")
}

func (m *mockProfileService) Update(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, in)
	}
	return nil, errors.New("unexpected call to Update")
}

func (m *mockProfileService) DeleteAccount(ctx context.Context, userID string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, userID)
	}
	return errors.New("unexpected call to DeleteAccount")
}

var testIdentity = model.Identity{ID: "user-1", Email: "a@b.com"}

// --- テスト ---

func TestUserHandler_GetProfile(t *testing.T) {
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockProfileService{
		getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q", userID)
			}
			return &model.Profile{
				ID:        userID,
				Email:     "a@b.com",
				FullName:  model.StringPtr("Alice"),
				CreatedAt: ts,
				UpdatedAt: ts,
			}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.GetProfile(w, httptest.NewRequest(http.MethodGet, "/user/profile", nil), testIdentity)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	p := decodeBody(t, w)["profile"].(map[string]any)
	if p["id"] != "user-1" || p["email"] != "a@b.com" || p["full_name"] != "Alice" {
		t.Errorf("profile = %v", p)
	}
	if v, ok := p["avatar_url"]; !ok || v != nil {
		t.Errorf("avatar_url = %v, want null", v)
	}
	if p["created_at"] != "2025-05-01T00:00:00Z" || p["updated_at"] != "2025-05-01T00:00:00Z" {
		t.Errorf("timestamps = %v, %v", p["created_at"], p["updated_at"])
	}
}

func TestUserHandler_GetProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"未作成", model.NewProfileNotFoundError(), http.StatusNotFound, "Profile not found"},
		{"ストア障害", model.NewInternalError(errors.New("connection refused")), http.StatusInternalServerError, "Internal server error"},
		{"分類されないエラー", errors.New("unexpected"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProfileService{
				getFn: func(ctx context.Context, userID string) (*model.Profile, error) {
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			NewUserHandler(svc).GetProfile(w, httptest.NewRequest(http.MethodGet, "/user/profile", nil), testIdentity)
			assertErrorResponse(t, w, tt.status, tt.message)
		})
	}
}

// TestUserHandler_UpdateProfile_FullReplace はavatar_urlを省略した更新でnullが返ることを検証する。
func TestUserHandler_UpdateProfile_FullReplace(t *testing.T) {
	var gotInput profile.UpdateInput
	svc := &mockProfileService{
		updateFn: func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
			gotInput = in
			return &model.Profile{
				ID:        userID,
				Email:     "a@b.com",
				FullName:  model.StringPtr(in.FullName),
				AvatarURL: model.StringPtr(in.AvatarURL),
			}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.UpdateProfile(w, jsonRequest(http.MethodPut, "/user/profile", `{"full_name":"X"}`), testIdentity)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotInput.FullName != "X" || gotInput.AvatarURL != "" {
		t.Errorf("input = %+v", gotInput)
	}
	body := decodeBody(t, w)
	if body["message"] != "Profile updated successfully" {
		t.Errorf("message = %v", body["message"])
	}
	p := body["profile"].(map[string]any)
	if p["full_name"] != "X" {
		t.Errorf("full_name = %v, want X", p["full_name"])
	}
	if v, ok := p["avatar_url"]; !ok || v != nil {
		t.Errorf("avatar_url = %v, want null", v)
	}
}

func TestUserHandler_UpdateProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{
			name:    "不正なJSON",
			body:    `{"full_name":`,
			status:  http.StatusBadRequest,
			message: "Invalid request body",
		},
		{
			name:    "型不一致",
			body:    `{"full_name":42}`,
			status:  http.StatusBadRequest,
			message: "Invalid request body",
		},
		{
			name:    "対象なし",
			body:    `{"full_name":"X"}`,
			err:     model.NewProfileNotFoundError(),
			status:  http.StatusNotFound,
			message: "Profile not found",
		},
		{
			name:    "制約違反",
			body:    `{"full_name":"X"}`,
			err:     model.NewBackendRejectedError("value too long", nil),
			status:  http.StatusBadRequest,
			message: "value too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockProfileService{
				updateFn: func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
					if tt.err == nil {
						t.Error("不正なボディでサービスが呼ばれました")
					}
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			NewUserHandler(svc).UpdateProfile(w, jsonRequest(http.MethodPut, "/user/profile", tt.body), testIdentity)
			assertErrorResponse(t, w, tt.status, tt.message)
		})
	}
}

// TestUserHandler_UpdateProfile_EmptyBody は空ボディが全項目のクリアとして扱われることを検証する。
func TestUserHandler_UpdateProfile_EmptyBody(t *testing.T) {
	called := false
	svc := &mockProfileService{
		updateFn: func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
			called = true
			if in != (profile.UpdateInput{}) {
				t.Errorf("input = %+v, want zero", in)
			}
			return &model.Profile{ID: userID}, nil
		},
	}

	w := httptest.NewRecorder()
	NewUserHandler(svc).UpdateProfile(w, jsonRequest(http.MethodPut, "/user/profile", ""), testIdentity)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !called {
		t.Error("サービスが呼ばれていません")
	}
}

func TestUserHandler_DeleteAccount(t *testing.T) {
	var gotUserID string
	svc := &mockProfileService{
		deleteAccountFn: func(ctx context.Context, userID string) error {
			gotUserID = userID
			return nil
		},
	}

	w := httptest.NewRecorder()
	NewUserHandler(svc).DeleteAccount(w, httptest.NewRequest(http.MethodDelete, "/user/account", nil), testIdentity)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q", gotUserID)
	}
	if body := decodeBody(t, w); body["message"] != "Account deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestUserHandler_DeleteAccount_Rejected(t *testing.T) {
	svc := &mockProfileService{
		deleteAccountFn: func(ctx context.Context, userID string) error {
			return model.NewBackendRejectedError("User not found", nil)
		},
	}

	w := httptest.NewRecorder()
	NewUserHandler(svc).DeleteAccount(w, httptest.NewRequest(http.MethodDelete, "/user/account", nil), testIdentity)

	assertErrorResponse(t, w, http.StatusBadRequest, "User not found")
}
