// Package identity はGoTrue互換の認証API（Supabase Auth）を呼び出すIDバックエンドクライアントを提供する。
// トークン検証、サインアップ、サインイン、サインアウト、セッション更新、ユーザー削除を扱う。
// パスワードのハッシュ化やトークン署名はすべてバックエンドに委譲する。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/metrics"
	"github.com/hitoshi/leanbff/internal/model"
)

const (
	// defaultTimeout はバックエンド呼び出し1回あたりの既定タイムアウト。
	defaultTimeout = 5 * time.Second
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
	authPathPrefix  = "/auth/v1"
)

var (
	// ErrInvalidToken はバックエンドがトークンを無効または期限切れと判定したことを示す。
	ErrInvalidToken = errors.New("identity: invalid or expired token")
	// ErrUnavailable は通信失敗、タイムアウト、5xx、応答の解析失敗などでバックエンドの判定が得られなかったことを示す。
	ErrUnavailable = errors.New("identity: backend unavailable")
)

// BackendError はバックエンドが4xxで返した業務エラー。
// Messageはバックエンドが返したメッセージで、クライアントに返してよい。
type BackendError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *BackendError) Error() string {
	return fmt.Sprintf("identity backend returned %d: %s", e.StatusCode, e.Message)
}

// Config はIDバックエンドクライアントの設定。
type Config struct {
	BaseURL        string // 例: https://project.supabase.co
	AnonKey        string
	ServiceRoleKey string // 管理者APIのBearer。空の場合はJWTSecretから生成する
	JWTSecret      string
	Timeout        time.Duration
}

// Client はIDバックエンドのHTTPクライアント。
// 状態を持たないため、全リクエストで共有して並行に使用できる。
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	admin      *AdminKey
	timeout    time.Duration
	metrics    metrics.MetricsCollector
}

// NewClient はClientを生成する。
// httpClientがnilの場合はTimeoutを設定したクライアントを生成する。
func NewClient(cfg Config, httpClient *http.Client, m metrics.MetricsCollector) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + authPathPrefix,
		anonKey:    cfg.AnonKey,
		admin:      NewAdminKey(cfg.ServiceRoleKey, cfg.JWTSecret),
		timeout:    timeout,
		metrics:    m,
	}
}

// userPayload はGoTrueのユーザーオブジェクト。
type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u *userPayload) toIdentity() *model.Identity {
	identity := &model.Identity{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		identity.FullName = name
	}
	return identity
}

// sessionPayload はGoTrueのトークンレスポンス。
type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

func (s *sessionPayload) toSession() *model.Session {
	expiresAt := s.ExpiresAt
	if expiresAt == 0 && s.ExpiresIn > 0 {
		expiresAt = time.Now().Unix() + s.ExpiresIn
	}
	return &model.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

// errorPayload はGoTrueのエラーレスポンス。エンドポイントによってキーが異なる。
type errorPayload struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
}

func (p *errorPayload) message() string {
	for _, m := range []string{p.Msg, p.Message, p.ErrorDescription, p.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// ResolveIdentity はアクセストークンからIdentityを解決する。
// バックエンドがトークンを拒否した場合はErrInvalidToken、
// 判定が得られなかった場合はErrUnavailableをラップしたエラーを返す。
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error) {
	var user userPayload
	err := c.do(ctx, "resolve_identity", http.MethodGet, "/user", nil, accessToken, nil, &user)
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, be.Message)
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: user not found for token", ErrInvalidToken)
	}
	return user.toIdentity(), nil
}

// SignUp はメールアドレスとパスワードでIdentityを作成する。
// metadataはuser_metadataとして保存される。
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*model.Identity, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	// メール確認が有効な場合はユーザーオブジェクト、無効な場合はセッションが返る
	var resp struct {
		userPayload
		User *userPayload `json:"user"`
	}
	if err := c.do(ctx, "sign_up", http.MethodPost, "/signup", nil, "", body, &resp); err != nil {
		return nil, err
	}

	if resp.User != nil {
		return resp.User.toIdentity(), nil
	}
	return resp.userPayload.toIdentity(), nil
}

// SignIn はメールアドレスとパスワードで認証し、Identityと新しいSessionを返す。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	query := url.Values{"grant_type": {"password"}}

	var resp sessionPayload
	if err := c.do(ctx, "sign_in", http.MethodPost, "/token", query, "", body, &resp); err != nil {
		return nil, nil, err
	}

	identity := &model.Identity{}
	if resp.User != nil {
		identity = resp.User.toIdentity()
	}
	return identity, resp.toSession(), nil
}

// SignOut はアクセストークンに紐づくセッションをバックエンドで無効化する。
// トークンが空の場合は無効化すべきセッションがないため、呼び出しを行わず成功とする。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return c.do(ctx, "sign_out", http.MethodPost, "/logout", nil, accessToken, nil, nil)
}

// RefreshSession はリフレッシュトークンを新しいSessionに交換する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	query := url.Values{"grant_type": {"refresh_token"}}

	var resp sessionPayload
	if err := c.do(ctx, "refresh_session", http.MethodPost, "/token", query, "", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// DeleteIdentity は管理者APIでIdentityを削除する。
func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	token, err := c.admin.Token(time.Now())
	if err != nil {
		return fmt.Errorf("failed to obtain admin token: %w", err)
	}
	return c.doWithAPIKey(ctx, "delete_identity", http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, token, token, nil, nil)
}

// do は匿名キーをapikeyヘッダーに設定してリクエストを実行する。
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, bearer string, in, out any) error {
	return c.doWithAPIKey(ctx, op, method, path, query, c.anonKey, bearer, in, out)
}

// doWithAPIKey はバックエンドへリクエストを送り、結果を分類する。
//   - 2xx: outにデコードする
//   - 4xx: *BackendError
//   - 5xx、通信失敗、タイムアウト、デコード失敗: ErrUnavailable
func (c *Client) doWithAPIKey(ctx context.Context, op, method, path string, query url.Values, apiKey, bearer string, in, out any) (err error) {
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		c.metrics.RecordBackendCall(metrics.BackendIdentity, op, outcome, time.Since(start))
		if err != nil {
			logger.FromContext(ctx).Debug("identity backend call failed",
				"operation", op,
				"outcome", outcome,
				"error", err.Error(),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, merr := json.Marshal(in)
		if merr != nil {
			outcome = metrics.OutcomeUnavailable
			return fmt.Errorf("failed to encode %s request: %w", op, merr)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		outcome = metrics.OutcomeUnavailable
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = metrics.OutcomeUnavailable
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		outcome = metrics.OutcomeUnavailable
		return fmt.Errorf("%w: %s: failed to read response: %v", ErrUnavailable, op, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		outcome = metrics.OutcomeUnavailable
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		outcome = metrics.OutcomeRejected
		return decodeBackendError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = metrics.OutcomeUnavailable
		return fmt.Errorf("%w: %s: failed to decode response: %v", ErrUnavailable, op, err)
	}
	return nil
}

// decodeBackendError は4xxレスポンスのボディからBackendErrorを組み立てる。
// メッセージが得られない場合はHTTPステータスのテキストを使う。
func decodeBackendError(status int, raw []byte) *BackendError {
	be := &BackendError{StatusCode: status}
	var p errorPayload
	if err := json.Unmarshal(raw, &p); err == nil {
		be.Code = p.ErrorCode
		be.Message = p.message()
	}
	if be.Message == "" {
		be.Message = http.StatusText(status)
	}
	return be
}
