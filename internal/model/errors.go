// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はクライアントに返すエラーの分類。
// HTTPステータスへの対応はhandlerパッケージが行う。
type ErrorKind string

const (
	// KindInvalidInput は必須フィールドの欠落や型不一致（400）。
	KindInvalidInput ErrorKind = "invalid_input"
	// KindUnauthenticated は認証情報の欠落・無効・検証不能（401）。
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindNotFound は対象レコードが存在しない（404）。
	KindNotFound ErrorKind = "not_found"
	// KindBackendRejected はバックエンドが業務ルール違反として拒否した（400）。
	KindBackendRejected ErrorKind = "backend_rejected"
	// KindInternal は分類できない障害（500）。メッセージはクライアントに返さない。
	KindInternal ErrorKind = "internal"
)

// APIError はクライアントへ返すエラーを表す。
// Messageはそのままレスポンスの error フィールドになる。
// Errは原因エラーでログにのみ出力する。
type APIError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 固定のエラーメッセージ。
const (
	MsgCredentialsRequired   = "Email and password are required"
	MsgRefreshTokenRequired  = "Refresh token is required"
	MsgInvalidRequestBody    = "Invalid request body"
	MsgNoTokenProvided       = "No token provided"
	MsgInvalidToken          = "Invalid token"
	MsgProfileNotFound       = "Profile not found"
	MsgInternalServerError   = "Internal server error"
	MsgGateNoTokenProvided   = "Unauthorized - No token provided"
	MsgGateInvalidToken      = "Unauthorized - Invalid token"
	MsgGateVerificationError = "Unauthorized - Token verification failed"
)

// NewInvalidInputError は入力検証エラーを生成する。
func NewInvalidInputError(message string) *APIError {
	return &APIError{Kind: KindInvalidInput, Message: message}
}

// NewUnauthenticatedError は認証エラーを生成する。
func NewUnauthenticatedError(message string, cause error) *APIError {
	return &APIError{Kind: KindUnauthenticated, Message: message, Err: cause}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Message: MsgProfileNotFound}
}

// NewBackendRejectedError はバックエンドが返した拒否理由をそのまま伝えるエラーを生成する。
func NewBackendRejectedError(message string, cause error) *APIError {
	return &APIError{Kind: KindBackendRejected, Message: message, Err: cause}
}

// NewInternalError は内部エラーを生成する。causeはログ用で、クライアントには返さない。
func NewInternalError(cause error) *APIError {
	return &APIError{Kind: KindInternal, Message: MsgInternalServerError, Err: cause}
}
