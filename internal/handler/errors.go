package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/middleware"
	"github.com/hitoshi/leanbff/internal/model"
)

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 内部エラーの詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	l := logger.FromContext(r.Context())

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status := mapErrorKindToHTTPStatus(apiErr.Kind)
		if status >= http.StatusInternalServerError {
			l.Error("internal server error", slog.String("error", err.Error()))
			middleware.WriteError(w, status, model.MsgInternalServerError)
			return
		}
		middleware.WriteError(w, status, apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	l.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteError(w, http.StatusInternalServerError, model.MsgInternalServerError)
}

// mapErrorKindToHTTPStatus はエラー分類からHTTPステータスコードにマッピングする。
func mapErrorKindToHTTPStatus(kind model.ErrorKind) int {
	switch kind {
	case model.KindInvalidInput, model.KindBackendRejected:
		return http.StatusBadRequest
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
