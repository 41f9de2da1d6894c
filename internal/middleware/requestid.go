package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/leanbff/internal/logger"
)

// RequestIDHeader はリクエスト相関IDのヘッダー名。
const RequestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware はリクエストごとに相関IDを割り当てるミドルウェアを返す。
// クライアントが有効なUUIDを送ってきた場合はそれを引き継ぎ、それ以外は新しく生成する。
// 相関IDはレスポンスヘッダーとリクエストコンテキストに設定する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, id)
			ctx := logger.WithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
