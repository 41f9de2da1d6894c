// Package besteffort は失敗しても呼び出し元の処理を中断しない副次的なバックエンド操作を扱う。
//
// ここを通る失敗は意図的に握りつぶされる。その結果として生じる不整合
// （プロフィールのないIdentity、削除に失敗したIdentityだけが残る状態など）は
// 運用上のリスクとして受け入れている。握りつぶした失敗は必ずWARNログとメトリクスに残す。
package besteffort

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/leanbff/internal/logger"
	"github.com/hitoshi/leanbff/internal/metrics"
	"github.com/hitoshi/leanbff/internal/model"
)

// ステップ名。メトリクスのstepラベルとログのstep属性に使う。
const (
	StepSignupCreateProfile  = "signup.create_profile"
	StepAccountDeleteProfile = "account_delete.delete_profile"
)

// Policy はベストエフォート操作の実行ポリシー。
type Policy struct {
	metrics metrics.MetricsCollector
}

// New はPolicyを生成する。mがnilの場合はメトリクスを記録しない。
func New(m metrics.MetricsCollector) *Policy {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Policy{metrics: m}
}

// Run はfnを実行し、失敗した場合はログとメトリクスに記録したうえでfalseを返す。
// エラーは呼び出し元に返さない。
func (p *Policy) Run(ctx context.Context, step, userID string, fn func(context.Context) error) bool {
	err := fn(ctx)
	if err == nil {
		return true
	}

	p.metrics.RecordBestEffortFailure(step)
	logger.FromContext(ctx).Warn("best-effort step failed",
		slog.String("step", step),
		slog.String("error_kind", ErrorKind(err)),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	return false
}

// ErrorKind はログ出力用にエラーを分類する。
func ErrorKind(err error) string {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return string(apiErr.Kind)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "backend_failure"
	}
}
