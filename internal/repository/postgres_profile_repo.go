package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/leanbff/internal/metrics"
	"github.com/hitoshi/leanbff/internal/model"
)

// defaultQueryTimeout はクエリ1回あたりの既定タイムアウト。
const defaultQueryTimeout = 5 * time.Second

const profileColumns = `id, email, full_name, avatar_url, created_at, updated_at`

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db      *sql.DB
	timeout time.Duration
	metrics metrics.MetricsCollector
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
// timeoutが0以下の場合は既定値を使う。mがnilの場合はメトリクスを記録しない。
func NewPostgresProfileRepo(db *sql.DB, timeout time.Duration, m metrics.MetricsCollector) *PostgresProfileRepo {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &PostgresProfileRepo{db: db, timeout: timeout, metrics: m}
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) (err error) {
	ctx, done := r.begin(ctx, "create")
	defer func() { done(err) }()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.Email, profile.FullName, profile.AvatarURL, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (_ *model.Profile, err error) {
	ctx, done := r.begin(ctx, "find")
	defer func() { done(err) }()

	profile, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}
	return profile, nil
}

// Update はfull_nameとavatar_urlを置き換え、更新後のレコードを返す。
// 対象が存在しない場合はnilを返す。
func (r *PostgresProfileRepo) Update(ctx context.Context, id string, fullName, avatarURL *string, updatedAt time.Time) (_ *model.Profile, err error) {
	ctx, done := r.begin(ctx, "update")
	defer func() { done(err) }()

	profile, err := scanProfile(r.db.QueryRowContext(ctx,
		`UPDATE profiles
		 SET full_name = $2, avatar_url = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+profileColumns,
		id, fullName, avatarURL, updatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

// DeleteByID は指定IDのプロフィールを削除する。
func (r *PostgresProfileRepo) DeleteByID(ctx context.Context, id string) (err error) {
	ctx, done := r.begin(ctx, "delete")
	defer func() { done(err) }()

	if _, err = r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// begin はタイムアウト付きのコンテキストと、終了時にメトリクスを記録する関数を返す。
func (r *PostgresProfileRepo) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	start := time.Now()
	return ctx, func(err error) {
		cancel()
		outcome := metrics.OutcomeOK
		if err != nil {
			if _, ok := IsConstraintViolation(err); ok {
				outcome = metrics.OutcomeRejected
			} else {
				outcome = metrics.OutcomeUnavailable
			}
		}
		r.metrics.RecordBackendCall(metrics.BackendRecord, operation, outcome, time.Since(start))
	}
}

func scanProfile(row *sql.Row) (*model.Profile, error) {
	p := &model.Profile{}
	var fullName, avatarURL sql.NullString
	if err := row.Scan(&p.ID, &p.Email, &fullName, &avatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if fullName.Valid {
		p.FullName = &fullName.String
	}
	if avatarURL.Valid {
		p.AvatarURL = &avatarURL.String
	}
	return p, nil
}

// IsConstraintViolation はerrがPostgreSQLの整合性制約違反（SQLSTATE クラス23）かを判定する。
// 違反の場合はPostgreSQLが返したメッセージを返す。
func IsConstraintViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", false
	}
	if pqErr.Code.Class() != "23" {
		return "", false
	}
	return pqErr.Message, true
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
