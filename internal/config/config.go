// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database（プロフィールを保存するレコードバックエンド）
	DatabaseURL       string        `env:"DATABASE_URL,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	RecordTimeout     time.Duration `env:"RECORD_TIMEOUT" envDefault:"5s"`

	// Identity backend（GoTrue互換の認証API）
	SupabaseURL            string        `env:"SUPABASE_URL,notEmpty"`
	SupabaseAnonKey        string        `env:"SUPABASE_ANON_KEY,notEmpty"`
	SupabaseServiceRoleKey string        `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret      string        `env:"SUPABASE_JWT_SECRET"`
	IdentityTimeout        time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"5s"`

	// Server
	ServerPort      string        `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:8080"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定または空の場合はエラーを返す。
// 管理者API用の認証情報はSUPABASE_SERVICE_ROLE_KEYかSUPABASE_JWT_SECRETのどちらかが必要。
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("required environment variables are not set: %w", err)
	}

	if cfg.SupabaseServiceRoleKey == "" && cfg.SupabaseJWTSecret == "" {
		return nil, fmt.Errorf("required environment variables are not set: SUPABASE_SERVICE_ROLE_KEY or SUPABASE_JWT_SECRET")
	}

	return &cfg, nil
}

// LoadDotenv は指定された.envファイルを環境変数として読み込む。
// 既に設定されている環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
