package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminTokenTTL = 5 * time.Minute

// AdminKey は管理者API（ユーザー削除）に使うservice_roleのBearerを提供する。
// 固定のservice_roleキーが設定されていればそれを使い、
// なければプロジェクトのJWTシークレットで短命のトークンを都度署名する。
type AdminKey struct {
	serviceRoleKey string
	jwtSecret      []byte
}

// NewAdminKey はAdminKeyを生成する。
func NewAdminKey(serviceRoleKey, jwtSecret string) *AdminKey {
	return &AdminKey{
		serviceRoleKey: serviceRoleKey,
		jwtSecret:      []byte(jwtSecret),
	}
}

// Token はnow時点で有効なservice_roleトークンを返す。
func (k *AdminKey) Token(now time.Time) (string, error) {
	if k.serviceRoleKey != "" {
		return k.serviceRoleKey, nil
	}
	if len(k.jwtSecret) == 0 {
		return "", errors.New("neither service role key nor JWT secret is configured")
	}

	claims := jwt.MapClaims{
		"role": "service_role",
		"iss":  "supabase",
		"iat":  now.Unix(),
		"exp":  now.Add(adminTokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service role token: %w", err)
	}
	return signed, nil
}
