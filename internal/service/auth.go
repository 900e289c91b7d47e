package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eventops/flow/internal/model"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMisconfigured = errors.New("auth config invalid")
)

// TokenService - tenant 범위 API 토큰 (HS256) 발급/검증
type TokenService struct {
	jwtSecret []byte
}

type tenantClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

func NewTokenService(secret string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: API_JWT_SECRET is required", ErrMisconfigured)
	}
	return &TokenService{jwtSecret: []byte(secret)}, nil
}

// ParseToken - 서명/만료 검증 후 tenant claim 반환
func (s *TokenService) ParseToken(tokenStr string) (*model.AuthTenant, error) {
	claims := &tenantClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(claims.Tenant) == "" {
		return nil, ErrUnauthorized
	}

	return &model.AuthTenant{
		Tenant:  claims.Tenant,
		Subject: claims.Subject,
	}, nil
}

// IssueToken - ttl이 0이면 만료 없는 토큰
func (s *TokenService) IssueToken(tenant, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(tenant) == "" {
		return "", ErrTenantRequired
	}
	now := time.Now()
	claims := tenantClaims{
		Tenant: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
