package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventops/flow/internal/model"
	"github.com/eventops/flow/internal/service"
)

const authTenantKey = "auth_tenant"

type tokenParser interface {
	ParseToken(tokenStr string) (*model.AuthTenant, error)
}

// AuthMiddleware - Bearer 토큰 검증
// EventSource/WebSocket은 헤더를 붙일 수 없으므로 access_token 쿼리도 허용한다.
func AuthMiddleware(tokens tokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		} else {
			token = strings.TrimSpace(c.Query("access_token"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
			return
		}

		auth, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
			return
		}

		c.Set(authTenantKey, auth)
		c.Next()
	}
}

func GetAuthTenant(c *gin.Context) *model.AuthTenant {
	if value, ok := c.Get(authTenantKey); ok {
		if auth, ok := value.(*model.AuthTenant); ok {
			return auth
		}
	}
	return nil
}

// resolveTenant - 쿼리의 tenant와 토큰의 tenant를 맞춘다
// 토큰이 있으면 tenant 생략 시 토큰 값을 쓰고, 다르면 ErrForbidden.
func resolveTenant(c *gin.Context) (string, error) {
	requested := strings.TrimSpace(c.Query("tenant"))
	auth := GetAuthTenant(c)
	if auth == nil {
		return requested, nil
	}
	if requested == "" {
		return auth.Tenant, nil
	}
	if requested != auth.Tenant {
		return "", service.ErrForbidden
	}
	return requested, nil
}

// CORSMiddleware - "*"이면 모든 Origin 허용
func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	allowAll := false
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := originMap[origin]
			if ok || allowAll {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originAllowed - WebSocket upgrade용 Origin 검사
func originAllowed(allowedOrigins []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
