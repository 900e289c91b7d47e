package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventops/flow/internal/model"
)

// HealthCheck - nil이면 healthy
type HealthCheck func(ctx context.Context) error

// 헬스체크 엔드포인트
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "eventops API server is running",
	})
}

// Health - 등록된 check를 순서대로 실행하여 하나라도 실패하면 503
func Health(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, model.HealthResponse{Status: "unhealthy", Detail: err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, model.HealthResponse{Status: "ok"})
	}
}
