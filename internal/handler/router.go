package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eventops/flow/internal/stream"
)

type querier interface {
	metricsQuerier
	alertQuerier
}

// RouterConfig - API 서버 구성 요소
// Tokens가 nil이면 인증 없이 동작한다.
type RouterConfig struct {
	Query       querier
	Hub         *stream.Hub
	Tokens      tokenParser
	CORSOrigins []string
	Health      []HealthCheck
}

// NewRouter - 조회/스트리밍 API 라우터
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(CORSMiddleware(cfg.CORSOrigins, false))

	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/healthz", Health(cfg.Health...))

	api := router.Group("/api/v1")
	if cfg.Tokens != nil {
		api.Use(AuthMiddleware(cfg.Tokens))
	}

	metrics := NewMetricsHandler(cfg.Query)
	api.GET("/metrics/cpu", metrics.CPU)
	api.GET("/metrics/latest", metrics.Latest)

	alerts := NewAlertHandler(cfg.Query, cfg.Hub, cfg.CORSOrigins)
	api.GET("/alerts", alerts.List)
	api.GET("/alerts/stream", alerts.Stream)
	api.GET("/alerts/ws", alerts.WebSocket)

	return router
}

// NewHealthRouter - engine 프로세스의 health 전용 라우터
func NewHealthRouter(checks ...HealthCheck) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/ping", Ping)
	router.GET("/healthz", Health(checks...))
	return router
}
