package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
	"github.com/eventops/flow/internal/service"
)

type metricsQuerier interface {
	GetCPUMetrics(ctx context.Context, tenant, host string) ([]model.CPUPoint, error)
	GetLatestMetrics(ctx context.Context, tenant, metric string) ([]model.MetricRow, error)
}

// MetricsHandler - 과거 metric 조회
type MetricsHandler struct {
	svc metricsQuerier
}

func NewMetricsHandler(svc metricsQuerier) *MetricsHandler {
	return &MetricsHandler{svc: svc}
}

// CPU - GET /api/v1/metrics/cpu?tenant=&host=
func (h *MetricsHandler) CPU(c *gin.Context) {
	tenant, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	host := c.Query("host")
	if host == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "host is required"})
		return
	}

	points, err := h.svc.GetCPUMetrics(c.Request.Context(), tenant, host)
	if err != nil {
		respondQueryError(c, "cpu metrics", err)
		return
	}
	c.JSON(http.StatusOK, model.CPUMetricsResponse{Status: "success", Data: points})
}

// Latest - GET /api/v1/metrics/latest?tenant=&metric=
func (h *MetricsHandler) Latest(c *gin.Context) {
	tenant, ok := tenantOrAbort(c)
	if !ok {
		return
	}
	metric := c.Query("metric")
	if metric == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "metric is required"})
		return
	}

	rows, err := h.svc.GetLatestMetrics(c.Request.Context(), tenant, metric)
	if err != nil {
		respondQueryError(c, "latest metrics", err)
		return
	}
	c.JSON(http.StatusOK, model.MetricListResponse{Status: "success", Data: rows})
}

// tenantOrAbort - 조회 API는 tenant가 필수
func tenantOrAbort(c *gin.Context) (string, bool) {
	tenant, err := resolveTenant(c)
	if err != nil {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "forbidden"})
		return "", false
	}
	if tenant == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "tenant is required"})
		return "", false
	}
	return tenant, true
}

func respondQueryError(c *gin.Context, what string, err error) {
	if errors.Is(err, service.ErrTenantRequired) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	logger.Error("[API] failed to query %s: %v", what, err)
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal error"})
}
