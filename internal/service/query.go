package service

import (
	"context"
	"errors"
	"strings"

	"github.com/eventops/flow/internal/model"
)

const (
	DefaultAlertLimit = 100
	MaxAlertLimit     = 1000
)

var ErrTenantRequired = errors.New("tenant is required")

// MetricsRepository - 조회용 DB 인터페이스 (db.Postgres가 구현)
type MetricsRepository interface {
	GetCPUMetrics(ctx context.Context, tenant, host string) ([]model.CPUPoint, error)
	GetLatestMetrics(ctx context.Context, tenant, metric string) ([]model.MetricRow, error)
	ListAlerts(ctx context.Context, tenant, metric string, limit int) ([]model.AlertRow, error)
}

// QueryService - 과거 metric/alert 조회
type QueryService struct {
	repo MetricsRepository
}

func NewQueryService(repo MetricsRepository) *QueryService {
	return &QueryService{repo: repo}
}

func (s *QueryService) GetCPUMetrics(ctx context.Context, tenant, host string) ([]model.CPUPoint, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, ErrTenantRequired
	}
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("host is required")
	}
	return s.repo.GetCPUMetrics(ctx, tenant, host)
}

func (s *QueryService) GetLatestMetrics(ctx context.Context, tenant, metric string) ([]model.MetricRow, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, ErrTenantRequired
	}
	if strings.TrimSpace(metric) == "" {
		return nil, errors.New("metric is required")
	}
	return s.repo.GetLatestMetrics(ctx, tenant, metric)
}

// ListAlerts - limit <= 0이면 기본값, 상한은 MaxAlertLimit
func (s *QueryService) ListAlerts(ctx context.Context, tenant, metric string, limit int) ([]model.AlertRow, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, ErrTenantRequired
	}
	return s.repo.ListAlerts(ctx, tenant, metric, ClampLimit(limit))
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAlertLimit
	case limit > MaxAlertLimit:
		return MaxAlertLimit
	default:
		return limit
	}
}
