package service

import (
	"context"
	"errors"
	"testing"

	"github.com/eventops/flow/internal/model"
)

type fakeRepo struct {
	tenant, arg string
	limit       int
}

func (f *fakeRepo) GetCPUMetrics(_ context.Context, tenant, host string) ([]model.CPUPoint, error) {
	f.tenant, f.arg = tenant, host
	return []model.CPUPoint{{Value: 1}}, nil
}

func (f *fakeRepo) GetLatestMetrics(_ context.Context, tenant, metric string) ([]model.MetricRow, error) {
	f.tenant, f.arg = tenant, metric
	return []model.MetricRow{{Metric: metric}}, nil
}

func (f *fakeRepo) ListAlerts(_ context.Context, tenant, metric string, limit int) ([]model.AlertRow, error) {
	f.tenant, f.arg, f.limit = tenant, metric, limit
	return []model.AlertRow{}, nil
}

func TestQueryServiceValidation(t *testing.T) {
	svc := NewQueryService(&fakeRepo{})
	ctx := context.Background()

	if _, err := svc.GetCPUMetrics(ctx, "", "h1"); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
	if _, err := svc.GetCPUMetrics(ctx, "t1", " "); err == nil {
		t.Fatalf("expected host error")
	}
	if _, err := svc.GetLatestMetrics(ctx, "t1", ""); err == nil {
		t.Fatalf("expected metric error")
	}
	if _, err := svc.ListAlerts(ctx, "", "", 10); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestQueryServicePassesThrough(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewQueryService(repo)

	if _, err := svc.GetCPUMetrics(context.Background(), "t1", "h1"); err != nil || repo.tenant != "t1" || repo.arg != "h1" {
		t.Fatalf("GetCPUMetrics: err=%v repo=%+v", err, repo)
	}
	if _, err := svc.ListAlerts(context.Background(), "t1", "cpu_load", 5000); err != nil || repo.limit != MaxAlertLimit {
		t.Fatalf("ListAlerts: err=%v limit=%d", err, repo.limit)
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{-1: DefaultAlertLimit, 0: DefaultAlertLimit, 1: 1, 1000: 1000, 1001: MaxAlertLimit}
	for in, want := range tests {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
