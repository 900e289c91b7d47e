package db

import (
	"context"
	"time"

	"github.com/eventops/flow/internal/model"
)

// InsertMetric - metric row 저장. 같은 event_id가 이미 있으면 무시한다.
func (db *Postgres) InsertMetric(ctx context.Context, row model.MetricRow) error {
	query := `
		INSERT INTO metrics (event_id, ts, tenant, source_id, metric, value, unit, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) WHERE event_id <> '' DO NOTHING
	`
	_, err := db.Pool.Exec(ctx, query,
		row.EventID,
		row.Ts,
		row.Tenant,
		row.SourceID,
		row.Metric,
		row.Value,
		row.Unit,
		nonNilTags(row.Tags),
	)
	return err
}

// GetCPUMetrics - tenant/host의 최근 cpu_load 1000개 (최신순)
func (db *Postgres) GetCPUMetrics(ctx context.Context, tenant, host string) ([]model.CPUPoint, error) {
	query := `
		SELECT ts, value, unit, tags
		FROM metrics
		WHERE tenant = $1 AND source_id = $2 AND metric = 'cpu_load'
		ORDER BY ts DESC
		LIMIT 1000`

	rows, err := db.Pool.Query(ctx, query, tenant, host)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.CPUPoint{}
	for rows.Next() {
		var p model.CPUPoint
		if err := rows.Scan(&p.Ts, &p.Value, &p.Unit, &p.Tags); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// GetLatestMetrics - tenant/metric의 최근 50개 row
func (db *Postgres) GetLatestMetrics(ctx context.Context, tenant, metric string) ([]model.MetricRow, error) {
	query := `
		SELECT id, event_id, ts, tenant, source_id, metric, value, unit, tags
		FROM metrics
		WHERE tenant = $1 AND metric = $2
		ORDER BY ts DESC
		LIMIT 50`

	return db.queryMetrics(ctx, query, tenant, metric)
}

// ListMetricsAfterID - export용. id 오름차순으로 afterID 이후 limit개
// insert된 지 settle이 지나지 않은 row는 제외한다 (id는 commit 순서가 아니다).
func (db *Postgres) ListMetricsAfterID(ctx context.Context, afterID int64, settle time.Duration, limit int) ([]model.MetricRow, error) {
	query := `
		SELECT id, event_id, ts, tenant, source_id, metric, value, unit, tags
		FROM metrics
		WHERE id > $1 AND inserted_at < now() - make_interval(secs => $2)
		ORDER BY id ASC
		LIMIT $3`

	return db.queryMetrics(ctx, query, afterID, settle.Seconds(), limit)
}

func (db *Postgres) queryMetrics(ctx context.Context, query string, args ...any) ([]model.MetricRow, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.MetricRow{}
	for rows.Next() {
		var m model.MetricRow
		if err := rows.Scan(&m.ID, &m.EventID, &m.Ts, &m.Tenant, &m.SourceID, &m.Metric, &m.Value, &m.Unit, &m.Tags); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func nonNilTags(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return tags
}
