package db

import (
	"context"
	"time"

	"github.com/eventops/flow/internal/model"
)

// InsertAlert - alert row 저장 (append-only)
func (db *Postgres) InsertAlert(ctx context.Context, row model.AlertRow) error {
	query := `
		INSERT INTO alerts (ts, tenant, source_id, metric, severity, rule, value, message, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.Pool.Exec(ctx, query,
		row.Ts,
		row.Tenant,
		row.SourceID,
		row.Metric,
		string(row.Severity),
		row.Rule,
		row.Value,
		row.Message,
		nonNilTags(row.Tags),
	)
	return err
}

// ListAlerts - tenant의 alert 목록 (최신순). metric이 비어 있으면 전체 metric
func (db *Postgres) ListAlerts(ctx context.Context, tenant, metric string, limit int) ([]model.AlertRow, error) {
	query := `
		SELECT id, ts, tenant, source_id, metric, severity, rule, value, message, tags
		FROM alerts
		WHERE tenant = $1 AND ($2 = '' OR metric = $2)
		ORDER BY ts DESC
		LIMIT $3`

	return db.queryAlerts(ctx, query, tenant, metric, limit)
}

// ListAlertsAfterID - export용. id 오름차순으로 afterID 이후 limit개
// insert된 지 settle이 지나지 않은 row는 제외한다 (id는 commit 순서가 아니다).
func (db *Postgres) ListAlertsAfterID(ctx context.Context, afterID int64, settle time.Duration, limit int) ([]model.AlertRow, error) {
	query := `
		SELECT id, ts, tenant, source_id, metric, severity, rule, value, message, tags
		FROM alerts
		WHERE id > $1 AND inserted_at < now() - make_interval(secs => $2)
		ORDER BY id ASC
		LIMIT $3`

	return db.queryAlerts(ctx, query, afterID, settle.Seconds(), limit)
}

func (db *Postgres) queryAlerts(ctx context.Context, query string, args ...any) ([]model.AlertRow, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.AlertRow{}
	for rows.Next() {
		var a model.AlertRow
		var severity string
		if err := rows.Scan(&a.ID, &a.Ts, &a.Tenant, &a.SourceID, &a.Metric, &severity, &a.Rule, &a.Value, &a.Message, &a.Tags); err != nil {
			return nil, err
		}
		a.Severity = model.Severity(severity)
		list = append(list, a)
	}
	return list, rows.Err()
}
