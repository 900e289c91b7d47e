package db

import "context"

// EnsureSchema - metrics, alerts 테이블과 인덱스 생성
// event_id가 있는 metric은 한 번만 저장된다 (broker 재전달 대비).
// inserted_at은 DB 시계 기준 insert 시각으로, exporter가 아직 commit되지 않았을 수 있는 row를 건너뛰는 데 쓴다.
func (db *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS metrics (
			id BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL DEFAULT '',
			ts TIMESTAMPTZ NOT NULL,
			tenant TEXT NOT NULL,
			source_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '{}',
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
		`,
		`ALTER TABLE metrics ADD COLUMN IF NOT EXISTS inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_tmts ON metrics(tenant, metric, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_src_ts ON metrics(source_id, ts DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_metrics_event_id ON metrics(event_id) WHERE event_id <> ''`,
		`
		CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			tenant TEXT NOT NULL,
			source_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			severity TEXT NOT NULL,
			rule TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '{}',
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
		`,
		`ALTER TABLE alerts ADD COLUMN IF NOT EXISTS inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_tmts ON alerts(tenant, metric, ts DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
