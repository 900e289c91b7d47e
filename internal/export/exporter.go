// Package export copies stored metric and alert rows into partitioned
// Parquet files for offline analysis.
//
// 파일 경로: <DATA_DIR>/parquet/<table>/tenant=<t>/date=<YYYY-MM-DD>/part-<unixnano>.parquet
// 마지막으로 내보낸 id는 <DATA_DIR>/parquet/_watermarks.json에 저장되어 재시작 후에도 중복 export하지 않는다.
//
// BIGSERIAL id는 insert 시점에 할당되고 commit 순서와 다를 수 있다. 여러 engine이 동시에 쓰면
// 작은 id가 나중에 보일 수 있으므로, insert된 지 settle 이상 지난 row만 읽고 watermark를 올린다.
// settle은 insert 한 건의 최대 시간(SINK_WRITE_TIMEOUT)보다 길어야 한다.
package export

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

const (
	metricsTable = "metrics"
	alertsTable  = "alerts"
)

// DefaultSettle - EXPORT_SETTLE_LAG 기본값
const DefaultSettle = time.Minute

// Source - id 오름차순 조회 (db.Postgres가 구현)
// insert된 지 settle이 지나지 않은 row는 반환하지 않아야 한다.
type Source interface {
	ListMetricsAfterID(ctx context.Context, afterID int64, settle time.Duration, limit int) ([]model.MetricRow, error)
	ListAlertsAfterID(ctx context.Context, afterID int64, settle time.Duration, limit int) ([]model.AlertRow, error)
}

type Result struct {
	Metrics int
	Alerts  int
	Files   int
}

type Exporter struct {
	src       Source
	root      string
	batchSize int
	settle    time.Duration
	now       func() time.Time
}

func New(src Source, dataDir string, batchSize int, settle time.Duration) *Exporter {
	if batchSize <= 0 {
		batchSize = 10000
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Exporter{
		src:       src,
		root:      filepath.Join(dataDir, "parquet"),
		batchSize: batchSize,
		settle:    settle,
		now:       time.Now,
	}
}

// Run - 즉시 한 번 실행하고 interval마다 반복. ctx가 끝나면 nil 반환
func (e *Exporter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := e.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("[Export] run failed: %v", err)
		} else if res.Files > 0 {
			logger.Info("[Export] exported metrics=%d alerts=%d files=%d", res.Metrics, res.Alerts, res.Files)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce - watermark 이후 settle이 지난 row를 모두 내보낸다
func (e *Exporter) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	if err := os.MkdirAll(e.root, 0o755); err != nil {
		return res, fmt.Errorf("create export dir: %w", err)
	}
	wm, err := loadWatermarks(e.root)
	if err != nil {
		return res, err
	}

	for {
		rows, err := e.src.ListMetricsAfterID(ctx, wm.Metrics, e.settle, e.batchSize)
		if err != nil {
			return res, fmt.Errorf("list metrics: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		files, err := writePartitioned(e, metricsTable, rows,
			func(m model.MetricRow) (string, time.Time) { return m.Tenant, m.Ts },
			toMetricRecord)
		if err != nil {
			return res, err
		}
		res.Metrics += len(rows)
		res.Files += files
		wm.Metrics = rows[len(rows)-1].ID
		if err := wm.save(e.root); err != nil {
			return res, err
		}
		if len(rows) < e.batchSize {
			break
		}
	}

	for {
		rows, err := e.src.ListAlertsAfterID(ctx, wm.Alerts, e.settle, e.batchSize)
		if err != nil {
			return res, fmt.Errorf("list alerts: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		files, err := writePartitioned(e, alertsTable, rows,
			func(a model.AlertRow) (string, time.Time) { return a.Tenant, a.Ts },
			toAlertRecord)
		if err != nil {
			return res, err
		}
		res.Alerts += len(rows)
		res.Files += files
		wm.Alerts = rows[len(rows)-1].ID
		if err := wm.save(e.root); err != nil {
			return res, err
		}
		if len(rows) < e.batchSize {
			break
		}
	}

	return res, nil
}

type partition struct {
	tenant string
	date   string
}

// writePartitioned - (tenant, date)별로 묶어 파일 하나씩 기록
func writePartitioned[T any, R any](e *Exporter, table string, rows []T, key func(T) (string, time.Time), conv func(T) R) (int, error) {
	groups := make(map[partition][]R)
	for _, row := range rows {
		tenant, ts := key(row)
		p := partition{tenant: tenant, date: ts.UTC().Format("2006-01-02")}
		groups[p] = append(groups[p], conv(row))
	}

	parts := make([]partition, 0, len(groups))
	for p := range groups {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].tenant != parts[j].tenant {
			return parts[i].tenant < parts[j].tenant
		}
		return parts[i].date < parts[j].date
	})

	for _, p := range parts {
		dir := filepath.Join(e.root, table, "tenant="+url.PathEscape(p.tenant), "date="+p.date)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create partition dir: %w", err)
		}
		path := e.partPath(dir)
		if err := writeParquet(path, groups[p]); err != nil {
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
		logger.Debug("[Export] wrote %d %s rows to %s", len(groups[p]), table, path)
	}
	return len(parts), nil
}

// partPath - 같은 나노초에 이미 파일이 있으면 값을 올려 충돌을 피한다
func (e *Exporter) partPath(dir string) string {
	n := e.now().UnixNano()
	for {
		path := filepath.Join(dir, fmt.Sprintf("part-%d.parquet", n))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		n++
	}
}

// writeParquet - 임시 파일에 쓴 뒤 rename
func writeParquet[R any](path string, records []R) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := parquet.NewGenericWriter[R](f)
	if _, err := w.Write(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
