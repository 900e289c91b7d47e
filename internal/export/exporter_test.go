package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eventops/flow/internal/model"
)

// fakeSource - DB 흉내. insertedAt에 없는 row는 충분히 오래전에 insert된 것으로 본다.
type fakeSource struct {
	mu         sync.Mutex
	metrics    []model.MetricRow
	alerts     []model.AlertRow
	insertedAt map[int64]time.Time
	clock      time.Time
	calls      int
	err        error
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// settled - DB의 inserted_at < now() - settle 조건
func (f *fakeSource) settled(id int64, settle time.Duration) bool {
	at, ok := f.insertedAt[id]
	return !ok || at.Before(f.clock.Add(-settle))
}

func (f *fakeSource) ListMetricsAfterID(_ context.Context, afterID int64, settle time.Duration, limit int) ([]model.MetricRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sorted := append([]model.MetricRow(nil), f.metrics...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out []model.MetricRow
	for _, m := range sorted {
		if m.ID > afterID && f.settled(m.ID, settle) && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) ListAlertsAfterID(_ context.Context, afterID int64, settle time.Duration, limit int) ([]model.AlertRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AlertRow
	for _, a := range f.alerts {
		if a.ID > afterID && f.settled(a.ID, settle) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

var (
	day1 = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
)

func newTestExporter(src Source, dir string, batch int) *Exporter {
	e := New(src, dir, batch, time.Minute)
	e.now = func() time.Time { return time.Unix(0, 1000) }
	return e
}

func partitionFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "part-*.parquet"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return files
}

func TestRunOncePartitionsByTenantAndDate(t *testing.T) {
	src := &fakeSource{
		metrics: []model.MetricRow{
			{ID: 1, EventID: "e1", Ts: day1, Tenant: "t1", SourceID: "h1", Metric: "cpu_load", Value: 70, Unit: "%", Tags: map[string]string{"host": "h1"}},
			{ID: 2, EventID: "e2", Ts: day1, Tenant: "t1", SourceID: "h1", Metric: "cpu_load", Value: 85, Unit: "%"},
			{ID: 3, EventID: "e3", Ts: day2, Tenant: "t1", SourceID: "h1", Metric: "cpu_load", Value: 95, Unit: "%"},
			{ID: 4, EventID: "e4", Ts: day1, Tenant: "acme/eu", SourceID: "h9", Metric: "mem", Value: 1},
		},
		alerts: []model.AlertRow{
			{ID: 7, Ts: day2, Tenant: "t1", SourceID: "h1", Metric: "cpu_load", Severity: model.SeverityWarning, Rule: "cpu_load_threshold", Value: 83.3, Message: "m"},
		},
	}
	dir := t.TempDir()
	e := newTestExporter(src, dir, 2)

	res, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Metrics != 4 || res.Alerts != 1 {
		t.Fatalf("result = %+v", res)
	}

	root := filepath.Join(dir, "parquet")
	t1day1 := filepath.Join(root, "metrics", "tenant=t1", "date=2026-02-01")
	files := partitionFiles(t, t1day1)
	if len(files) != 1 {
		t.Fatalf("files in %s = %v", t1day1, files)
	}
	rows, err := parquet.ReadFile[metricRecord](files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 2 || rows[0].EventID != "e1" || rows[1].Value != 85 {
		t.Fatalf("rows = %+v", rows)
	}
	if !rows[0].Ts.Equal(day1) || rows[0].Tags["host"] != "h1" {
		t.Fatalf("row 0 = %+v", rows[0])
	}

	if got := partitionFiles(t, filepath.Join(root, "metrics", "tenant=t1", "date=2026-02-02")); len(got) != 1 {
		t.Fatalf("day2 files = %v", got)
	}
	if got := partitionFiles(t, filepath.Join(root, "metrics", "tenant=acme%2Feu", "date=2026-02-01")); len(got) != 1 {
		t.Fatalf("escaped tenant files = %v", got)
	}

	alertFiles := partitionFiles(t, filepath.Join(root, "alerts", "tenant=t1", "date=2026-02-02"))
	if len(alertFiles) != 1 {
		t.Fatalf("alert files = %v", alertFiles)
	}
	alerts, err := parquet.ReadFile[alertRecord](alertFiles[0])
	if err != nil {
		t.Fatalf("ReadFile alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Severity != "warning" || alerts[0].Rule != "cpu_load_threshold" {
		t.Fatalf("alerts = %+v", alerts)
	}

	data, err := os.ReadFile(filepath.Join(root, watermarkFile))
	if err != nil {
		t.Fatalf("read watermarks: %v", err)
	}
	var wm watermarks
	_ = json.Unmarshal(data, &wm)
	if wm.Metrics != 4 || wm.Alerts != 7 {
		t.Fatalf("watermarks = %+v", wm)
	}
}

func TestRunOnceResumesFromWatermark(t *testing.T) {
	src := &fakeSource{metrics: []model.MetricRow{
		{ID: 1, Ts: day1, Tenant: "t1", Metric: "m"},
		{ID: 2, Ts: day1, Tenant: "t1", Metric: "m"},
	}}
	dir := t.TempDir()

	if _, err := newTestExporter(src, dir, 100).RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// 새 프로세스에서도 watermark를 이어받는다
	res, err := newTestExporter(src, dir, 100).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Metrics != 0 || res.Files != 0 {
		t.Fatalf("re-exported rows: %+v", res)
	}

	src.metrics = append(src.metrics, model.MetricRow{ID: 3, Ts: day1, Tenant: "t1", Metric: "m"})
	res, err = newTestExporter(src, dir, 100).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if res.Metrics != 1 {
		t.Fatalf("expected only the new row, got %+v", res)
	}
	files := partitionFiles(t, filepath.Join(dir, "parquet", "metrics", "tenant=t1", "date=2026-02-01"))
	if len(files) != 2 {
		t.Fatalf("expected 2 distinct part files, got %v", files)
	}
}

func TestRunOnceSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	if _, err := newTestExporter(src, t.TempDir(), 10).RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	e := newTestExporter(src, t.TempDir(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, time.Hour) }()

	deadline := time.Now().Add(2 * time.Second)
	for src.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestRunOnceWaitsForLateCommittedLowerID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		clock: now,
		metrics: []model.MetricRow{
			{ID: 1, Ts: day1, Tenant: "t1", Metric: "m"},
			{ID: 3, Ts: day1, Tenant: "t1", Metric: "m"},
		},
		// id 3은 방금 insert되었고, id 2는 아직 commit 전이라 보이지 않는다
		insertedAt: map[int64]time.Time{
			1: now.Add(-10 * time.Minute),
			2: now.Add(-10 * time.Second),
			3: now.Add(-5 * time.Second),
		},
	}
	dir := t.TempDir()

	res, err := newTestExporter(src, dir, 100).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Metrics != 1 {
		t.Fatalf("first run should export only the settled row, got %+v", res)
	}

	// id 2가 id 3보다 늦게 commit된다
	src.mu.Lock()
	src.metrics = append(src.metrics, model.MetricRow{ID: 2, Ts: day1, Tenant: "t1", Metric: "m"})
	src.clock = now.Add(2 * time.Minute)
	src.mu.Unlock()

	res, err = newTestExporter(src, dir, 100).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Metrics != 2 {
		t.Fatalf("second run should export ids 2 and 3, got %+v", res)
	}

	var exported []int64
	files := partitionFiles(t, filepath.Join(dir, "parquet", "metrics", "tenant=t1", "date=2026-02-01"))
	for _, f := range files {
		rows, err := parquet.ReadFile[metricRecord](f)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		for _, r := range rows {
			exported = append(exported, r.ID)
		}
	}
	sort.Slice(exported, func(i, j int) bool { return exported[i] < exported[j] })
	if len(exported) != 3 || exported[0] != 1 || exported[1] != 2 || exported[2] != 3 {
		t.Fatalf("exported ids = %v, want [1 2 3]", exported)
	}
}

func TestNewDefaultsSettle(t *testing.T) {
	if e := New(&fakeSource{}, t.TempDir(), 0, 0); e.settle != DefaultSettle || e.batchSize != 10000 {
		t.Fatalf("settle=%v batch=%d", e.settle, e.batchSize)
	}
}
