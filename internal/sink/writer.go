// Package sink writes metric and alert rows to the durable store off the
// engine's critical path.
package sink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
	"github.com/eventops/flow/internal/retry"
)

// Store - row 저장소 (db.Postgres가 구현)
type Store interface {
	InsertMetric(ctx context.Context, row model.MetricRow) error
	InsertAlert(ctx context.Context, row model.AlertRow) error
}

type Options struct {
	QueueSize        int
	Retry            retry.Policy
	WriteTimeout     time.Duration
	FailureThreshold int
}

type Stats struct {
	Written     int64
	Dropped     int64
	Failed      int64
	Pending     int
	Consecutive int64
}

type item struct {
	metric *model.MetricRow
	alert  *model.AlertRow
}

// Writer - bounded queue + 단일 writer goroutine
//
// Enqueue는 블로킹하지 않는다. 큐가 가득 차면 row를 버리고 Dropped를 올린다.
// 저장 실패는 retry 정책만큼 재시도한 뒤 버린다 (window 상태는 되돌리지 않음).
type Writer struct {
	store Store
	opts  Options
	queue chan item

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	written     atomic.Int64
	dropped     atomic.Int64
	failed      atomic.Int64
	consecutive atomic.Int64
}

func NewWriter(store Store, opts Options) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		store:  store,
		opts:   opts,
		queue:  make(chan item, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Writer) EnqueueMetric(row model.MetricRow) bool {
	return w.enqueue(item{metric: &row}, "metric")
}

func (w *Writer) EnqueueAlert(row model.AlertRow) bool {
	return w.enqueue(item{alert: &row}, "alert")
}

func (w *Writer) enqueue(it item, kind string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.queue <- it:
		return true
	default:
		n := w.dropped.Add(1)
		logger.Warn("[Sink] queue full, dropping %s row (dropped=%d)", kind, n)
		return false
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for it := range w.queue {
		w.write(it)
	}
}

func (w *Writer) write(it item) {
	name := "insert alert"
	if it.metric != nil {
		name = "insert metric"
	}

	err := retry.Execute(w.ctx, w.opts.Retry, name, func(ctx context.Context) error {
		wctx, cancel := context.WithTimeout(ctx, w.opts.WriteTimeout)
		defer cancel()
		if it.metric != nil {
			return w.store.InsertMetric(wctx, *it.metric)
		}
		return w.store.InsertAlert(wctx, *it.alert)
	})
	if err != nil {
		w.failed.Add(1)
		n := w.consecutive.Add(1)
		logger.Error("[Sink] %s failed, row dropped (consecutive=%d): %v", name, n, err)
		return
	}
	w.written.Add(1)
	w.consecutive.Store(0)
}

// Healthy - 연속 실패가 임계치 이상이면 에러
func (w *Writer) Healthy() error {
	if w.opts.FailureThreshold <= 0 {
		return nil
	}
	if n := w.consecutive.Load(); n >= int64(w.opts.FailureThreshold) {
		return fmt.Errorf("sink: %d consecutive write failures", n)
	}
	return nil
}

func (w *Writer) Stats() Stats {
	return Stats{
		Written:     w.written.Load(),
		Dropped:     w.dropped.Load(),
		Failed:      w.failed.Load(),
		Pending:     len(w.queue),
		Consecutive: w.consecutive.Load(),
	}
}

// Close - 새 row를 받지 않고 큐를 비운다.
// ctx가 먼저 끝나면 진행 중인 재시도를 중단하고 남은 row는 한 번씩만 시도한다.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}
