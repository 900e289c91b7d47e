package service

import (
	"context"
	"errors"
	"sync"

	"github.com/eventops/flow/internal/model"
)

type published struct {
	topic string
	key   string
	value []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: string(key), value: append([]byte(nil), value...)})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) on(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeSink struct {
	mu      sync.Mutex
	metrics []model.MetricRow
	alerts  []model.AlertRow
}

func (f *fakeSink) EnqueueMetric(row model.MetricRow) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = append(f.metrics, row)
	return true
}

func (f *fakeSink) EnqueueAlert(row model.AlertRow) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, row)
	return true
}

type fakeNotifier struct {
	mu    sync.Mutex
	units []string
}

func (f *fakeNotifier) Notify(_ model.AlertRow, unit string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = append(f.units, unit)
	return true
}

var errPublish = errors.New("broker unavailable")
