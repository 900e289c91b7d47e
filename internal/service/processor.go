// Engine 단계 처리 서비스
//
// 처리 흐름:
//  1. signals.enriched.v1 메시지를 Envelope로 디코딩 (실패 시 skip + dead-letter)
//  2. shard pool에 제출 (키별 순서 보장)
//  3. shard goroutine에서 결과 처리 (onResult)
//     - metric row: sink 큐에 추가
//     - alert row: sink 큐에 추가, ops.alert.v1 발행, webhook 전송
//     - MalformedEventError: 로그 + dead-letter, 윈도우는 변경되지 않음
//
// sink/발행/webhook은 모두 비동기이며 실패해도 윈도우 상태에 영향을 주지 않는다.

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/engine"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

// RowSink - sink.Writer가 구현
type RowSink interface {
	EnqueueMetric(row model.MetricRow) bool
	EnqueueAlert(row model.AlertRow) bool
}

// AlertNotifier - WebhookDeliveryService가 구현
type AlertNotifier interface {
	Notify(alert model.AlertRow, unit string) bool
}

type ProcessorOptions struct {
	Shards          int
	QueueSize       int
	AlertTopic      string
	DeadLetterTopic string
}

type ProcessorStats struct {
	Processed int64
	Alerts    int64
	Malformed int64
}

// ProcessorService 구조체 정의
type ProcessorService struct {
	pool     *engine.Pool
	sink     RowSink
	pub      broker.Publisher
	notifier AlertNotifier
	opts     ProcessorOptions
	dead     deadLetterer

	processed atomic.Int64
	alerts    atomic.Int64
	malformed atomic.Int64
}

// NewProcessorService - shard pool을 만들고 결과 처리기를 연결한다
// pub, notifier는 nil이면 해당 fan-out을 건너뛴다.
func NewProcessorService(cfg engine.Config, opts ProcessorOptions, sink RowSink, pub broker.Publisher, notifier AlertNotifier) (*ProcessorService, error) {
	if sink == nil {
		return nil, errors.New("processor: sink is required")
	}
	s := &ProcessorService{
		sink:     sink,
		pub:      pub,
		notifier: notifier,
		opts:     opts,
		dead:     deadLetterer{pub: pub, topic: opts.DeadLetterTopic, stage: "engine"},
	}
	pool, err := engine.NewPool(cfg, opts.Shards, opts.QueueSize, s.onResult)
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Handle - broker 메시지 1건 처리
// pool 제출에 실패하면(종료 중) 에러를 반환하여 offset이 commit되지 않게 한다.
func (s *ProcessorService) Handle(ctx context.Context, msg broker.Message) error {
	var env model.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		s.malformed.Add(1)
		logger.Warn("[Processor] skip undecodable envelope (topic=%s): %v", msg.Topic, err)
		s.dead.send(msg.Topic, msg.Key, msg.Value, err.Error())
		return nil
	}
	return s.pool.Submit(ctx, env)
}

func (s *ProcessorService) onResult(env model.Envelope, res engine.Result, err error) {
	if err != nil {
		s.malformed.Add(1)
		logger.Warn("[Processor] skip malformed event: %v", err)
		if engine.IsMalformed(err) {
			payload, _ := json.Marshal(env)
			s.dead.send("", []byte(env.TenantID), payload, err.Error())
		}
		return
	}
	s.processed.Add(1)

	s.sink.EnqueueMetric(res.Metric)

	if res.Alert == nil {
		return
	}
	alert := *res.Alert
	s.alerts.Add(1)
	logger.Info("[Processor] alert %s tenant=%s source=%s metric=%s mean=%.2f", alert.Severity, alert.Tenant, alert.SourceID, alert.Metric, alert.Value)

	s.sink.EnqueueAlert(alert)
	s.publishAlert(alert)
	if s.notifier != nil {
		s.notifier.Notify(alert, env.Unit)
	}
}

// publishAlert - ops.alert.v1로 fan-out. 실패해도 재시도하지 않는다.
func (s *ProcessorService) publishAlert(alert model.AlertRow) {
	if s.pub == nil || s.opts.AlertTopic == "" {
		return
	}
	data, err := json.Marshal(alert)
	if err != nil {
		logger.Error("[Processor] marshal alert: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, s.opts.AlertTopic, []byte(alert.Tenant), data); err != nil {
		logger.Warn("[Processor] publish alert to %s failed: %v", s.opts.AlertTopic, err)
	}
}

// Close - pool에 남은 이벤트를 모두 처리한 뒤 반환
func (s *ProcessorService) Close() {
	s.pool.Close()
}

func (s *ProcessorService) Stats() ProcessorStats {
	return ProcessorStats{
		Processed: s.processed.Load(),
		Alerts:    s.alerts.Load(),
		Malformed: s.malformed.Load(),
	}
}
