// Windowed feature & alerting engine
//
// 처리 흐름 (Process 1회 = 이벤트 1건):
//  1. 필수 필드(tenant_id, source_id, metric, value) 검증
//  2. metric row 생성 (입력 필드 직접 투영, 항상 생성)
//  3. (tenant_id, source_id, metric) 키의 윈도우에 value 추가
//  4. 윈도우가 가득 찼을 때만 평균 계산
//  5. 임계치 비교 (crit 먼저, 둘 다 >=)
//  6. alert row 생성
//
// Engine은 I/O를 하지 않는다. DB 저장과 fan-out은 service 레이어에서 처리한다.
// Engine 하나는 goroutine 하나에서만 사용해야 한다 (병렬 처리는 Pool 참고).

package engine

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
	tmpl "github.com/eventops/flow/internal/template"
)

// DefaultMaxKeys - 동시에 유지하는 그룹 키 수 상한 기본값
const DefaultMaxKeys = 100000

// Key - 윈도우/임계치 상태의 범위
type Key struct {
	Tenant   string
	SourceID string
	Metric   string
}

func (k Key) String() string {
	return k.Tenant + "|" + k.SourceID + "|" + k.Metric
}

// KeyOf - envelope의 그룹 키
func KeyOf(env model.Envelope) Key {
	return Key{Tenant: env.TenantID, SourceID: env.SourceID, Metric: env.Metric}
}

// Config - 프로세스 시작 시 한 번 주입되는 불변 설정
type Config struct {
	// WindowSize: 윈도우 용량 N (모든 키 공통)
	WindowSize int

	// MaxKeys: LRU로 유지할 최대 키 수. 0이면 DefaultMaxKeys
	MaxKeys int

	Thresholds model.Thresholds

	// MessageTemplate: 비어 있으면 template.DefaultMessage
	MessageTemplate string
}

// Result - Process 결과. Alert은 임계치를 넘었을 때만 non-nil
type Result struct {
	Metric model.MetricRow
	Alert  *model.AlertRow
}

type Engine struct {
	size            int
	thresholds      model.Thresholds
	messageTemplate string
	windows         *lru.Cache[Key, *Window]
}

func New(cfg Config) (*Engine, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.WindowSize)
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	message := cfg.MessageTemplate
	if message == "" {
		message = tmpl.DefaultMessage
	}

	windows, err := lru.NewWithEvict(maxKeys, func(key Key, w *Window) {
		logger.Debug("[Engine] evicted idle key=%s (samples=%d)", key, w.Len())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window cache: %w", err)
	}

	thresholds := make(model.Thresholds, len(cfg.Thresholds))
	for metric, th := range cfg.Thresholds {
		thresholds[metric] = th
	}

	return &Engine{
		size:            cfg.WindowSize,
		thresholds:      thresholds,
		messageTemplate: message,
		windows:         windows,
	}, nil
}

// Process - 이벤트 1건 처리
// MalformedEventError를 반환하면 윈도우 상태는 변경되지 않는다.
func (e *Engine) Process(env model.Envelope) (Result, error) {
	value, err := validate(env)
	if err != nil {
		return Result{}, err
	}

	res := Result{Metric: toMetricRow(env, value)}

	key := KeyOf(env)
	w, ok := e.windows.Get(key)
	if !ok {
		w = NewWindow(e.size)
		e.windows.Add(key, w)
	}
	w.Push(value)

	// 부분적으로 채워진 윈도우는 평가하지 않음 (cold start 오탐 방지)
	if !w.Full() {
		return res, nil
	}

	th, ok := e.thresholds[env.Metric]
	if !ok {
		return res, nil
	}
	mean := w.Mean()
	severity, ok := Classify(mean, th)
	if !ok {
		return res, nil
	}

	alert := e.toAlertRow(env, mean, severity)
	res.Alert = &alert
	return res, nil
}

// Classify - 평균값을 임계치와 비교
// 두 비교 모두 inclusive(>=)이고 critical을 먼저 확인한다 (most-severe-wins).
func Classify(mean float64, th model.Threshold) (model.Severity, bool) {
	switch {
	case mean >= th.Crit:
		return model.SeverityCritical, true
	case mean >= th.Warn:
		return model.SeverityWarning, true
	default:
		return "", false
	}
}

// RuleName - 발화한 규칙의 결정적 식별자
func RuleName(metric string) string {
	return metric + "_threshold"
}

// Snapshot - 키의 현재 버퍼 (오래된 값부터). LRU 순서는 건드리지 않는다.
func (e *Engine) Snapshot(key Key) ([]float64, bool) {
	w, ok := e.windows.Peek(key)
	if !ok {
		return nil, false
	}
	return w.Values(), true
}

// Keys - 현재 유지 중인 키 수
func (e *Engine) Keys() int {
	return e.windows.Len()
}

func (e *Engine) WindowSize() int {
	return e.size
}

func validate(env model.Envelope) (float64, error) {
	required := []struct {
		field string
		value string
	}{
		{"tenant_id", env.TenantID},
		{"source_id", env.SourceID},
		{"metric", env.Metric},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return 0, &MalformedEventError{EventID: env.EventID, Field: r.field, Reason: "is required"}
		}
	}

	value, err := env.Value.Float()
	if err != nil {
		return 0, &MalformedEventError{EventID: env.EventID, Field: "value", Reason: "is not a finite number", Err: err}
	}
	return value, nil
}

func toMetricRow(env model.Envelope, value float64) model.MetricRow {
	return model.MetricRow{
		EventID:  env.EventID,
		Ts:       env.TsEvent,
		Tenant:   env.TenantID,
		SourceID: env.SourceID,
		Metric:   env.Metric,
		Value:    value,
		Unit:     env.Unit,
		Tags:     model.CloneTags(env.Tags),
	}
}

func (e *Engine) toAlertRow(env model.Envelope, mean float64, severity model.Severity) model.AlertRow {
	row := model.AlertRow{
		Ts:       env.TsEvent,
		Tenant:   env.TenantID,
		SourceID: env.SourceID,
		Metric:   env.Metric,
		Severity: severity,
		Rule:     RuleName(env.Metric),
		Value:    mean,
		Tags:     model.CloneTags(env.Tags),
	}
	data := tmpl.AlertDataFromRow(row, env.Unit)
	row.Message = tmpl.RenderBody(e.messageTemplate, &data)
	return row
}
