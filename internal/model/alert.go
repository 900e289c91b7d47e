// engine이 만들어내는 파생 레코드(metric row, alert row)와 임계치 설정 구조체 정의
// engine, sink, db, handler 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import "time"

// Severity - alert 심각도
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// MetricRow - 입력 이벤트 1건당 1건 기록되는 metric 사실(append-only)
type MetricRow struct {
	// ID: DB가 부여하는 일련번호 (export watermark 용)
	ID int64 `json:"id,omitempty"`

	// EventID: 재전송(at-least-once) 시 중복 저장을 막기 위한 키
	EventID string `json:"event_id,omitempty"`

	Ts       time.Time         `json:"ts"`
	Tenant   string            `json:"tenant"`
	SourceID string            `json:"source_id"`
	Metric   string            `json:"metric"`
	Value    float64           `json:"value"`
	Unit     string            `json:"unit"`
	Tags     map[string]string `json:"tags"`
}

// AlertRow - 윈도우 평균이 임계치를 넘었을 때 생성되는 alert
// DB 저장과 fan-out(ops.alert.v1) 양쪽에 동일한 형태로 전달된다.
type AlertRow struct {
	ID int64 `json:"id,omitempty"`

	Ts       time.Time `json:"ts"`
	Tenant   string    `json:"tenant"`
	SourceID string    `json:"source_id"`
	Metric   string    `json:"metric"`
	Severity Severity  `json:"severity"`

	// Rule: 발화한 규칙 식별자 (예: "cpu_load_threshold")
	Rule string `json:"rule"`

	// Value: 윈도우 평균값 (개별 샘플 값이 아님)
	Value   float64           `json:"value"`
	Message string            `json:"message"`
	Tags    map[string]string `json:"tags"`
}

// Threshold - metric별 (warn, crit) 쌍
type Threshold struct {
	Warn float64 `json:"warn" mapstructure:"warn"`
	Crit float64 `json:"crit" mapstructure:"crit"`
}

// Thresholds - metric 이름 -> Threshold
type Thresholds map[string]Threshold

// CPUPoint - /metrics/cpu 응답 항목
type CPUPoint struct {
	Ts    time.Time         `json:"ts"`
	Value float64           `json:"value"`
	Unit  string            `json:"unit"`
	Tags  map[string]string `json:"tags"`
}
