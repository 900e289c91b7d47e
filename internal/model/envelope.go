// 파이프라인 전 구간에서 공통으로 사용하는 정규화 이벤트(Canonical Envelope) 정의
// normalizer가 만들고, enricher가 tags를 보강하고, engine이 소비한다.

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Envelope - 정규화된 이벤트
type Envelope struct {
	EventID  string            `json:"event_id"`
	TenantID string            `json:"tenant_id"`
	TsEvent  time.Time         `json:"ts_event"`
	TsIngest time.Time         `json:"ts_ingest"`
	SourceID string            `json:"source_id"`
	Metric   string            `json:"metric"`
	Value    Value             `json:"value"`
	Unit     string            `json:"unit"`
	Tags     map[string]string `json:"tags"`
}

// Value - 샘플 값
// agent마다 숫자 또는 문자열("83.5")로 보내기 때문에 원문 텍스트를 그대로 보관하고
// 숫자 변환은 engine에서 검증한다. null/누락은 빈 문자열.
type Value string

var (
	ErrValueMissing   = errors.New("value is missing")
	ErrValueNotFinite = errors.New("value is not a finite number")
)

// NewValue - float64로부터 Value 생성
func NewValue(f float64) Value {
	return Value(strconv.FormatFloat(f, 'g', -1, 64))
}

// Float - 유한한 float64로 변환
func (v Value) Float() (float64, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, ErrValueMissing
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrValueNotFinite
	}
	return f, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	*v = Value(data)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	if f, err := v.Float(); err == nil {
		return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
	}
	return json.Marshal(string(v))
}

// CloneTags - tags map 복사 (nil이면 빈 map)
func CloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
