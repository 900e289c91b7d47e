// Package normalize converts raw agent payloads into the canonical envelope.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventops/flow/internal/model"
)

const (
	DefaultTenant = "default"
	UnknownSource = "unknown"
)

// Normalizer - raw payload를 Envelope로 변환
// Now/NewID는 테스트에서 교체할 수 있다.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

func New() *Normalizer {
	return &Normalizer{
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Decode - JSON object payload를 map으로 디코딩. 숫자는 원문 그대로 유지한다.
func Decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode raw payload: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode raw payload: not a JSON object")
	}
	return raw, nil
}

// Normalize - raw 필드를 canonical envelope로 매핑
//
// metric/value가 없어도 실패하지 않는다. 빈 값은 engine 검증 단계에서 거부된다.
func (n *Normalizer) Normalize(raw map[string]any) model.Envelope {
	now := n.Now()

	sourceID := firstString(raw, "host", "source_id")
	if sourceID == "" {
		sourceID = UnknownSource
	}
	tenant := firstString(raw, "tenant_id")
	if tenant == "" {
		tenant = DefaultTenant
	}

	tsEvent := now
	if s := firstString(raw, "ts_event"); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			tsEvent = t.UTC()
		}
	}

	tags := stringTags(raw["tags"])
	if _, ok := tags["host"]; !ok {
		tags["host"] = sourceID
	}

	return model.Envelope{
		EventID:  n.NewID(),
		TenantID: tenant,
		TsEvent:  tsEvent,
		TsIngest: now,
		SourceID: sourceID,
		Metric:   firstString(raw, "metric"),
		Value:    toValue(raw["value"]),
		Unit:     firstString(raw, "unit"),
		Tags:     tags,
	}
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func toValue(v any) model.Value {
	switch val := v.(type) {
	case nil:
		return ""
	case json.Number:
		return model.Value(val.String())
	case string:
		return model.Value(val)
	case float64:
		return model.NewValue(val)
	default:
		return model.Value(fmt.Sprint(val))
	}
}

func stringTags(v any) map[string]string {
	out := make(map[string]string)
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		switch tv := val.(type) {
		case nil:
		case string:
			out[k] = tv
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}
