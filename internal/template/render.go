// Package template provides alert message and webhook body rendering.
//
// 지원하는 변수 형식:
//
//	{{alert.tenant}}, {{alert.source_id}}, {{alert.metric}}, {{alert.severity}},
//	{{alert.rule}}, {{alert.value}}, {{alert.unit}}, {{alert.ts}}, {{alert.message}},
//	{{alert.tag.<key>}}
package template

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eventops/flow/internal/model"
)

// DefaultMessage - rules 파일에 message_template이 없을 때 사용하는 alert 메시지
const DefaultMessage = "{{alert.metric}}={{alert.value}} exceeds {{alert.severity}} threshold"

// AlertData - 템플릿 렌더링에 사용할 Alert 데이터
type AlertData struct {
	Tenant    string
	SourceID  string
	Metric    string
	Severity  string
	Rule      string
	Value     float64
	Unit      string
	Timestamp time.Time
	Message   string
	Tags      map[string]string
}

// AlertDataFromRow - model.AlertRow에서 AlertData 생성
func AlertDataFromRow(row model.AlertRow, unit string) AlertData {
	return AlertData{
		Tenant:    row.Tenant,
		SourceID:  row.SourceID,
		Metric:    row.Metric,
		Severity:  string(row.Severity),
		Rule:      row.Rule,
		Value:     row.Value,
		Unit:      unit,
		Timestamp: row.Ts,
		Message:   row.Message,
		Tags:      row.Tags,
	}
}

// RenderBody - 템플릿의 변수를 실제 값으로 치환
//
// alert이 nil이면 모든 변수는 빈 문자열로 치환됩니다.
// value는 소수점 둘째 자리까지 표시합니다.
func RenderBody(body string, alert *AlertData) string {
	if alert == nil {
		return emptyReplacer.Replace(stripTagVars(body, nil))
	}

	ts := ""
	if !alert.Timestamp.IsZero() {
		ts = alert.Timestamp.Format(time.RFC3339)
	}
	pairs := make([]string, 0, 20+2*len(alert.Tags))
	pairs = append(pairs,
		"{{alert.tenant}}", alert.Tenant,
		"{{alert.source_id}}", alert.SourceID,
		"{{alert.metric}}", alert.Metric,
		"{{alert.severity}}", alert.Severity,
		"{{alert.rule}}", alert.Rule,
		"{{alert.value}}", strconv.FormatFloat(alert.Value, 'f', 2, 64),
		"{{alert.unit}}", alert.Unit,
		"{{alert.ts}}", ts,
		"{{alert.message}}", alert.Message,
	)

	keys := make([]string, 0, len(alert.Tags))
	for k := range alert.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "{{alert.tag."+k+"}}", alert.Tags[k])
	}

	// 치환된 값 안의 {{...}} 텍스트는 건드리지 않도록 템플릿 단계에서 먼저 제거
	return strings.NewReplacer(pairs...).Replace(stripTagVars(body, alert.Tags))
}

var emptyReplacer = strings.NewReplacer(
	"{{alert.tenant}}", "",
	"{{alert.source_id}}", "",
	"{{alert.metric}}", "",
	"{{alert.severity}}", "",
	"{{alert.rule}}", "",
	"{{alert.value}}", "",
	"{{alert.unit}}", "",
	"{{alert.ts}}", "",
	"{{alert.message}}", "",
)

// stripTagVars - tags에 없는 {{alert.tag.*}} 변수를 템플릿에서 제거
func stripTagVars(body string, tags map[string]string) string {
	const prefix = "{{alert.tag."
	var b strings.Builder
	for {
		start := strings.Index(body, prefix)
		if start < 0 {
			break
		}
		end := strings.Index(body[start:], "}}")
		if end < 0 {
			break
		}
		key := body[start+len(prefix) : start+end]
		b.WriteString(body[:start])
		if _, ok := tags[key]; ok {
			b.WriteString(body[start : start+end+2])
		}
		body = body[start+end+2:]
	}
	b.WriteString(body)
	return b.String()
}
