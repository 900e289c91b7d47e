package export

import (
	"time"

	"github.com/eventops/flow/internal/model"
)

type metricRecord struct {
	ID       int64             `parquet:"id"`
	EventID  string            `parquet:"event_id"`
	Ts       time.Time         `parquet:"ts"`
	Tenant   string            `parquet:"tenant"`
	SourceID string            `parquet:"source_id"`
	Metric   string            `parquet:"metric"`
	Value    float64           `parquet:"value"`
	Unit     string            `parquet:"unit"`
	Tags     map[string]string `parquet:"tags"`
}

type alertRecord struct {
	ID       int64             `parquet:"id"`
	Ts       time.Time         `parquet:"ts"`
	Tenant   string            `parquet:"tenant"`
	SourceID string            `parquet:"source_id"`
	Metric   string            `parquet:"metric"`
	Severity string            `parquet:"severity"`
	Rule     string            `parquet:"rule"`
	Value    float64           `parquet:"value"`
	Message  string            `parquet:"message"`
	Tags     map[string]string `parquet:"tags"`
}

func toMetricRecord(m model.MetricRow) metricRecord {
	return metricRecord{
		ID:       m.ID,
		EventID:  m.EventID,
		Ts:       m.Ts.UTC(),
		Tenant:   m.Tenant,
		SourceID: m.SourceID,
		Metric:   m.Metric,
		Value:    m.Value,
		Unit:     m.Unit,
		Tags:     m.Tags,
	}
}

func toAlertRecord(a model.AlertRow) alertRecord {
	return alertRecord{
		ID:       a.ID,
		Ts:       a.Ts.UTC(),
		Tenant:   a.Tenant,
		SourceID: a.SourceID,
		Metric:   a.Metric,
		Severity: string(a.Severity),
		Rule:     a.Rule,
		Value:    a.Value,
		Message:  a.Message,
		Tags:     a.Tags,
	}
}
