package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
	tmpl "github.com/eventops/flow/internal/template"
)

type webhookJob struct {
	alert model.AlertRow
	unit  string
}

// WebhookDeliveryService - rules 파일에 정의된 webhook으로 alert을 전송하는 서비스
//
// Notify는 블로킹하지 않는다. 전송은 별도 goroutine 하나가 순서대로 처리하며
// 실패는 로그만 남기고 재시도하지 않는다 (best-effort).
type WebhookDeliveryService struct {
	hooks      []model.WebhookConfig
	httpClient *http.Client

	queue chan webhookJob
	wg    sync.WaitGroup
	once  sync.Once
}

// NewWebhookDeliveryService 생성자
func NewWebhookDeliveryService(hooks []model.WebhookConfig, queueSize int) *WebhookDeliveryService {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &WebhookDeliveryService{
		hooks: hooks,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		queue: make(chan webhookJob, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *WebhookDeliveryService) run() {
	defer s.wg.Done()
	for job := range s.queue {
		s.Deliver(context.Background(), job.alert, job.unit)
	}
}

// Enabled - webhook이 하나라도 설정되어 있는지
func (s *WebhookDeliveryService) Enabled() bool {
	return len(s.hooks) > 0
}

// Notify - 전송 큐에 alert 추가. 큐가 가득 차면 버린다.
func (s *WebhookDeliveryService) Notify(alert model.AlertRow, unit string) bool {
	if !s.Enabled() {
		return false
	}
	select {
	case s.queue <- webhookJob{alert: alert, unit: unit}:
		return true
	default:
		logger.Warn("[WebhookDelivery] queue full, dropping alert tenant=%s metric=%s", alert.Tenant, alert.Metric)
		return false
	}
}

// Close - 큐에 남은 alert을 모두 전송한 뒤 반환
func (s *WebhookDeliveryService) Close() {
	s.once.Do(func() { close(s.queue) })
	s.wg.Wait()
}

// Deliver - 모든 webhook config에 렌더링된 body를 HTTP로 전송
// 개별 config 실패 시 로그만 남기고 나머지는 계속 전송합니다.
func (s *WebhookDeliveryService) Deliver(ctx context.Context, alert model.AlertRow, unit string) {
	alertData := tmpl.AlertDataFromRow(alert, unit)

	for i, cfg := range s.hooks {
		if cfg.URL == "" {
			logger.Warn("[WebhookDelivery] Skipping webhook #%d: URL is empty", i)
			continue
		}

		rendered := tmpl.RenderBody(cfg.Body, &alertData)

		if err := s.sendHTTP(ctx, cfg, rendered); err != nil {
			logger.Error("[WebhookDelivery] Failed to deliver to %s: %v", cfg.URL, err)
		} else {
			logger.Debug("[WebhookDelivery] Delivered to %s", cfg.URL)
		}
	}
}

// sendHTTP - 단일 webhook config로 HTTP 요청 전송
func (s *WebhookDeliveryService) sendHTTP(ctx context.Context, cfg model.WebhookConfig, body string) error {
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewBufferString(body))
	if err != nil {
		return err
	}

	// Content-Type 기본값 설정 (없으면 application/json)
	hasContentType := false
	for _, h := range cfg.Headers {
		if h.Key != "" {
			req.Header.Set(h.Key, h.Value)
		}
		if http.CanonicalHeaderKey(h.Key) == "Content-Type" {
			hasContentType = true
		}
	}
	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
