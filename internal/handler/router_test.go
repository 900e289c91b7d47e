package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/eventops/flow/internal/model"
	"github.com/eventops/flow/internal/service"
	"github.com/eventops/flow/internal/stream"
)

type fakeQuerier struct {
	tenant string
	arg    string
	limit  int
	err    error
}

func (f *fakeQuerier) GetCPUMetrics(_ context.Context, tenant, host string) ([]model.CPUPoint, error) {
	f.tenant, f.arg = tenant, host
	return []model.CPUPoint{{Value: 42, Unit: "%"}}, f.err
}

func (f *fakeQuerier) GetLatestMetrics(_ context.Context, tenant, metric string) ([]model.MetricRow, error) {
	f.tenant, f.arg = tenant, metric
	return []model.MetricRow{{Tenant: tenant, Metric: metric}}, f.err
}

func (f *fakeQuerier) ListAlerts(_ context.Context, tenant, metric string, limit int) ([]model.AlertRow, error) {
	f.tenant, f.arg, f.limit = tenant, metric, limit
	return []model.AlertRow{{Tenant: tenant}}, f.err
}

func newTestRouter(t *testing.T, q *fakeQuerier, tokens *service.TokenService) (*gin.Engine, *stream.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := stream.NewHub(8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := RouterConfig{Query: q, Hub: hub, CORSOrigins: []string{"http://dash.local"}}
	if tokens != nil {
		cfg.Tokens = tokens
	}
	return NewRouter(cfg), hub
}

func doGet(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestPingAndRoot(t *testing.T) {
	r, _ := newTestRouter(t, &fakeQuerier{}, nil)

	if w := doGet(r, "/ping", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Fatalf("/ping = %d %s", w.Code, w.Body.String())
	}
	if w := doGet(r, "/", nil); w.Code != http.StatusOK {
		t.Fatalf("/ = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewHealthRouter(func(context.Context) error { return nil })
	if w := doGet(healthy, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	sick := NewHealthRouter(nil, func(context.Context) error { return errors.New("sink: 10 consecutive write failures") })
	w := doGet(sick, "/healthz", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp model.HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "unhealthy" || !strings.Contains(resp.Detail, "consecutive") {
		t.Fatalf("response = %+v", resp)
	}
}

func TestMetricsHandlerValidation(t *testing.T) {
	q := &fakeQuerier{}
	r, _ := newTestRouter(t, q, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/metrics/cpu?host=h1", http.StatusBadRequest},
		{"/api/v1/metrics/cpu?tenant=t1", http.StatusBadRequest},
		{"/api/v1/metrics/latest?tenant=t1", http.StatusBadRequest},
		{"/api/v1/metrics/cpu?tenant=t1&host=h1", http.StatusOK},
		{"/api/v1/metrics/latest?tenant=t1&metric=cpu_load", http.StatusOK},
		{"/api/v1/alerts?tenant=t1&limit=abc", http.StatusBadRequest},
		{"/api/v1/alerts", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := doGet(r, tt.path, nil); w.Code != tt.code {
			t.Fatalf("GET %s = %d, want %d (%s)", tt.path, w.Code, tt.code, w.Body.String())
		}
	}
}

func TestCPUMetricsResponse(t *testing.T) {
	q := &fakeQuerier{}
	r, _ := newTestRouter(t, q, nil)

	w := doGet(r, "/api/v1/metrics/cpu?tenant=t1&host=h1", nil)
	var resp model.CPUMetricsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "success" || len(resp.Data) != 1 || resp.Data[0].Value != 42 {
		t.Fatalf("response = %+v", resp)
	}
	if q.tenant != "t1" || q.arg != "h1" {
		t.Fatalf("query args = %q %q", q.tenant, q.arg)
	}
}

func TestAlertsListPassesFilters(t *testing.T) {
	q := &fakeQuerier{}
	r, _ := newTestRouter(t, q, nil)

	w := doGet(r, "/api/v1/alerts?tenant=t1&metric=cpu_load&limit=20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if q.tenant != "t1" || q.arg != "cpu_load" || q.limit != 20 {
		t.Fatalf("query = %+v", q)
	}
}

func TestQueryErrorIs500(t *testing.T) {
	r, _ := newTestRouter(t, &fakeQuerier{err: errors.New("db down")}, nil)
	if w := doGet(r, "/api/v1/alerts?tenant=t1", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthTenantScope(t *testing.T) {
	tokens, _ := service.NewTokenService("s3cret")
	token, _ := tokens.IssueToken("t1", "test", time.Hour)
	q := &fakeQuerier{}
	r, _ := newTestRouter(t, q, tokens)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	if w := doGet(r, "/api/v1/alerts?tenant=t1", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := doGet(r, "/api/v1/alerts?tenant=t1", map[string]string{"Authorization": "Bearer nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
	if w := doGet(r, "/api/v1/alerts?tenant=t2", bearer); w.Code != http.StatusForbidden {
		t.Fatalf("cross tenant: %d", w.Code)
	}
	if w := doGet(r, "/api/v1/alerts", bearer); w.Code != http.StatusOK || q.tenant != "t1" {
		t.Fatalf("implicit tenant: %d tenant=%q", w.Code, q.tenant)
	}
	if w := doGet(r, "/api/v1/metrics/latest?metric=m&access_token="+token, nil); w.Code != http.StatusOK {
		t.Fatalf("query token: %d", w.Code)
	}
	if w := doGet(r, "/ping", nil); w.Code != http.StatusOK {
		t.Fatalf("/ping must stay public: %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, &fakeQuerier{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "http://dash.local")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Fatalf("allow-origin = %q", got)
	}

	w = doGet(r, "/ping", map[string]string{"Origin": "http://evil.local"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func waitSubscribers(t *testing.T, hub *stream.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAlertStreamSSE(t *testing.T) {
	r, hub := newTestRouter(t, &fakeQuerier{}, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/alerts/stream?tenant=t1")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type = %q", ct)
	}

	waitSubscribers(t, hub, 1)
	hub.Broadcast(model.AlertRow{Tenant: "t2", Metric: "ignored"})
	hub.Broadcast(model.AlertRow{Tenant: "t1", Metric: "cpu_load", Severity: model.SeverityCritical})

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var event string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before alert")
			}
			if strings.HasPrefix(line, "event:") {
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			}
			if strings.HasPrefix(line, "data:") {
				var msg model.StreamMessage
				if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &msg); err != nil {
					t.Fatalf("unmarshal %q: %v", line, err)
				}
				if event != "alert" || msg.Payload.Metric != "cpu_load" {
					t.Fatalf("event=%q msg=%+v", event, msg)
				}
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for SSE alert")
		}
	}
}

func TestAlertWebSocket(t *testing.T) {
	r, hub := newTestRouter(t, &fakeQuerier{}, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/alerts/ws?tenant=t1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitSubscribers(t, hub, 1)
	hub.Broadcast(model.AlertRow{Tenant: "t1", Metric: "cpu_load", Severity: model.SeverityWarning})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg model.StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "alert" || msg.Payload.Severity != model.SeverityWarning {
		t.Fatalf("message = %+v", msg)
	}
}
