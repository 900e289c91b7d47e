package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type CPUMetricsResponse struct {
	Status string     `json:"status"`
	Data   []CPUPoint `json:"data"`
}

type MetricListResponse struct {
	Status string      `json:"status"`
	Data   []MetricRow `json:"data"`
}

type AlertListResponse struct {
	Status string     `json:"status"`
	Data   []AlertRow `json:"data"`
}

// StreamMessage - WebSocket으로 push되는 메시지
type StreamMessage struct {
	Type    string   `json:"type"`
	Payload AlertRow `json:"payload"`
}
