package model

// WebhookHeader - 헤더 키-값 쌍
type WebhookHeader struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value" mapstructure:"value"`
}

// WebhookConfig - rules 파일에 정의되는 alert webhook 설정
// Body는 {{alert.*}} 변수를 포함한 템플릿 문자열
type WebhookConfig struct {
	URL     string          `json:"url" mapstructure:"url"`
	Method  string          `json:"method" mapstructure:"method"`
	Headers []WebhookHeader `json:"headers" mapstructure:"headers"`
	Body    string          `json:"body" mapstructure:"body"`
}
