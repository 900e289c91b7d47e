package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/eventops/flow/internal/model"
	tmpl "github.com/eventops/flow/internal/template"
)

const (
	defaultWindowSize = 12
	defaultMaxKeys    = 100000
)

// Rules - engine이 시작 시 한 번 읽는 불변 설정
type Rules struct {
	WindowSize      int
	MaxKeys         int
	MessageTemplate string
	Thresholds      model.Thresholds
	Webhooks        []model.WebhookConfig
}

// LoadRules - rules 파일(yaml/json/toml)을 읽고 검증한다.
// 스칼라 값은 RULES_ 접두사 환경 변수로 덮어쓸 수 있다 (예: RULES_WINDOW_SIZE).
// viper는 key를 소문자로 바꾸고 '.'을 중첩으로 해석하므로, 그렇게 바뀌는 metric 이름은 거부한다.
func LoadRules(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rules path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RULES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("window.size", defaultWindowSize)
	v.SetDefault("window.max_keys", defaultMaxKeys)
	v.SetDefault("message_template", tmpl.DefaultMessage)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	if !v.IsSet("thresholds") {
		return nil, fmt.Errorf("rules %s: thresholds table is missing", path)
	}
	if err := checkRawMetricNames(path); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}

	rules := &Rules{
		WindowSize:      v.GetInt("window.size"),
		MaxKeys:         v.GetInt("window.max_keys"),
		MessageTemplate: v.GetString("message_template"),
	}
	// "a.b" 같은 이름은 thresholds.a.b로 중첩되어 warn/crit 외의 key가 남는다
	errorUnused := func(dc *mapstructure.DecoderConfig) { dc.ErrorUnused = true }
	if err := v.UnmarshalKey("thresholds", &rules.Thresholds, errorUnused); err != nil {
		return nil, fmt.Errorf("decode thresholds: %w", err)
	}
	if err := v.UnmarshalKey("webhooks", &rules.Webhooks); err != nil {
		return nil, fmt.Errorf("decode webhooks: %w", err)
	}
	if rules.Thresholds == nil {
		rules.Thresholds = model.Thresholds{}
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// Validate - 잘못된 설정이면 에러 (호출 측은 프로세스를 종료한다)
func (r *Rules) Validate() error {
	if r.WindowSize <= 0 {
		return fmt.Errorf("window.size must be positive, got %d", r.WindowSize)
	}
	if r.MaxKeys < 0 {
		return fmt.Errorf("window.max_keys must not be negative, got %d", r.MaxKeys)
	}
	if strings.TrimSpace(r.MessageTemplate) == "" {
		r.MessageTemplate = tmpl.DefaultMessage
	}
	for metric, th := range r.Thresholds {
		if err := validMetricName(metric); err != nil {
			return err
		}
		if !finite(th.Warn) || !finite(th.Crit) {
			return fmt.Errorf("threshold %s: warn/crit must be finite", metric)
		}
		if th.Warn > th.Crit {
			return fmt.Errorf("threshold %s: warn (%v) is greater than crit (%v)", metric, th.Warn, th.Crit)
		}
	}
	for i, hook := range r.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhooks[%d]: url is required", i)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// validMetricName - 이벤트의 metric과 정확히 비교되므로 소문자, '.' 없음
func validMetricName(metric string) error {
	switch {
	case strings.TrimSpace(metric) == "":
		return errors.New("threshold with empty metric name")
	case strings.Contains(metric, "."):
		return fmt.Errorf("threshold %q: metric name must not contain '.'", metric)
	case metric != strings.ToLower(metric):
		return fmt.Errorf("threshold %q: metric name must be lower case", metric)
	}
	return nil
}

// checkRawMetricNames - viper가 이름을 바꾸기 전의 thresholds key 검사 (yaml/json만)
func checkRawMetricNames(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw struct {
		Thresholds map[string]any `yaml:"thresholds"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse thresholds: %w", err)
	}
	for metric := range raw.Thresholds {
		if err := validMetricName(metric); err != nil {
			return err
		}
	}
	return nil
}
