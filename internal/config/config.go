package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Broker   BrokerConfig
	Topics   TopicConfig
	Engine   EngineConfig
	Sink     SinkConfig
	Postgres PostgresConfig
	API      APIConfig
	Enricher EnricherConfig
	Export   ExportConfig
	Log      LogConfig
}

// BrokerConfig - 메시지 백본 설정
// Kind는 "kafka" 또는 "nats"
type BrokerConfig struct {
	Kind         string
	KafkaBrokers []string
	NATSURL      string
	GroupPrefix  string
}

type TopicConfig struct {
	Raw        string
	Metric     string
	Enriched   string
	Alert      string
	DeadLetter string
}

type EngineConfig struct {
	RulesPath  string
	Shards     int
	QueueSize  int
	HealthAddr string
}

type SinkConfig struct {
	QueueSize        int
	RetryAttempts    int
	RetryBackoff     time.Duration
	WriteTimeout     time.Duration
	FailureThreshold int
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type APIConfig struct {
	Addr        string
	JWTSecret   string
	CORSOrigins []string
}

type EnricherConfig struct {
	ReferencePath string
}

type ExportConfig struct {
	Interval  time.Duration
	BatchSize int
	DataDir   string
	SettleLag time.Duration
}

type LogConfig struct {
	Level string
}

// Load - 환경 변수에서 설정을 읽는다. 현재 디렉터리에 .env가 있으면 먼저 반영한다.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Broker: BrokerConfig{
			Kind:         strings.ToLower(getenv("BROKER", "kafka")),
			KafkaBrokers: getenvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			NATSURL:      getenv("NATS_URL", "nats://127.0.0.1:4222"),
			GroupPrefix:  getenv("CONSUMER_GROUP_PREFIX", "eventops"),
		},
		Topics: TopicConfig{
			Raw:        getenv("RAW_TOPIC", "ingest.raw.agent"),
			Metric:     getenv("METRIC_TOPIC", "signals.metric.v1"),
			Enriched:   getenv("ENRICHED_TOPIC", "signals.enriched.v1"),
			Alert:      getenv("ALERT_TOPIC", "ops.alert.v1"),
			DeadLetter: os.Getenv("DEAD_LETTER_TOPIC"),
		},
		Engine: EngineConfig{
			RulesPath:  getenv("RULES_PATH", "configs/rules.yaml"),
			Shards:     getenvInt("ENGINE_SHARDS", 1),
			QueueSize:  getenvInt("ENGINE_QUEUE_SIZE", 256),
			HealthAddr: getenv("ENGINE_HEALTH_ADDR", ":8081"),
		},
		Sink: SinkConfig{
			QueueSize:        getenvInt("SINK_QUEUE_SIZE", 4096),
			RetryAttempts:    getenvInt("SINK_RETRY_ATTEMPTS", 5),
			RetryBackoff:     getenvDuration("SINK_RETRY_BACKOFF", 500*time.Millisecond),
			WriteTimeout:     getenvDuration("SINK_WRITE_TIMEOUT", 5*time.Second),
			FailureThreshold: getenvInt("SINK_FAILURE_THRESHOLD", 10),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		API: APIConfig{
			Addr:        getenv("API_ADDR", ":8080"),
			JWTSecret:   os.Getenv("API_JWT_SECRET"),
			CORSOrigins: getenvList("API_CORS_ORIGINS", []string{"*"}),
		},
		Enricher: EnricherConfig{
			ReferencePath: getenv("REFERENCE_PATH", "configs/cmdb.yaml"),
		},
		Export: ExportConfig{
			Interval:  getenvDuration("EXPORT_INTERVAL", 5*time.Minute),
			BatchSize: getenvInt("EXPORT_BATCH_SIZE", 10000),
			SettleLag: getenvDuration("EXPORT_SETTLE_LAG", time.Minute),
			DataDir:   getenv("DATA_DIR", "data"),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
	}
}

// GroupID - 단계별 consumer group 이름
func (b BrokerConfig) GroupID(stage string) string {
	if b.GroupPrefix == "" {
		return stage
	}
	return b.GroupPrefix + "-" + stage
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

// getenvDuration - "5m" 같은 duration 문자열 또는 초 단위 정수
func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
