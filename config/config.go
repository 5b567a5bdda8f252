package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	WebhookPolicyLastWriteWins = "last_write_wins"
	WebhookPolicyRejectStale   = "reject_stale"
)

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	GRPC     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Payments PaymentsConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type HTTPConfig struct {
	ServerConfig
	AllowedOrigins []string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type GatewayConfig struct {
	URL         string
	APIKey      string
	PGKey       string
	SchoolID    string
	HTTPTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type PaymentsConfig struct {
	WebhookOrderingPolicy string
	MaxListLimit          int
	StaleSubmissionAfter  time.Duration
	JobBatchSize          int32
}

type JobsConfig struct {
	SweepStaleInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET_KEY")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET_KEY environment variable is required")
	}

	gateway := GatewayConfig{
		URL:         getEnv("GATEWAY_URL", ""),
		APIKey:      getEnv("PAYMENT_API_KEY", ""),
		PGKey:       getEnv("PG_KEY", ""),
		SchoolID:    getEnv("SCHOOL_ID", ""),
		HTTPTimeout: getSecondsEnv("GATEWAY_HTTP_TIMEOUT_SECONDS", 30*time.Second),
	}
	if gateway.URL == "" || gateway.APIKey == "" || gateway.PGKey == "" || gateway.SchoolID == "" {
		return nil, errors.New("GATEWAY_URL, PAYMENT_API_KEY, PG_KEY and SCHOOL_ID environment variables are required")
	}

	policy := strings.ToLower(getEnv("WEBHOOK_ORDERING_POLICY", WebhookPolicyLastWriteWins))
	if policy != WebhookPolicyLastWriteWins && policy != WebhookPolicyRejectStale {
		return nil, fmt.Errorf("WEBHOOK_ORDERING_POLICY must be %s or %s", WebhookPolicyLastWriteWins, WebhookPolicyRejectStale)
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "school-payments-service"),
		},
		HTTP: HTTPConfig{
			ServerConfig: ServerConfig{
				Host: getEnv("HTTP_HOST", "0.0.0.0"),
				Port: getEnv("HTTP_PORT", "5000"),
			},
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
			TokenTTL:  getMinutesEnv("JWT_TTL_MINUTES", time.Hour),
		},
		Gateway: gateway,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			LockTTL:  getSecondsEnv("CREATE_PAYMENT_LOCK_TTL_SECONDS", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:      getListEnv("KAFKA_BROKERS", nil),
			Topic:        getEnv("KAFKA_TOPIC", "payment-status"),
			WriteTimeout: getSecondsEnv("KAFKA_WRITE_TIMEOUT_SECONDS", 5*time.Second),
		},
		Payments: PaymentsConfig{
			WebhookOrderingPolicy: policy,
			MaxListLimit:          getIntEnv("TRANSACTIONS_MAX_LIMIT", 500),
			StaleSubmissionAfter:  getMinutesEnv("ORDERS_STALE_SUBMISSION_MINUTES", 15*time.Minute),
			JobBatchSize:          int32(getIntEnv("ORDERS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			SweepStaleInterval: getMinutesEnv("ORDERS_SWEEP_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
