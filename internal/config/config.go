package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	QR       QRConfig
	Order    OrderConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderCreated   string
	OrderUpdated   string
	OrderCancelled string
	OrderVerified  string
}

type EmailConfig struct {
	SMTPHost  string
	SMTPPort  string
	Username  string
	Password  string
	From      string
	AdminAddr string
	Timeout   time.Duration
}

type QRConfig struct {
	// Dir holds rendered credential images; BaseURL prefixes the
	// verification URL embedded in each code.
	Dir           string
	BaseURL       string
	RetentionDays int
	SweepInterval time.Duration
}

type OrderConfig struct {
	// RequireActivityDescription makes the activity description mandatory
	// when participation is YES and activities were selected.
	RequireActivityDescription bool
}

type AuthConfig struct {
	JWTSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				OrderCreated:   getEnv("KAFKA_TOPIC_ORDER_CREATED", "ouw.orders.created"),
				OrderUpdated:   getEnv("KAFKA_TOPIC_ORDER_UPDATED", "ouw.orders.updated"),
				OrderCancelled: getEnv("KAFKA_TOPIC_ORDER_CANCELLED", "ouw.orders.cancelled"),
				OrderVerified:  getEnv("KAFKA_TOPIC_ORDER_VERIFIED", "ouw.orders.verified"),
			},
		},
		Email: EmailConfig{
			SMTPHost:  getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:  getEnv("SMTP_PORT", "587"),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			From:      getEnv("SMTP_FROM", "tickets@ouw.events"),
			AdminAddr: getEnv("ADMIN_EMAIL", "admin@ouw.events"),
			Timeout:   time.Duration(getEnvInt("SMTP_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		QR: QRConfig{
			Dir:           getEnv("QR_CODE_DIR", "qrcodes"),
			BaseURL:       getEnv("QR_CODE_BASE_URL", "http://localhost:8084"),
			RetentionDays: getEnvInt("QR_RETENTION_DAYS", 30),
			SweepInterval: time.Duration(getEnvInt("QR_SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		Order: OrderConfig{
			RequireActivityDescription: getEnvBool("ORDER_REQUIRE_ACTIVITY_DESC", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
