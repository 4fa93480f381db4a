package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string
	RabbitMQURL string

	JWTSecret  string
	CronSecret string

	// Payment gateway (HMAC verification oracle)
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string
	GatewayForceSuccess  bool
	GatewayLiveMode      bool

	ReservationTTL        time.Duration
	ReservationSweepEvery time.Duration
	PaymentSessionTTL     time.Duration
	DefaultTimezone       string
	OpportunisticCleanup  bool

	RabbitMQWorkerMode   string
	CorsAllowedOrigins   []string
	WSHeartbeatInterval  time.Duration
	WSStatusPollInterval time.Duration
}

func Load() Config {
	cfg := Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8084"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		CronSecret: getEnv("CRON_SECRET", ""),

		GatewayKeyID:         getEnv("PAYMENT_KEY_ID", ""),
		GatewayKeySecret:     getEnv("PAYMENT_KEY_SECRET", ""),
		GatewayWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		GatewayForceSuccess:  getEnvBool("PAYMENT_FORCE_SUCCESS", false),
		GatewayLiveMode:      getEnvBool("PAYMENT_LIVE_MODE", true),

		ReservationTTL:        getEnvDuration("RESERVATION_TTL", 15*time.Minute),
		ReservationSweepEvery: getEnvDuration("RESERVATION_SWEEP_INTERVAL", time.Minute),
		PaymentSessionTTL:     getEnvDuration("PAYMENT_SESSION_TTL", 15*time.Minute),
		DefaultTimezone:       getEnv("DEFAULT_TIMEZONE", "UTC"),
		OpportunisticCleanup:  getEnvBool("OPPORTUNISTIC_CLEANUP", true),

		RabbitMQWorkerMode:   getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval:  getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		WSStatusPollInterval: getEnvDuration("WS_STATUS_POLL_INTERVAL", time.Second),
	}

	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 15 * time.Minute
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
