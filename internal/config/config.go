package config

import (
	"os"
	"strconv"
	"time"

	"payment-router/internal/constants"
)

type ProcessorsConfig struct {
	BaseURL    string
	PaymentURL string
	HealthURL  string
}

type Config struct {
	Port     string
	RedisURL string
	Urls     map[constants.PaymentMode]*ProcessorsConfig

	RequestTimeout time.Duration
	HealthTimeout  time.Duration
	HealthTTL      time.Duration

	BreakerThreshold int
	BreakerCooldown  time.Duration

	MaxRetries       int
	RetryBackoffSeed time.Duration

	MaxQueueSize           int
	QueueMaxRetries        int
	QueueBatchSize         int
	QueueInitialDelay      time.Duration
	QueueBackoffMultiplier float64
	QueueMaxDelay          time.Duration
	QueueIdleThreshold     time.Duration
	QueueBusyInterval      time.Duration
	QueueQuietInterval     time.Duration
	QueueIdleInterval      time.Duration
}

func Load() *Config {
	defaultURL := getEnv("DEFAULT_PROCESSOR_URL", "http://localhost:8001")
	fallbackURL := getEnv("FALLBACK_PROCESSOR_URL", "http://localhost:8002")

	return &Config{
		Port:     getEnv("PORT", "8080"),
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),
		Urls: map[constants.PaymentMode]*ProcessorsConfig{
			constants.DefaultProcessorKey:  ProcessorURLs(defaultURL),
			constants.FallbackProcessorKey: ProcessorURLs(fallbackURL),
		},

		RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "5s"), 5*time.Second),
		HealthTimeout:  parseDuration(getEnv("HEALTH_TIMEOUT", "2s"), 2*time.Second),
		HealthTTL:      parseDuration(getEnv("HEALTH_TTL", "5s"), 5*time.Second),

		BreakerThreshold: parseInt(getEnv("BREAKER_THRESHOLD", "20"), 20),
		BreakerCooldown:  parseDuration(getEnv("BREAKER_COOLDOWN", "10s"), 10*time.Second),

		MaxRetries:       parseInt(getEnv("MAX_RETRIES", "2"), 2),
		RetryBackoffSeed: parseDuration(getEnv("RETRY_BACKOFF_SEED", "1s"), time.Second),

		MaxQueueSize:           parseInt(getEnv("QUEUE_MAX_SIZE", "5000"), 5000),
		QueueMaxRetries:        parseInt(getEnv("QUEUE_MAX_RETRIES", "3"), 3),
		QueueBatchSize:         parseInt(getEnv("QUEUE_BATCH_SIZE", "10"), 10),
		QueueInitialDelay:      parseDuration(getEnv("QUEUE_INITIAL_DELAY", "1s"), time.Second),
		QueueBackoffMultiplier: parseFloat(getEnv("QUEUE_BACKOFF_MULTIPLIER", "2.0"), 2.0),
		QueueMaxDelay:          parseDuration(getEnv("QUEUE_MAX_DELAY", "30s"), 30*time.Second),
		QueueIdleThreshold:     parseDuration(getEnv("QUEUE_IDLE_THRESHOLD", "30s"), 30*time.Second),
		QueueBusyInterval:      parseDuration(getEnv("QUEUE_BUSY_INTERVAL", "100ms"), 100*time.Millisecond),
		QueueQuietInterval:     parseDuration(getEnv("QUEUE_QUIET_INTERVAL", "500ms"), 500*time.Millisecond),
		QueueIdleInterval:      parseDuration(getEnv("QUEUE_IDLE_INTERVAL", "2s"), 2*time.Second),
	}
}

// ProcessorURLs derives the payment and health endpoints from a processor base URL.
func ProcessorURLs(baseURL string) *ProcessorsConfig {
	return &ProcessorsConfig{
		BaseURL:    baseURL,
		PaymentURL: baseURL + "/payments",
		HealthURL:  baseURL + "/payments/service-health",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return duration
}

func parseInt(s string, defaultValue int) int {
	value, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseFloat(s string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
