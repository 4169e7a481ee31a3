package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	SpacesBaseURL   string
	BookingsBaseURL string
	DarajaBaseURL   string
	StoreToken      string

	PGDSN     string
	RedisAddr string
	RabbitURL string
	MongoURI  string

	OTLPEndpoint string

	PaymentPollInterval time.Duration
	PaymentPollMax      int
	PaymentTimeout      time.Duration
	RetryBase           time.Duration
	RetryMax            int
	CommitRetryMax      int
	SpaceLockTTL        time.Duration
	ReconcileInterval   time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		SpacesBaseURL:   envOr("SPACES_BASE_URL", "http://127.0.0.1:5000"),
		BookingsBaseURL: envOr("BOOKINGS_BASE_URL", "http://127.0.0.1:5000"),
		DarajaBaseURL:   envOr("DARAJA_BASE_URL", "http://127.0.0.1:5000"),
		StoreToken:      os.Getenv("STORE_TOKEN"),
		PGDSN:           os.Getenv("PG_DSN"),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RabbitURL:       os.Getenv("RABBIT_URL"),
		MongoURI:        os.Getenv("MONGO_URI"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		PaymentPollInterval: durationOr("PAYMENT_POLL_INTERVAL", 3*time.Second),
		PaymentPollMax:      intOr("PAYMENT_POLL_MAX", 20),
		PaymentTimeout:      durationOr("PAYMENT_TIMEOUT", 2*time.Minute),
		RetryBase:           durationOr("RETRY_BASE", time.Second),
		RetryMax:            intOr("RETRY_MAX", 3),
		CommitRetryMax:      intOr("COMMIT_RETRY_MAX", 3),
		SpaceLockTTL:        durationOr("SPACE_LOCK_TTL", 5*time.Minute),
		ReconcileInterval:   durationOr("RECONCILE_INTERVAL", time.Minute),
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return def
	}
	return d
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
