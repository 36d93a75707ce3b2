package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Settings struct {
	ServerPort           string
	PrimaryProcessorURL  string
	FallbackProcessorURL string

	WorkerCount   int
	BatchSize     int
	QueueCapacity int
	IdleSleep     time.Duration

	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	HealthCacheTTL     time.Duration
	HealthProbeTimeout time.Duration
	SendTimeout        time.Duration

	RedisAddr          string
	InstanceID         string
	SharedStateEnabled bool
	SyncInterval       time.Duration
	SnapshotTTL        time.Duration
}

// Load reads settings from the environment, after pulling in a .env file when
// one is present.
func Load() *Settings {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	hostname, _ := os.Hostname()

	return &Settings{
		ServerPort:           getString("PORT", "9999"),
		PrimaryProcessorURL:  getString("PAYMENT_PROCESSOR_URL_DEFAULT", "http://localhost:8001"),
		FallbackProcessorURL: getString("PAYMENT_PROCESSOR_URL_FALLBACK", "http://localhost:8002"),

		WorkerCount:   getInt("WORKERS", 8),
		BatchSize:     getInt("BATCH_SIZE", 25),
		QueueCapacity: getInt("QUEUE_CAPACITY", 50000),
		IdleSleep:     getDuration("IDLE_SLEEP", 2*time.Millisecond),

		MaxAttempts:    getInt("MAX_ATTEMPTS", 8),
		RetryBaseDelay: getDuration("RETRY_BASE_DELAY", time.Millisecond),
		RetryMaxDelay:  getDuration("RETRY_MAX_DELAY", 200*time.Millisecond),

		HealthCacheTTL:     getDuration("HEALTH_CACHE_TTL", 5*time.Second),
		HealthProbeTimeout: getDuration("HEALTH_PROBE_TIMEOUT", time.Second),
		SendTimeout:        getDuration("SEND_TIMEOUT", 3*time.Second),

		RedisAddr:          getString("REDIS_ADDR", "localhost:6379"),
		InstanceID:         getString("INSTANCE_ID", hostname),
		SharedStateEnabled: getBool("SHARED_STATE_ENABLED", false),
		SyncInterval:       getDuration("SYNC_INTERVAL", 100*time.Millisecond),
		SnapshotTTL:        getDuration("SNAPSHOT_TTL", 5*time.Second),
	}
}

func getString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
