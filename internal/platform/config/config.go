package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "linkforge/pkg/platform/strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	AdminToken  string
	DefaultPlan string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	Lifecycle LifecycleConfig
	Scheduler SchedulerConfig
	ACME      ACMEConfig
	RateLimit RateLimitConfig
}

// RateLimitConfig caps public API traffic per client IP. Limit 0 disables it.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// RedisConfig configures the serving-eligibility cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig configures the lifecycle event sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LifecycleConfig holds the timing policy of the domain state machine.
type LifecycleConfig struct {
	ReservationWindow      time.Duration
	MaxVerifyAttempts      int
	VerifyBackoffBase      time.Duration
	VerifyBackoffCap       time.Duration
	ReconfirmInterval      time.Duration
	SSLRenewalWindow       time.Duration
	DeleteRetentionWindow  time.Duration
	ProbeTimeout           time.Duration
	CertificateTimeout     time.Duration
	AutoSuspendCritical    bool
	RescoreInterval        time.Duration
}

// SchedulerConfig bounds the reconciliation loop.
type SchedulerConfig struct {
	TickInterval time.Duration
	Workers      int
	ScanLimit    int
}

// ACMEConfig configures the certificate provisioner.
type ACMEConfig struct {
	Email    string
	CacheDir string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envString("LINKFORGE_ADDR", ":8080"),
		AdminToken:  envString("LINKFORGE_ADMIN_TOKEN", "dev-admin-token-change-in-production"),
		DefaultPlan: envString("LINKFORGE_DEFAULT_PLAN", "free"),
		PostgresURL: os.Getenv("LINKFORGE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("LINKFORGE_REDIS_URL"),
			PoolSize:     envInt("LINKFORGE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("LINKFORGE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("LINKFORGE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("LINKFORGE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("LINKFORGE_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("LINKFORGE_ELIGIBILITY_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.DedupeAndTrim(strings.Split(os.Getenv("LINKFORGE_KAFKA_BROKERS"), ",")),
			Topic:   envString("LINKFORGE_KAFKA_TOPIC", "domain-lifecycle-events"),
		},
		Lifecycle: LifecycleConfig{
			ReservationWindow:     envDuration("LINKFORGE_RESERVATION_WINDOW", 24*time.Hour),
			MaxVerifyAttempts:     envInt("LINKFORGE_MAX_VERIFY_ATTEMPTS", 5),
			VerifyBackoffBase:     envDuration("LINKFORGE_VERIFY_BACKOFF_BASE", 2*time.Minute),
			VerifyBackoffCap:      envDuration("LINKFORGE_VERIFY_BACKOFF_CAP", time.Hour),
			ReconfirmInterval:     envDuration("LINKFORGE_RECONFIRM_INTERVAL", 24*time.Hour),
			SSLRenewalWindow:      envDuration("LINKFORGE_SSL_RENEWAL_WINDOW", 30*24*time.Hour),
			DeleteRetentionWindow: envDuration("LINKFORGE_DELETE_RETENTION_WINDOW", 30*24*time.Hour),
			ProbeTimeout:          envDuration("LINKFORGE_PROBE_TIMEOUT", 5*time.Second),
			CertificateTimeout:    envDuration("LINKFORGE_CERTIFICATE_TIMEOUT", 30*time.Second),
			AutoSuspendCritical:   os.Getenv("LINKFORGE_AUTO_SUSPEND_CRITICAL") == "true",
			RescoreInterval:       envDuration("LINKFORGE_RESCORE_INTERVAL", 6*time.Hour),
		},
		Scheduler: SchedulerConfig{
			TickInterval: envDuration("LINKFORGE_SCHEDULER_TICK", time.Minute),
			Workers:      envInt("LINKFORGE_SCHEDULER_WORKERS", 8),
			ScanLimit:    envInt("LINKFORGE_SCHEDULER_SCAN_LIMIT", 500),
		},
		RateLimit: RateLimitConfig{
			Limit:  envInt("LINKFORGE_RATE_LIMIT", 120),
			Window: envDuration("LINKFORGE_RATE_LIMIT_WINDOW", time.Minute),
		},
		ACME: ACMEConfig{
			Email:    os.Getenv("LINKFORGE_ACME_EMAIL"),
			CacheDir: envString("LINKFORGE_ACME_CACHE_DIR", "/var/lib/linkforge/certs"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
