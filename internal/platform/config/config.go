package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	Environment       string
	LogLevel          string
	AdminAPIToken     string
	TrustProxyHeaders bool
	TrustedProxies    string
	MaxBodyBytes      int64
	ShutdownTimeout   time.Duration

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Dedup     DedupConfig
	Webhooks  WebhookConfig
}

// RedisConfig configures the optional shared rate limit store. An empty URL
// keeps every limiter in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

type RateLimitConfig struct {
	// LimitsFile is an optional YAML or JSON file overriding limit windows.
	LimitsFile      string
	CleanupInterval time.Duration
}

type DedupConfig struct {
	WaitTimeout    time.Duration
	MaxAge         time.Duration
	SweepInterval  time.Duration
	RequestTimeout time.Duration
	Retries        uint
	RetryDelay     time.Duration
}

type WebhookConfig struct {
	ContactURL    string
	NewsletterURL string
	AuthToken     string
}

// Defaults for values not set in the environment.
const (
	DefaultAddr            = ":8080"
	DefaultMaxBodyBytes    = 64 << 10
	DefaultCleanupInterval = time.Minute
	DefaultDedupWait       = 30 * time.Second
	DefaultDedupMaxAge     = 5 * time.Minute
	DefaultRequestTimeout  = 10 * time.Second
	DefaultRetryDelay      = 500 * time.Millisecond
)

// IsProduction reports whether the service runs with production settings.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present;
// real environment variables win over it.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	var p parser
	cfg := Server{
		Addr:              getEnv("HUDSON_ADDR", DefaultAddr),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AdminAPIToken:     os.Getenv("ADMIN_API_TOKEN"),
		TrustProxyHeaders: p.bool("TRUST_PROXY_HEADERS", false),
		TrustedProxies:    os.Getenv("TRUSTED_PROXIES"),
		MaxBodyBytes:      int64(p.int("MAX_BODY_BYTES", DefaultMaxBodyBytes)),
		ShutdownTimeout:   p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "hudson:"),
		},
		RateLimit: RateLimitConfig{
			LimitsFile:      os.Getenv("RATE_LIMITS_FILE"),
			CleanupInterval: p.duration("RATELIMIT_CLEANUP_INTERVAL", DefaultCleanupInterval),
		},
		Dedup: DedupConfig{
			WaitTimeout:    p.duration("DEDUP_WAIT_TIMEOUT", DefaultDedupWait),
			MaxAge:         p.duration("DEDUP_MAX_AGE", DefaultDedupMaxAge),
			SweepInterval:  p.duration("DEDUP_SWEEP_INTERVAL", time.Minute),
			RequestTimeout: p.duration("DEDUP_REQUEST_TIMEOUT", DefaultRequestTimeout),
			Retries:        uint(p.int("DEDUP_RETRIES", 2)),
			RetryDelay:     p.duration("DEDUP_RETRY_DELAY", DefaultRetryDelay),
		},
		Webhooks: WebhookConfig{
			ContactURL:    os.Getenv("CONTACT_WEBHOOK_URL"),
			NewsletterURL: os.Getenv("NEWSLETTER_WEBHOOK_URL"),
			AuthToken:     os.Getenv("WEBHOOK_AUTH_TOKEN"),
		},
	}
	if p.err != nil {
		return Server{}, p.err
	}
	if cfg.IsProduction() && cfg.AdminAPIToken != "" && len(cfg.AdminAPIToken) < 16 {
		return Server{}, fmt.Errorf("ADMIN_API_TOKEN must be at least 16 characters in production")
	}
	return cfg, nil
}

// parser records the first malformed variable so FromEnv reports one error
// instead of silently using a default for a typo.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
}

func (p *parser) int(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err == nil && v < 0 {
		err = fmt.Errorf("must not be negative")
	}
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err == nil && v <= 0 {
		err = fmt.Errorf("must be positive")
	}
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
