package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Relay backends selectable with TESLAHUB_RELAY_BACKEND.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile   string // optional rotating JSON log file

	PublicURL      string        // base of the QR links (ex: https://teslahub.example.com)
	DefaultsFile   string        // path to the default bookmark set
	ReloadInterval time.Duration // interval to reload the default set (default: 24h)
	SessionTimeout time.Duration // how long a tab waits for a phone (default: 5m)
	SweepInterval  time.Duration // interval of the relay session sweep (default: 1h)
	SweepHorizon   time.Duration // age after which a relay session is swept (default: 1h)
	RelayBackend   string        // "redis" | "memory"
	RedirectURL    string        // external redirect used to leave the in-car browser chrome

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedOrigins []string // CORS origins allowed to call the API (empty = same origin only)
	AllowedHosts   []string // optional, restrict admin endpoints to specific Host headers
	AllowedCIDRS   []string // optional, restrict admin endpoints to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	SubmitBurst    int      // phone submissions allowed in a burst per client
	SubmitPerMin   int      // phone submissions refilled per minute per client
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Invalid settings panic.
func Load() *Config {
	// Missing .env is fine; real environment variables always win.
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TESLAHUB_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TESLAHUB_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("TESLAHUB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TESLAHUB_PRETTY_LOG", true),
		LogFile:   getenv("TESLAHUB_LOG_FILE", ""),

		// Relay and defaults
		PublicURL:      strings.TrimRight(requireEnv("TESLAHUB_PUBLIC_URL"), "/"),
		DefaultsFile:   getenv("TESLAHUB_DEFAULTS_FILE", "/app/defaults.json"),
		ReloadInterval: mustDuration("TESLAHUB_RELOAD_INTERVAL", 24*time.Hour),
		SessionTimeout: mustDuration("TESLAHUB_SESSION_TIMEOUT", 5*time.Minute),
		SweepInterval:  mustDuration("TESLAHUB_SWEEP_INTERVAL", time.Hour),
		SweepHorizon:   mustDuration("TESLAHUB_SWEEP_HORIZON", time.Hour),
		RelayBackend:   strings.ToLower(getenv("TESLAHUB_RELAY_BACKEND", BackendRedis)),
		RedirectURL:    getenv("TESLAHUB_REDIRECT_URL", "https://www.youtube.com/redirect?q="),

		// Redis settings
		RedisAddr:             getenv("TESLAHUB_REDIS_ADDR", ""),
		RedisUser:             getenv("TESLAHUB_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("TESLAHUB_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("TESLAHUB_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("TESLAHUB_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedOrigins: splitAndTrim(getenv("TESLAHUB_ALLOWED_ORIGINS", "")),
		AllowedHosts:   splitAndTrim(getenv("TESLAHUB_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(getenv("TESLAHUB_ALLOWED_CIDRS", "")),
		TrustProxy:     mustBool("TESLAHUB_TRUST_PROXY", true),
		SubmitBurst:    getenvInt("TESLAHUB_SUBMIT_BURST", 5),
		SubmitPerMin:   getenvInt("TESLAHUB_SUBMIT_PER_MIN", 10),
	}

	cfg.validate()

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (cfg *Config) validate() {
	switch cfg.RelayBackend {
	case BackendRedis:
		if cfg.RedisAddr == "" {
			panic("❌ FATAL: TESLAHUB_REDIS_ADDR is required when TESLAHUB_RELAY_BACKEND=redis")
		}
		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: TESLAHUB_REDIS_PASSWORD is required when TESLAHUB_REDIS_PASSWORD_REQUIRED=true")
		}
	case BackendMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: Invalid TESLAHUB_RELAY_BACKEND %q (want redis or memory)", cfg.RelayBackend))
	}

	if !strings.HasPrefix(cfg.PublicURL, "http://") && !strings.HasPrefix(cfg.PublicURL, "https://") {
		panic(fmt.Sprintf("❌ FATAL: TESLAHUB_PUBLIC_URL must be an absolute http(s) URL, got %q", cfg.PublicURL))
	}
	if cfg.SessionTimeout <= 0 {
		panic("❌ FATAL: TESLAHUB_SESSION_TIMEOUT must be positive")
	}
	if cfg.SubmitBurst <= 0 || cfg.SubmitPerMin <= 0 {
		panic("❌ FATAL: TESLAHUB_SUBMIT_BURST and TESLAHUB_SUBMIT_PER_MIN must be positive")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
