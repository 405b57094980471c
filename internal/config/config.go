package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Profile backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

const redacted = "***REDACTED***"

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline (ex: 5s)
	MaxBodyBytes    int64         // JSON request body cap

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Profile storage
	Backend           string        // memory | sqlite | postgres | supabase
	DatabaseDSN       string        // sqlite file DSN or postgres URL
	DBMaxOpenConns    int           // 0 = driver default
	DBMaxIdleConns    int           // 0 = driver default
	DBConnMaxLifetime time.Duration // 0 = forever
	AutoMigrate       bool          // apply the SQL schema on startup
	SupabaseURL       string        // ex: https://xyz.supabase.co
	SupabaseKey       string        // anon or service key sent as apikey

	// Sessions
	SessionSecret        string        // HS256 shared secret
	SessionPublicKeyFile string        // RS256 PEM public key, takes precedence over the secret
	SessionIssuer        string        // optional "iss" requirement
	SessionAudience      string        // optional "aud" requirement
	SessionLeeway        time.Duration // clock skew tolerance

	// Redis profile cache (disabled when RedisAddr is empty)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	CacheTTL            time.Duration // lifetime of a cached profile row

	// Seed import (disabled when SeedFile is empty)
	SeedFile           string        // path to a profiles YAML file
	SeedReloadInterval time.Duration // 0 = import on startup and on POST /reload only

	// Access
	AllowedOrigins []string // CORS origins for browser clients
	AllowedHosts   []string // optional, restrict ops endpoints to specific Host headers
	AllowedCIDRS   []string // optional, restrict ops endpoints to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CreateBurst    int      // profile creations allowed at once per caller
	CreatePerMin   int      // profile creation refill per caller per minute
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

// Load reads the LINKHUB_ environment. It panics on missing or contradictory settings.
func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKHUB_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKHUB_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("LINKHUB_REQUEST_TIMEOUT", 5*time.Second),
		MaxBodyBytes:    int64(getenvInt("LINKHUB_MAX_BODY_BYTES", 64<<10)),

		// Logging
		LogLevel:  getenv("LINKHUB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKHUB_PRETTY_LOG", true),

		// Storage
		Backend:           strings.ToLower(getenv("LINKHUB_BACKEND", BackendMemory)),
		DatabaseDSN:       getenv("LINKHUB_DATABASE_DSN", ""),
		DBMaxOpenConns:    getenvInt("LINKHUB_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getenvInt("LINKHUB_DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: mustDuration("LINKHUB_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:       mustBool("LINKHUB_AUTO_MIGRATE", true),
		SupabaseURL:       getenv("LINKHUB_SUPABASE_URL", ""),
		SupabaseKey:       getenv("LINKHUB_SUPABASE_KEY", ""),

		// Sessions
		SessionSecret:        getenv("LINKHUB_SESSION_SECRET", ""),
		SessionPublicKeyFile: getenv("LINKHUB_SESSION_PUBLIC_KEY_FILE", ""),
		SessionIssuer:        getenv("LINKHUB_SESSION_ISSUER", ""),
		SessionAudience:      getenv("LINKHUB_SESSION_AUDIENCE", ""),
		SessionLeeway:        mustDuration("LINKHUB_SESSION_LEEWAY", 30*time.Second),

		// Redis settings
		RedisAddr:           getenv("LINKHUB_REDIS_ADDR", ""),
		RedisUser:           getenv("LINKHUB_REDIS_USERNAME", ""),
		RedisPassword:       getenv("LINKHUB_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("LINKHUB_REDIS_DB", 0),
		RedisDT:             mustDuration("LINKHUB_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("LINKHUB_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("LINKHUB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("LINKHUB_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("LINKHUB_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("LINKHUB_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("LINKHUB_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("LINKHUB_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("LINKHUB_REDIS_WARN_THRESHOLD", 3),
		CacheTTL:            mustDuration("LINKHUB_CACHE_TTL", 10*time.Minute),

		// Seed
		SeedFile:           getenv("LINKHUB_SEED_FILE", ""),
		SeedReloadInterval: mustDuration("LINKHUB_SEED_RELOAD_INTERVAL", 0),

		// Access restrictions
		AllowedOrigins: splitAndTrim(getenv("LINKHUB_ALLOWED_ORIGINS", "")),
		AllowedHosts:   splitAndTrim(getenv("LINKHUB_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(getenv("LINKHUB_ALLOWED_CIDRS", "")),
		TrustProxy:     mustBool("LINKHUB_TRUST_PROXY", false),
		CreateBurst:    getenvInt("LINKHUB_CREATE_BURST", 3),
		CreatePerMin:   getenvInt("LINKHUB_CREATE_PER_MIN", 6),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite, BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("LINKHUB_DATABASE_DSN is required when LINKHUB_BACKEND=%s", c.Backend)
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("LINKHUB_SUPABASE_URL and LINKHUB_SUPABASE_KEY are required when LINKHUB_BACKEND=%s", c.Backend)
		}
	default:
		return fmt.Errorf("unknown LINKHUB_BACKEND %q (want memory, sqlite, postgres or supabase)", c.Backend)
	}

	if c.SessionSecret == "" && c.SessionPublicKeyFile == "" {
		return fmt.Errorf("one of LINKHUB_SESSION_SECRET or LINKHUB_SESSION_PUBLIC_KEY_FILE must be set")
	}
	if c.CacheEnabled() && c.CacheTTL <= 0 {
		return fmt.Errorf("LINKHUB_CACHE_TTL must be > 0, got %v", c.CacheTTL)
	}
	if c.SeedReloadInterval < 0 {
		return fmt.Errorf("LINKHUB_SEED_RELOAD_INTERVAL must be >= 0, got %v", c.SeedReloadInterval)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.SessionSecret, &cp.RedisPassword, &cp.SupabaseKey, &cp.RedisUser} {
		if *s != "" {
			*s = redacted
		}
	}
	if cp.DatabaseDSN != "" && cp.Backend == BackendPostgres {
		cp.DatabaseDSN = redacted
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
