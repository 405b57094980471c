package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LINKHUB_SESSION_SECRET", "s3cret")

	cfg := Load()
	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendMemory)
	}
	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.CacheEnabled() {
		t.Error("cache should be disabled without LINKHUB_REDIS_ADDR")
	}
	if cfg.SeedFile != "" || cfg.SeedReloadInterval != 0 {
		t.Errorf("seed should be disabled, got %q every %v", cfg.SeedFile, cfg.SeedReloadInterval)
	}
	if cfg.CreateBurst != 3 || cfg.CreatePerMin != 6 {
		t.Errorf("create limit = %d/%d, want 3/6", cfg.CreateBurst, cfg.CreatePerMin)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LINKHUB_SESSION_PUBLIC_KEY_FILE", "/keys/session.pem")
	t.Setenv("LINKHUB_BACKEND", "SQLite")
	t.Setenv("LINKHUB_DATABASE_DSN", "file:/data/linkhub.db")
	t.Setenv("LINKHUB_REDIS_ADDR", "redis:6379")
	t.Setenv("LINKHUB_CACHE_TTL", "1m")
	t.Setenv("LINKHUB_ALLOWED_ORIGINS", `"https://a.example", https://b.example`)
	t.Setenv("LINKHUB_ALLOWED_CIDRS", "10.0.0.0/8, 127.0.0.1")
	t.Setenv("LINKHUB_SEED_FILE", "/seed/profiles.yaml")
	t.Setenv("LINKHUB_SEED_RELOAD_INTERVAL", "1h")

	cfg := Load()
	if cfg.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if !cfg.CacheEnabled() || cfg.CacheTTL != time.Minute {
		t.Errorf("cache = %v ttl %v, want enabled 1m", cfg.CacheEnabled(), cfg.CacheTTL)
	}
	if got := strings.Join(cfg.AllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("AllowedOrigins = %q", got)
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v, want 2 entries", cfg.AllowedCIDRS)
	}
	if cfg.SeedReloadInterval != time.Hour {
		t.Errorf("SeedReloadInterval = %v, want 1h", cfg.SeedReloadInterval)
	}
}

func TestLoadPanicsOnBadConfig(t *testing.T) {
	t.Setenv("LINKHUB_SESSION_SECRET", "")
	t.Setenv("LINKHUB_SESSION_PUBLIC_KEY_FILE", "")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Load() should have panicked without session keys")
		}
		if !strings.Contains(r.(string), "LINKHUB_SESSION_SECRET") {
			t.Errorf("panic = %v, want mention of LINKHUB_SESSION_SECRET", r)
		}
	}()
	Load()
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Backend: BackendMemory, SessionSecret: "x", CacheTTL: time.Minute}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "memory ok", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "mongo" }, wantErr: "unknown LINKHUB_BACKEND"},
		{name: "sqlite without dsn", mutate: func(c *Config) { c.Backend = BackendSQLite }, wantErr: "LINKHUB_DATABASE_DSN"},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Backend = BackendPostgres
			c.DatabaseDSN = "postgres://localhost/linkhub"
		}},
		{name: "supabase without key", mutate: func(c *Config) {
			c.Backend = BackendSupabase
			c.SupabaseURL = "https://x.supabase.co"
		}, wantErr: "LINKHUB_SUPABASE_KEY"},
		{name: "no session keys", mutate: func(c *Config) { c.SessionSecret = "" }, wantErr: "LINKHUB_SESSION_SECRET"},
		{name: "public key only", mutate: func(c *Config) {
			c.SessionSecret = ""
			c.SessionPublicKeyFile = "/k.pem"
		}},
		{name: "cache without ttl", mutate: func(c *Config) {
			c.RedisAddr = "localhost:6379"
			c.CacheTTL = 0
		}, wantErr: "LINKHUB_CACHE_TTL"},
		{name: "negative seed interval", mutate: func(c *Config) { c.SeedReloadInterval = -time.Second }, wantErr: "LINKHUB_SEED_RELOAD_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("validate() = %v, want nil", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		Backend:       BackendPostgres,
		DatabaseDSN:   "postgres://u:p@db/linkhub",
		SessionSecret: "s",
		RedisPassword: "p",
		SupabaseKey:   "k",
	}
	r := cfg.Redacted()
	for name, got := range map[string]string{
		"DatabaseDSN":   r.DatabaseDSN,
		"SessionSecret": r.SessionSecret,
		"RedisPassword": r.RedisPassword,
		"SupabaseKey":   r.SupabaseKey,
	} {
		if got != redacted {
			t.Errorf("%s = %q, want redacted", name, got)
		}
	}
	if r.RedisUser != "" {
		t.Errorf("empty RedisUser should stay empty, got %q", r.RedisUser)
	}
	if cfg.SessionSecret != "s" {
		t.Error("Redacted() must not modify the receiver")
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , 'b',\"c\" ,, ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}
			if result := mustDuration(tt.key, tt.def); result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", key: "TEST_BOOL", value: "true", def: false, expected: true},
		{name: "false value", key: "TEST_BOOL_FALSE", value: "false", def: true, expected: false},
		{name: "invalid value uses default", key: "TEST_BOOL_INVALID", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", key: "TEST_BOOL_MISSING", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}
			if result := mustBool(tt.key, tt.def); result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
