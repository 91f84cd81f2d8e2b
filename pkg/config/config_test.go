package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8000 {
		t.Errorf("default server.port = %d, want 8000", cfg.Server.Port)
	}
	if !cfg.Server.Multiplex {
		t.Error("default server.multiplex = false, want true")
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("default server.request_timeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxBodySize != 10<<20 {
		t.Errorf("default server.max_body_size = %d", cfg.Server.MaxBodySize)
	}
	if cfg.Cache.Backend != "none" || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("default cache = %+v", cfg.Cache)
	}
	if strings.Join(cfg.Middleware, ",") != strings.Join(DefaultMiddleware, ",") {
		t.Errorf("default middleware = %v", cfg.Middleware)
	}
	if cfg.Auth.Type != "none" || cfg.Audit.Type != "none" {
		t.Errorf("default auth/audit = %q/%q, want none/none", cfg.Auth.Type, cfg.Audit.Type)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("default metrics = %+v", cfg.Observability.Metrics)
	}
	if cfg.MCP.Enabled || cfg.MCP.Path != "/mcp" {
		t.Errorf("default mcp = %+v", cfg.MCP)
	}

	// Defaults must not share the middleware slice.
	cfg.Middleware[0] = "changed"
	if DefaultMiddleware[0] == "changed" {
		t.Error("Defaults() aliases DefaultMiddleware")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
server:
  port: 9090
  binary_port: 9091
  multiplex: false
  workers: 4
  request_timeout: 2s
estimator:
  backend_url: http://localhost:5000
  timeout: 5s
cache:
  backend: ristretto
  ttl: 1m
  max_cost: 500
middleware: [recovery, auth, timeout]
trusted_clients: ["127.0.0.1", "::1"]
auth:
  type: basic
  users:
    alice:
      password: wonderland
      service_tier: gold
rate_limit:
  requests_per_second: 10
  burst: 20
  tiers:
    gold:
      requests_per_second: 100
audit:
  type: sqlite
  sqlite:
    path: /tmp/audit.db
logging:
  level: debug
  format: json
  debug: bus,cache
mcp:
  enabled: true
`)
	t.Setenv("MODELSERVE_CONFIG", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.BinaryPort != 9091 || cfg.Server.Multiplex || cfg.Server.Workers != 4 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 2*time.Second {
		t.Errorf("server.request_timeout = %v", cfg.Server.RequestTimeout)
	}
	// Absent from the file, keeps its default.
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("server.shutdown_timeout = %v, want default", cfg.Server.ShutdownTimeout)
	}
	if cfg.Estimator.BackendURL != "http://localhost:5000" || cfg.Estimator.Timeout != 5*time.Second {
		t.Errorf("estimator = %+v", cfg.Estimator)
	}
	if cfg.Cache.Backend != "ristretto" || cfg.Cache.TTL != time.Minute || cfg.Cache.MaxCost != 500 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if strings.Join(cfg.Middleware, ",") != "recovery,auth,timeout" {
		t.Errorf("middleware = %v", cfg.Middleware)
	}
	if len(cfg.TrustedClients) != 2 {
		t.Errorf("trusted_clients = %v", cfg.TrustedClients)
	}
	if u := cfg.Auth.Users["alice"]; u.Password != "wonderland" || u.ServiceTier != "gold" {
		t.Errorf("auth.users.alice = %+v", u)
	}
	if cfg.RateLimit.RequestsPerSecond != 10 || cfg.RateLimit.Tiers["gold"].RequestsPerSecond != 100 {
		t.Errorf("rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Audit.Type != "sqlite" || cfg.Audit.SQLite.Path != "/tmp/audit.db" {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Debug != "bus,cache" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.MCP.Enabled || cfg.MCP.Path != "/mcp" {
		t.Errorf("mcp = %+v", cfg.MCP)
	}
}

func TestLoadFromTOML(t *testing.T) {
	path := writeTemp(t, "config-*.toml", `
middleware = ["recovery", "logging"]

[server]
port = 7000
request_timeout = "1500ms"

[estimator]
backend_url = "http://toml-backend:5000"

[cache]
backend = "redis"

[cache.redis]
addr = "localhost:6379"
db = 2

[auth]
type = "token"
token = "s3cret"
`)
	t.Setenv("MODELSERVE_CONFIG", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Server.RequestTimeout != 1500*time.Millisecond {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Estimator.BackendURL != "http://toml-backend:5000" {
		t.Errorf("estimator.backend_url = %q", cfg.Estimator.BackendURL)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "localhost:6379" || cfg.Cache.Redis.DB != 2 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Auth.Type != "token" || cfg.Auth.Token != "s3cret" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if len(cfg.Middleware) != 2 {
		t.Errorf("middleware = %v", cfg.Middleware)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
server:
  port: 9090
estimator:
  backend_url: http://from-file:5000
`)
	t.Setenv("MODELSERVE_CONFIG", "")
	t.Setenv("MODELSERVE_SERVER_PORT", "7070")
	t.Setenv("MODELSERVE_ESTIMATOR_BACKEND_URL", "http://from-env:5000")
	t.Setenv("MODELSERVE_CACHE_BACKEND", "memory")
	t.Setenv("MODELSERVE_CACHE_TTL", "30s")
	t.Setenv("MODELSERVE_MIDDLEWARE", "recovery,metrics")
	t.Setenv("MODELSERVE_TRUSTED_CLIENTS", "10.0.0.1,10.0.0.2")
	t.Setenv("MODELSERVE_RATE_LIMIT_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("MODELSERVE_OBSERVABILITY_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want env value 7070", cfg.Server.Port)
	}
	if cfg.Estimator.BackendURL != "http://from-env:5000" {
		t.Errorf("estimator.backend_url = %q, want env value", cfg.Estimator.BackendURL)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if strings.Join(cfg.Middleware, ",") != "recovery,metrics" {
		t.Errorf("middleware = %v", cfg.Middleware)
	}
	if len(cfg.TrustedClients) != 2 || cfg.TrustedClients[1] != "10.0.0.2" {
		t.Errorf("trusted_clients = %v", cfg.TrustedClients)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("rate_limit.requests_per_second = %v", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("observability.metrics.enabled not overridden")
	}
}

func TestEnvOverrideInvalidValue(t *testing.T) {
	t.Setenv("MODELSERVE_CONFIG", "")
	t.Setenv("MODELSERVE_ESTIMATOR_BACKEND_URL", "http://backend:5000")
	t.Setenv("MODELSERVE_SERVER_PORT", "not-a-number")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for malformed env value")
	}
}

func TestFileReferences(t *testing.T) {
	dir := t.TempDir()
	secret := func(name, value string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(value+"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	path := writeTemp(t, "config-*.yaml", `
estimator:
  backend_url: http://localhost:5000
  api_key_file: `+secret("api_key", "backend-key")+`
auth:
  type: basic
  token_file: `+secret("token", "shared-token")+`
  users:
    bob:
      password_file: `+secret("bob", "builder")+`
audit:
  type: postgres
  postgres:
    dsn_file: `+secret("dsn", "postgres://u:p@db/audit")+`
`)
	t.Setenv("MODELSERVE_CONFIG", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Estimator.APIKey != "backend-key" {
		t.Errorf("estimator.api_key = %q", cfg.Estimator.APIKey)
	}
	if cfg.Auth.Token != "shared-token" {
		t.Errorf("auth.token = %q", cfg.Auth.Token)
	}
	if cfg.Auth.Users["bob"].Password != "builder" {
		t.Errorf("auth.users.bob.password = %q", cfg.Auth.Users["bob"].Password)
	}
	if cfg.Audit.Postgres.DSN != "postgres://u:p@db/audit" {
		t.Errorf("audit.postgres.dsn = %q", cfg.Audit.Postgres.DSN)
	}
}

func TestFileReferenceDoesNotOverrideExplicitValue(t *testing.T) {
	keyFile := writeTemp(t, "key-*", "from-file")
	path := writeTemp(t, "config-*.yaml", `
estimator:
  backend_url: http://localhost:5000
  api_key: inline
  api_key_file: `+keyFile+`
`)
	t.Setenv("MODELSERVE_CONFIG", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Estimator.APIKey != "inline" {
		t.Errorf("estimator.api_key = %q, want inline value", cfg.Estimator.APIKey)
	}
}

func TestFileReferenceMissingFile(t *testing.T) {
	path := writeTemp(t, "config-*.yaml", `
estimator:
  backend_url: http://localhost:5000
auth:
  type: token
  token_file: /nonexistent/token
`)
	t.Setenv("MODELSERVE_CONFIG", "")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "auth.token_file") {
		t.Fatalf("error = %v, want auth.token_file failure", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	explicit := writeTemp(t, "config-*.yaml", "estimator:\n  backend_url: http://explicit:5000\n")
	cfg, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load(explicit): %v", err)
	}
	if cfg.Estimator.BackendURL != "http://explicit:5000" {
		t.Errorf("explicit path: backend_url = %q", cfg.Estimator.BackendURL)
	}

	envFile := writeTemp(t, "envconfig-*.yaml", "estimator:\n  backend_url: http://env-config:5000\n")
	t.Setenv("MODELSERVE_CONFIG", envFile)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(MODELSERVE_CONFIG): %v", err)
	}
	if cfg.Estimator.BackendURL != "http://env-config:5000" {
		t.Errorf("MODELSERVE_CONFIG: backend_url = %q", cfg.Estimator.BackendURL)
	}

	t.Setenv("MODELSERVE_CONFIG", "")
	t.Setenv("MODELSERVE_ESTIMATOR_BACKEND_URL", "http://defaults-only:5000")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(no file): %v", err)
	}
	if cfg.Estimator.BackendURL != "http://defaults-only:5000" {
		t.Errorf("no file: backend_url = %q", cfg.Estimator.BackendURL)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"missing backend_url", func(c *Config) { c.Estimator.BackendURL = "" }, "estimator.backend_url is required"},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port must be between"},
		{"binary port clash", func(c *Config) { c.Server.BinaryPort = c.Server.Port }, "server.binary_port must differ"},
		{"binary port without multiplex", func(c *Config) { c.Server.Multiplex = false }, "server.binary_port is required"},
		{"negative workers", func(c *Config) { c.Server.Workers = -1 }, "server.workers"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend must be"},
		{"cache without ttl", func(c *Config) { c.Cache.Backend = "memory"; c.Cache.TTL = 0 }, "cache.ttl must be > 0"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis.addr is required"},
		{"empty middleware", func(c *Config) { c.Middleware = nil }, "middleware must list"},
		{"bad trusted client", func(c *Config) { c.TrustedClients = []string{"localhost"} }, "trusted_clients"},
		{"unknown auth type", func(c *Config) { c.Auth.Type = "oauth2" }, "auth.type must be"},
		{"basic without users", func(c *Config) { c.Auth.Type = "basic" }, "auth.users is required"},
		{"token without token", func(c *Config) { c.Auth.Type = "token" }, "auth.token"},
		{"jwt without jwks", func(c *Config) { c.Auth.Type = "jwt" }, "auth.jwt.jwks_url"},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }, "rate_limit"},
		{"unknown audit type", func(c *Config) { c.Audit.Type = "kafka" }, "audit.type must be"},
		{"postgres without dsn", func(c *Config) { c.Audit.Type = "postgres" }, "audit.postgres.dsn"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative mcp path", func(c *Config) { c.MCP.Enabled = true; c.MCP.Path = "mcp" }, "mcp.path"},
		{"valid config", func(c *Config) {}, ""},
		{"valid ipv6 trusted client", func(c *Config) { c.TrustedClients = []string{"[::1]", "127.0.0.1"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Estimator.BackendURL = "http://localhost:5000"
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Auth.Type = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"server.port", "auth.type", "estimator.backend_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

// writeTemp creates a temporary file with the given content and returns its path.
func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return f.Name()
}
