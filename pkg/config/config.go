// Package config provides unified configuration for the modelserve server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. Config file, YAML or TOML (discovered or explicitly specified)
//  3. Environment variable overrides (MODELSERVE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the server.
type Config struct {
	Server         ServerConfig        `yaml:"server" toml:"server" envPrefix:"SERVER_"`
	Estimator      EstimatorConfig     `yaml:"estimator" toml:"estimator" envPrefix:"ESTIMATOR_"`
	Cache          CacheConfig         `yaml:"cache" toml:"cache" envPrefix:"CACHE_"`
	Middleware     []string            `yaml:"middleware" toml:"middleware" env:"MIDDLEWARE"`
	TrustedClients []string            `yaml:"trusted_clients" toml:"trusted_clients" env:"TRUSTED_CLIENTS"`
	Auth           AuthConfig          `yaml:"auth" toml:"auth" envPrefix:"AUTH_"`
	RateLimit      RateLimitConfig     `yaml:"rate_limit" toml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Audit          AuditConfig         `yaml:"audit" toml:"audit" envPrefix:"AUDIT_"`
	Observability  ObservabilityConfig `yaml:"observability" toml:"observability" envPrefix:"OBSERVABILITY_"`
	Logging        LoggingConfig       `yaml:"logging" toml:"logging" envPrefix:"LOGGING_"`
	MCP            MCPConfig           `yaml:"mcp" toml:"mcp" envPrefix:"MCP_"`
}

// ServerConfig holds listener and request handling settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host" env:"HOST"`
	Port int    `yaml:"port" toml:"port" env:"PORT"` // default: 8000

	// BinaryPort serves the binary protocol on its own listener. Zero
	// disables the separate listener.
	BinaryPort int `yaml:"binary_port" toml:"binary_port" env:"BINARY_PORT"`

	// Multiplex serves the binary protocol on Port next to HTTP, split by
	// the frame magic.
	Multiplex bool `yaml:"multiplex" toml:"multiplex" env:"MULTIPLEX"` // default: true

	// Workers bounds concurrent estimator calls. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" toml:"workers" env:"WORKERS"`

	RequestTimeout  time.Duration `yaml:"request_timeout" toml:"request_timeout" env:"REQUEST_TIMEOUT"`    // default: 30s
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" env:"READ_TIMEOUT"`             // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" env:"WRITE_TIMEOUT"`          // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size" toml:"max_body_size" env:"MAX_BODY_SIZE"`          // default: 10 MiB
	MaxFrameSize    uint32        `yaml:"max_frame_size" toml:"max_frame_size" env:"MAX_FRAME_SIZE"`       // default: 16 MiB
}

// EstimatorConfig locates the inference backend.
type EstimatorConfig struct {
	BackendURL string        `yaml:"backend_url" toml:"backend_url" env:"BACKEND_URL"` // required
	APIKey     string        `yaml:"api_key" toml:"api_key" env:"API_KEY"`
	APIKeyFile string        `yaml:"api_key_file" toml:"api_key_file" env:"API_KEY_FILE"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"` // default: 30s
}

// CacheConfig selects and sizes the prediction cache.
type CacheConfig struct {
	// Backend is "none", "memory", "ristretto", or "redis". Default: "none".
	Backend    string        `yaml:"backend" toml:"backend" env:"BACKEND"`
	TTL        time.Duration `yaml:"ttl" toml:"ttl" env:"TTL"`                         // default: 5m
	MaxEntries int           `yaml:"max_entries" toml:"max_entries" env:"MAX_ENTRIES"` // memory backend, default: 10000
	MaxCost    int64         `yaml:"max_cost" toml:"max_cost" env:"MAX_COST"`          // ristretto backend, default: 10000
	Redis      RedisConfig   `yaml:"redis" toml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig holds the shared cache connection.
type RedisConfig struct {
	Addr         string `yaml:"addr" toml:"addr" env:"ADDR"`
	Password     string `yaml:"password" toml:"password" env:"PASSWORD"`
	PasswordFile string `yaml:"password_file" toml:"password_file" env:"PASSWORD_FILE"`
	DB           int    `yaml:"db" toml:"db" env:"DB"`
	Prefix       string `yaml:"prefix" toml:"prefix" env:"PREFIX"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Type is "none", "basic", "token", or "jwt". Default: "none".
	Type string `yaml:"type" toml:"type" env:"TYPE"`

	// Users maps user names to accounts for type=basic.
	Users map[string]UserConfig `yaml:"users" toml:"users"`

	// Token is the shared bearer token for type=token.
	Token     string `yaml:"token" toml:"token" env:"TOKEN"`
	TokenFile string `yaml:"token_file" toml:"token_file" env:"TOKEN_FILE"`

	JWT JWTConfig `yaml:"jwt" toml:"jwt" envPrefix:"JWT_"`
}

// UserConfig describes one basic auth account.
type UserConfig struct {
	Password     string `yaml:"password" toml:"password"`
	PasswordFile string `yaml:"password_file" toml:"password_file"`
	ServiceTier  string `yaml:"service_tier" toml:"service_tier"`
}

// JWTConfig holds the JWT authenticator settings.
type JWTConfig struct {
	Issuer   string `yaml:"issuer" toml:"issuer" env:"ISSUER"`
	Audience string `yaml:"audience" toml:"audience" env:"AUDIENCE"`
	JWKSURL  string `yaml:"jwks_url" toml:"jwks_url" env:"JWKS_URL"`
}

// RateLimitConfig holds the default token bucket and per-tier overrides.
// A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64               `yaml:"requests_per_second" toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int                   `yaml:"burst" toml:"burst" env:"BURST"`
	Tiers             map[string]TierConfig `yaml:"tiers" toml:"tiers"`
}

// TierConfig is the token bucket of one service tier.
type TierConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// AuditConfig selects the audit log sink.
type AuditConfig struct {
	// Type is "none", "memory", "postgres", or "sqlite". Default: "none".
	Type     string         `yaml:"type" toml:"type" env:"TYPE"`
	MaxSize  int            `yaml:"max_size" toml:"max_size" env:"MAX_SIZE"` // memory sink, default: 10000
	Postgres PostgresConfig `yaml:"postgres" toml:"postgres" envPrefix:"POSTGRES_"`
	SQLite   SQLiteConfig   `yaml:"sqlite" toml:"sqlite" envPrefix:"SQLITE_"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" toml:"dsn" env:"DSN"`
	DSNFile        string `yaml:"dsn_file" toml:"dsn_file" env:"DSN_FILE"`
	MaxConns       int32  `yaml:"max_conns" toml:"max_conns" env:"MAX_CONNS"` // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start" toml:"migrate_on_start" env:"MIGRATE_ON_START"`
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path" env:"PATH"` // default: "modelserve-audit.db"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics" envPrefix:"METRICS_"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"` // default: true
	Path    string `yaml:"path" toml:"path" env:"PATH"`          // default: "/metrics"
}

// LoggingConfig controls the structured logger and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LEVEL"`    // default: "info"
	Format string `yaml:"format" toml:"format" env:"FORMAT"` // "text" or "json", default: "text"

	// Debug lists debug categories, comma separated, or "all".
	Debug string `yaml:"debug" toml:"debug" env:"DEBUG"`
}

// MCPConfig holds the MCP front end settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" toml:"path" env:"PATH"` // default: "/mcp"
}

// DefaultMiddleware is the interceptor order used when none is configured.
var DefaultMiddleware = []string{"recovery", "request_id", "logging", "metrics", "audit", "auth", "timeout"}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			Multiplex:       true,
			RequestTimeout:  30 * time.Second,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 << 20,
			MaxFrameSize:    16 << 20,
		},
		Estimator: EstimatorConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "none",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			MaxCost:    10000,
		},
		Middleware: append([]string(nil), DefaultMiddleware...),
		Auth: AuthConfig{
			Type: "none",
		},
		Audit: AuditConfig{
			Type:    "none",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
			SQLite: SQLiteConfig{
				Path: "modelserve-audit.db",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
	}
}
