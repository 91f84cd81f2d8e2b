package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MODELSERVE_SERVER_PORT.
const EnvPrefix = "MODELSERVE_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. Config file (explicit path, MODELSERVE_CONFIG env, ./config.yaml, /etc/modelserve/config.yaml)
//  3. MODELSERVE_* environment variables
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := discoverConfigFile(configPath); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// discoverConfigFile returns the first of: the explicit path, the
// MODELSERVE_CONFIG variable, ./config.yaml, ./config.toml, and
// /etc/modelserve/config.yaml. Empty means no file.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "config.toml", "/etc/modelserve/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFile parses a YAML or, for a .toml extension, TOML file into cfg.
// Fields absent from the file keep their current values.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolveFileReferences fills secret fields from their _file variants. An
// inline value wins over the file.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"estimator.api_key_file", cfg.Estimator.APIKeyFile, &cfg.Estimator.APIKey},
		{"cache.redis.password_file", cfg.Cache.Redis.PasswordFile, &cfg.Cache.Redis.Password},
		{"auth.token_file", cfg.Auth.TokenFile, &cfg.Auth.Token},
		{"audit.postgres.dsn_file", cfg.Audit.Postgres.DSNFile, &cfg.Audit.Postgres.DSN},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}

	for name, user := range cfg.Auth.Users {
		if user.PasswordFile == "" || user.Password != "" {
			continue
		}
		val, err := readSecretFile(user.PasswordFile)
		if err != nil {
			return fmt.Errorf("auth.users.%s.password_file: %w", name, err)
		}
		user.Password = val
		cfg.Auth.Users[name] = user
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
