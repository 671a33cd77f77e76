// Package config loads rollkit settings from an optional YAML file overlaid
// with ROLLKIT_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ROLLKIT_"

// Config holds all application configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Engine    EngineConfig    `yaml:"engine" envPrefix:"ENGINE_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	MCP       MCPConfig       `yaml:"mcp" envPrefix:"MCP_"`
	Macros    MacroConfig     `yaml:"macros" envPrefix:"MACROS_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
}

// EngineConfig controls parsing and evaluation.
type EngineConfig struct {
	Lenient       bool   `yaml:"lenient" env:"LENIENT"`
	MaxIterations int    `yaml:"max_iterations" env:"MAX_ITERATIONS" validate:"gte=0,lte=100000"`
	MaxDice       int    `yaml:"max_dice" env:"MAX_DICE" validate:"gte=0,lte=1000000"`
	Mode          string `yaml:"mode" env:"MODE" validate:"omitempty,oneof=random minimize maximize min max"`
	Seed          *int64 `yaml:"seed" env:"SEED"`
}

// StoreConfig selects and configures the roll store.
type StoreConfig struct {
	Backend       string        `yaml:"backend" env:"BACKEND" validate:"oneof=memory file redis sqlite"`
	Path          string        `yaml:"path" env:"PATH" validate:"required_if=Backend sqlite"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" validate:"gte=0"`
	RedisPrefix   string        `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	TTL           time.Duration `yaml:"ttl" env:"TTL" validate:"gte=0"`
	LockTTL       time.Duration `yaml:"lock_ttl" env:"LOCK_TTL" validate:"gte=0"`
	EncryptionKey string        `yaml:"encryption_key" env:"ENCRYPTION_KEY" validate:"omitempty,base64"`
	RedactKeys    []string      `yaml:"redact_keys" env:"REDACT_KEYS" envSeparator:","`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"ADDR" validate:"required"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Transport string `yaml:"transport" env:"TRANSPORT" validate:"oneof=stdio sse"`
	Port      int    `yaml:"port" env:"PORT" validate:"gt=0,lt=65536"`
}

// MacroConfig points at the macro library.
type MacroConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
}

// TelemetryConfig configures OpenTelemetry trace export. Tracing stays off
// while Endpoint is empty.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT" validate:"omitempty,url"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Backend:     "memory",
			RedisPrefix: "rollkit:",
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		MCP:       MCPConfig{Transport: "stdio", Port: 8081},
		Telemetry: TelemetryConfig{Enabled: true},
	}
}

var validate = validator.New()

// Load reads path (if not empty), applies environment overrides and validates
// the result. Environment variables win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Store.Key(); err != nil {
		return err
	}
	return nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Key decodes the base64 encryption key. A nil key means encryption is off.
func (s StoreConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid config: encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid config: encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
