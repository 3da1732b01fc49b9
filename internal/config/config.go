// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config assembles the authkeep configuration from built-in
// defaults, an optional YAML file, the environment, and command-line flags.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix prefixes every environment override except the legacy aliases.
const EnvPrefix = "AUTHKEEP_"

// Legacy environment names read by the original deployment.
const (
	EnvJWTSecret   = "JWT_SECRET"
	EnvDatabaseURL = "DATABASE_URL"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server" yaml:"server"`
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database"`
	Auth     AuthConfig     `koanf:"auth" json:"auth" yaml:"auth"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"description=HTTP listen address"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" json:"read_header_timeout,omitempty" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url" json:"url,omitempty" yaml:"url" jsonschema:"description=PostgreSQL connection URL"`
	MaxConns       int32         `koanf:"max_conns" json:"max_conns,omitempty" yaml:"max_conns" jsonschema:"minimum=1"`
	ConnectRetries uint64        `koanf:"connect_retries" json:"connect_retries,omitempty" yaml:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff" json:"connect_backoff,omitempty" yaml:"connect_backoff"`
}

// AuthConfig configures hashing and token issuance.
type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret" json:"jwt_secret,omitempty" yaml:"jwt_secret" jsonschema:"description=HMAC secret for signing session tokens"`
	TokenTTL   time.Duration `koanf:"token_ttl" json:"token_ttl,omitempty" yaml:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" yaml:"bcrypt_cost" jsonschema:"minimum=4,maximum=31"`
	Issuer     string        `koanf:"issuer" json:"issuer,omitempty" yaml:"issuer"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              "localhost:3000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:       10,
			ConnectRetries: 5,
			ConnectBackoff: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			TokenTTL:   time.Hour,
			BcryptCost: bcrypt.DefaultCost,
			Issuer:     "authkeep",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// LoadOptions selects the sources Load reads on top of the defaults.
type LoadOptions struct {
	// File is a YAML config file. Empty skips it.
	File string
	// DotEnv is loaded into the process environment first. Existing variables
	// win and a missing file is ignored. Empty skips it.
	DotEnv string
	// Flags contributes every flag named in FlagKeys that was set explicitly.
	Flags *pflag.FlagSet
}

// Load assembles the configuration. Precedence, lowest first: defaults,
// file, environment, explicitly set flags. The result is not validated.
func Load(opts LoadOptions) (*Config, error) {
	if opts.DotEnv != "" {
		if err := LoadDotEnv(opts.DotEnv); err != nil {
			return nil, err
		}
	}

	k := koanf.New(".")

	if opts.File != "" {
		if err := loadFile(k, opts.File); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{TransformFunc: aliasEnvKey}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	if err := k.Load(env.Provider(".", env.Opt{Prefix: EnvPrefix, TransformFunc: prefixedEnvKey}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	return decode(k)
}

// FromFile returns the defaults overlaid with the YAML file at path. The
// environment and flags are not consulted. The result is not validated.
func FromFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadFile(k, path); err != nil {
		return nil, err
	}
	return decode(k)
}

// loadFile checks path against the schema before handing it to koanf.
func loadFile(k *koanf.Koanf, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("file", path).Wrap(err)
	}
	if err := ValidateFile(data); err != nil {
		return oops.Code("CONFIG_FILE_INVALID").With("file", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("file", path).Wrap(err)
	}
	return nil
}

func decode(k *koanf.Koanf) (*Config, error) {
	cfg := Defaults()
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	})
	if err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_DOTENV_FAILED").With("file", path).Wrap(err)
	}
	return nil
}

func aliasEnvKey(key, value string) (string, any) {
	switch key {
	case EnvJWTSecret:
		return "auth.jwt_secret", value
	case EnvDatabaseURL:
		return "database.url", value
	default:
		return "", nil
	}
}

// prefixedEnvKey maps AUTHKEEP_SECTION_SOME_KEY to section.some_key.
func prefixedEnvKey(key, value string) (string, any) {
	rest := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, name, ok := strings.Cut(rest, "_")
	if !ok || section == "" || name == "" {
		return "", nil
	}
	return section + "." + name, value
}

// Validate checks formats and ranges. A missing signing secret is not an
// error here; see RequireSigningSecret.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Server.Addr) == "":
		return invalid("server.addr", "must not be empty")
	case c.Server.ReadHeaderTimeout <= 0:
		return invalid("server.read_header_timeout", "must be positive")
	case c.Server.ShutdownTimeout <= 0:
		return invalid("server.shutdown_timeout", "must be positive")
	case c.Database.MaxConns < 1:
		return invalid("database.max_conns", "must be at least 1")
	case c.Database.ConnectBackoff <= 0:
		return invalid("database.connect_backoff", "must be positive")
	case c.Auth.TokenTTL <= 0:
		return invalid("auth.token_ttl", "must be positive")
	case c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost:
		return invalid("auth.bcrypt_cost", "must be between 4 and 31")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// RequireSigningSecret fails when no token signing secret is configured.
func (c *Config) RequireSigningSecret() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return oops.Code("CONFIG_SECRET_MISSING").
			With("key", "auth.jwt_secret").
			Errorf("token signing secret is not configured: set %s or auth.jwt_secret", EnvJWTSecret)
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return oops.Code("CONFIG_DATABASE_MISSING").
			With("key", "database.url").
			Errorf("database url is not configured: set %s or database.url", EnvDatabaseURL)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, invalid("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return level, nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "[redacted]"
	}
	if out.Database.URL != "" {
		out.Database.URL = redactURL(out.Database.URL)
	}
	return out
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
