// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads holosession settings from flags, an optional YAML
// file and a few environment fallbacks.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/holosession/internal/logging"
	"github.com/holomush/holosession/internal/xdg"
)

// Identity provider kinds.
const (
	ProviderLocal           = "local"
	ProviderIdentityToolkit = "identitytoolkit"
)

// Environment fallbacks for secrets that should not live in flags.
const (
	EnvAPIKey      = "HOLOSESSION_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// Default values.
const (
	DefaultProvider       = ProviderLocal
	DefaultLogFormat      = "text"
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 10 * time.Second
	DefaultReadyTimeout   = 30 * time.Second
)

// Config holds every setting the CLI needs.
type Config struct {
	Provider  string `koanf:"provider" yaml:"provider" jsonschema:"enum=local,enum=identitytoolkit,description=Identity provider"`
	LogFormat string `koanf:"log-format" yaml:"log-format" jsonschema:"enum=json,enum=text"`
	LogLevel  string `koanf:"log-level" yaml:"log-level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// MetricsAddr is the observability listen address for serve; empty disables it.
	MetricsAddr string `koanf:"metrics-addr" yaml:"metrics-addr,omitempty" jsonschema:"description=Metrics and health listen address for serve"`
	// StateDir holds saved sessions. Empty means the XDG state directory.
	StateDir string `koanf:"state-dir" yaml:"state-dir,omitempty" jsonschema:"description=Saved session directory"`

	// DatabaseURL selects PostgreSQL storage for the local provider. Empty
	// means in-memory accounts that vanish on exit.
	DatabaseURL string `koanf:"database-url" yaml:"database-url,omitempty" jsonschema:"description=PostgreSQL URL for the local provider"`

	APIKey         string        `koanf:"api-key" yaml:"api-key,omitempty" jsonschema:"description=Identity Toolkit API key"`
	Endpoint       string        `koanf:"endpoint" yaml:"endpoint,omitempty" jsonschema:"format=uri"`
	TokenEndpoint  string        `koanf:"token-endpoint" yaml:"token-endpoint,omitempty" jsonschema:"format=uri"`
	RequestTimeout time.Duration `koanf:"request-timeout" yaml:"request-timeout" jsonschema:"description=Timeout for each identity provider request"`

	// ReadyTimeout bounds how long a command waits for the initial session state.
	ReadyTimeout time.Duration `koanf:"ready-timeout" yaml:"ready-timeout" jsonschema:"description=Wait for the initial session state"`
}

// RegisterFlags defines the configuration flags on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (default: XDG_CONFIG_HOME/holosession/config.yaml if present)")
	flags.String("provider", DefaultProvider, "identity provider (local or identitytoolkit)")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "metrics/health HTTP address for serve (empty = disabled)")
	flags.String("state-dir", "", "saved session directory (default: XDG_STATE_HOME/holosession)")
	flags.String("database-url", "", "PostgreSQL URL for the local provider (default: $"+EnvDatabaseURL+", else in-memory)")
	flags.String("api-key", "", "Identity Toolkit API key (default: $"+EnvAPIKey+")")
	flags.String("endpoint", "", "Identity Toolkit base URL")
	flags.String("token-endpoint", "", "Secure Token base URL")
	flags.Duration("request-timeout", DefaultRequestTimeout, "timeout for each identity provider request")
	flags.Duration("ready-timeout", DefaultReadyTimeout, "how long to wait for the initial session state")
}

// Load reads configuration in increasing precedence: flag defaults, the
// YAML file, flags set on the command line, then environment fallbacks for
// settings still empty.
//
// If the --config flag is empty the default config file is used when it
// exists; an explicit path must exist.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := flags.GetString("config")
	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	// Unchanged flags only fill keys the file did not set.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	return &cfg, nil
}

// loadFile validates the file at path against the schema and merges it into k.
// A missing default file is skipped.
func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateFile(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
	case ProviderIdentityToolkit:
		if c.APIKey == "" {
			return oops.Code("CONFIG_INVALID").
				With("field", "api-key").
				Errorf("api-key (or $%s) is required for the %s provider", EnvAPIKey, ProviderIdentityToolkit)
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "provider").
			Errorf("provider must be %q or %q, got %q", ProviderLocal, ProviderIdentityToolkit, c.Provider)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log-format").
			Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("field", "log-level").
			Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.RequestTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "request-timeout").Errorf("request-timeout must be positive")
	}
	if c.ReadyTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("field", "ready-timeout").Errorf("ready-timeout must be positive")
	}
	return nil
}
