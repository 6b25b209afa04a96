package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "REMOTECLAIM_"

// Loader layers configuration sources with koanf
type Loader struct {
	k          *koanf.Koanf
	configPath string
}

// NewLoader creates a loader from defaults, an optional file and the environment.
//
// The file format (YAML, JSON, or TOML) is auto-detected from the extension.
// Environment variables like REMOTECLAIM_SERVER__HTTP_PORT map to server.http_port.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (REMOTECLAIM_*)
//  2. Configuration file (if provided)
//  3. Built-in defaults
func NewLoader(configPath string) (*Loader, error) {
	return newLoader(configPath, nil)
}

// NewLoaderWithFlags is NewLoader with explicitly set command-line flags
// layered on top of the environment.
func NewLoaderWithFlags(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	return newLoader(configPath, flags)
}

func defaults() map[string]any {
	return map[string]any{
		"server.http_port":        8080,
		"server.shutdown_timeout": "10s",
		"issuer_url":              "https://remoteclaim.local",
		"http.timeout":            "30s",
		"http.user_agent":         "remoteclaim",
	}
}

func newLoader(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		parser, err := parserFor(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if flags != nil {
		if err := k.Load(flagProvider(flags, k), nil); err != nil {
			return nil, fmt.Errorf("failed to load command-line flags: %w", err)
		}
	}

	return &Loader{k: k, configPath: configPath}, nil
}

// flagProvider exposes only the mapped flags the user actually set
func flagProvider(flags *pflag.FlagSet, k *koanf.Koanf) *posflag.Posflag {
	mapping := GetFlagMapping()
	return posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := mapping[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
}

// Get unmarshals the configuration into a Config struct
func (l *Loader) Get() (*Config, error) {
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ConfigPath returns the file the loader read, or "" when none was given
func (l *Loader) ConfigPath() string {
	return l.configPath
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}
}

// envKey maps an environment variable to a config key; "__" nests:
//
//	REMOTECLAIM_SERVER__HTTP_PORT -> server.http_port
//	REMOTECLAIM_ISSUER_URL -> issuer_url
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
