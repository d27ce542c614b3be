// Package config loads server configuration. Precedence, lowest to
// highest: flag defaults, YAML config file, MNEMO_* environment
// variables, explicitly set command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

// Config holds the server settings.
type Config struct {
	Listen string `koanf:"listen"` // host:port the HTTP server binds to
	DB     string `koanf:"db"`     // path to the SQLite database file
	Debug  bool   `koanf:"debug"`  // enable debug-level logging
}

const envPrefix = "MNEMO_"

// Load builds the configuration from the given YAML file (skipped when it
// does not exist), the environment, and the flag set. A nil flag set is
// allowed and contributes nothing.
func Load(path string, flags *flag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		// Passing k lets unset flags fall back to values already loaded
		// from the file or environment instead of their defaults.
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
