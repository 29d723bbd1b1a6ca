package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix = "RACETIER_"
	EnvFile   = "RACETIER_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RACETIER_CONFIG is set
//  3. env (prefix RACETIER_)
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, os.Getenv(EnvFile), true)
}

// LoadFile builds a Config from defaults and the YAML file at path only.
// The CLI uses it for --policy.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	return load(ctx, path, false)
}

func load(_ context.Context, path string, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if withEnv {
		// RACETIER_QUEUE_SIZE -> queue_size; underscores are kept so the
		// keys match the koanf tags.
		envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
			return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		})
		if err := k.Load(envProvider, nil); err != nil {
			return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
		}
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
