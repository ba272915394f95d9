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

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if INKLINE_CONFIG is set
//  3. env (prefix INKLINE_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("INKLINE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: INKLINE_ADDR, INKLINE_IDLE_TIMEOUT_MS, ...
	// Map env keys like INKLINE_BUFFER_CAPACITY -> buffer_capacity (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("INKLINE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "inkline_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the pipeline cannot run with.
func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.IdleTimeoutMS <= 0:
		return fmt.Errorf("%w: idle_timeout_ms must be positive", ErrInvalidConfig)
	case cfg.BufferCapacity <= 0:
		return fmt.Errorf("%w: buffer_capacity must be positive", ErrInvalidConfig)
	case cfg.StrokeCapacity <= 0:
		return fmt.Errorf("%w: stroke_capacity must be positive", ErrInvalidConfig)
	case cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0:
		return fmt.Errorf("%w: canvas size must be positive", ErrInvalidConfig)
	case cfg.OffsetAlpha <= 0 || cfg.OffsetAlpha > 1:
		return fmt.Errorf("%w: offset_alpha must be in (0,1]", ErrInvalidConfig)
	}
	return nil
}
