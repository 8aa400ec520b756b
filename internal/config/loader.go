package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "JUDGEBOARD_"
	envFile   = envPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if JUDGEBOARD_CONFIG is set
//  3. env (prefix JUDGEBOARD_)
func Load(_ context.Context) (*Config, error) {
	cfg := New()
	k := koanf.New(".")

	if path := os.Getenv(envFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
		// A file listing categories replaces the default set.
		if k.Exists("categories") {
			cfg.Categories = nil
		}
	}

	// JUDGEBOARD_SIGNIN_RATE -> signin_rate. Flat keys keep underscores.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		switch key {
		case "config":
			return "", nil
		case "categories":
			return key, parseCategories(value)
		case "allowed_origins":
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	if os.Getenv(envPrefix+"CATEGORIES") != "" {
		cfg.Categories = nil
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseCategories reads "Innovation:10,Design:20". A bare name gets a zero
// ceiling, which the store replaces with the default.
func parseCategories(s string) map[string]any {
	out := make(map[string]any)
	for _, part := range strings.Split(s, ",") {
		name, maxStr, _ := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(maxStr))
		if err != nil {
			n = 0
		}
		out[name] = n
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
