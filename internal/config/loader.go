// Package config provides configuration loading for modeld.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
	envPrefix         = "MODELD_"
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MODELD_SERVER_PORT, MODELD_PROVIDERS_TIMEOUT, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// An empty configPath means env-and-defaults only; a named file that does not
// exist is an error, so typos fail loudly instead of silently running on
// defaults.
//
// Environment variables are prefixed with MODELD_ and use an underscore
// separator. The first underscore after the prefix splits section from field:
//
//	MODELD_SERVER_PORT            -> server.port
//	MODELD_PROVIDERS_TIMEOUT      -> providers.timeout
//	MODELD_OUTPUT_DIR             -> output.dir
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Use rawbytes provider to avoid re-opening the file
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables.
	// MODELD_SERVER_PORT -> server.port; MODELD_PROVIDERS_OLLAMA_MODEL is
	// flattened on the first two underscores (section.sub.field pattern is
	// handled by splitting up to three parts).
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		section := parts[0]
		field := parts[1]

		// Nested provider sections carry one more level before the field
		// name: providers.ollama.server_url, providers.gemini.api_key.
		if section == "providers" {
			sub := strings.SplitN(field, "_", 2)
			if len(sub) == 2 && isProviderSection(sub[0]) {
				return section + "." + sub[0] + "." + sub[1]
			}
		}
		return section + "." + field
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func isProviderSection(name string) bool {
	switch name {
	case "ollama", "gemini", "groq":
		return true
	}
	return false
}
