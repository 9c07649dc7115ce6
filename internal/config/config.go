// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for parley.
//
// Configuration is a TOML file listing providers and models, with sensible
// defaults, environment variable overrides, and validation. The loaded
// Config implements provider.Resolver for the streaming engine.
//
// Configuration file location (in order of precedence):
//   - ~/.parley/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"

	"github.com/jeranaias/parley/internal/provider"
)

// Environment variable overrides, applied to the default provider after the
// file is read.
const (
	EnvAPIKey  = "PARLEY_API_KEY"
	EnvBaseURL = "PARLEY_BASE_URL"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// DefaultProvider is the provider id used when a send does not name one.
	DefaultProvider string `toml:"default_provider"`
	// DefaultModel is the model id used when a send does not name one.
	DefaultModel string `toml:"default_model"`

	// RequestsPerSecond caps how often streaming requests may open.
	// Zero means unlimited.
	RequestsPerSecond float64 `toml:"requests_per_second"`

	Providers []ProviderConfig `toml:"providers"`
	Models    []ModelConfig    `toml:"models"`

	mu sync.RWMutex
}

// ProviderConfig describes one upstream provider entry in the file.
type ProviderConfig struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	RequestPath string `toml:"request_path"`
	Enabled     bool   `toml:"enabled"`
}

// ModelConfig describes one selectable model entry in the file.
type ModelConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Provider string `toml:"provider"` // provider id this model is served by
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultConfig returns a configuration pre-wired for OpenRouter. The API
// key is left empty; it comes from the file or PARLEY_API_KEY.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "openrouter",
		DefaultModel:    "openai/gpt-4o-mini",
		Providers: []ProviderConfig{
			{
				ID:          "openrouter",
				Name:        "OpenRouter",
				BaseURL:     "https://openrouter.ai/api",
				RequestPath: "/v1/chat/completions",
				Enabled:     true,
			},
		},
		Models: []ModelConfig{
			{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", Provider: "openrouter"},
		},
	}
}

// DefaultPath returns the default configuration file location,
// ~/.parley/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".parley", "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file at path, falling back to defaults when
// the file does not exist, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		// Missing file is not an error: defaults plus env are enough to
		// run against OpenRouter.
	} else {
		fileCfg := &Config{}
		if err := toml.Unmarshal(data, fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.merge(fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the file configuration onto the defaults. A file that lists
// providers or models replaces the default lists wholesale.
func (c *Config) merge(file *Config) {
	if file.DefaultProvider != "" {
		c.DefaultProvider = file.DefaultProvider
	}
	if file.DefaultModel != "" {
		c.DefaultModel = file.DefaultModel
	}
	if file.RequestsPerSecond != 0 {
		c.RequestsPerSecond = file.RequestsPerSecond
	}
	if len(file.Providers) > 0 {
		c.Providers = file.Providers
	}
	if len(file.Models) > 0 {
		c.Models = file.Models
	}
}

// applyEnvOverrides applies PARLEY_API_KEY and PARLEY_BASE_URL to the
// default provider.
func (c *Config) applyEnvOverrides() {
	apiKey := os.Getenv(EnvAPIKey)
	baseURL := os.Getenv(EnvBaseURL)
	if apiKey == "" && baseURL == "" {
		return
	}

	for i := range c.Providers {
		if c.Providers[i].ID != c.DefaultProvider {
			continue
		}
		if apiKey != "" {
			c.Providers[i].APIKey = apiKey
		}
		if baseURL != "" {
			c.Providers[i].BaseURL = baseURL
		}
		return
	}
}

// Validate checks structural invariants: unique non-empty provider ids, a
// base URL on every enabled provider, and models referencing known
// providers.
func (c *Config) Validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Enabled && p.BaseURL == "" {
			return fmt.Errorf("provider %q is enabled but has no base_url", p.ID)
		}
	}

	for _, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("model with empty id")
		}
		if m.Provider != "" && !seen[m.Provider] {
			return fmt.Errorf("model %q references unknown provider %q", m.ID, m.Provider)
		}
	}

	return nil
}

// =============================================================================
// RESOLVER
// =============================================================================

// ProviderByID implements provider.Resolver. Disabled providers do not
// resolve.
func (c *Config) ProviderByID(id string) (provider.Config, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.Providers {
		if p.ID == id && p.Enabled {
			return provider.Config{
				ID:          p.ID,
				Name:        p.Name,
				APIKey:      p.APIKey,
				BaseURL:     p.BaseURL,
				RequestPath: p.RequestPath,
				Enabled:     p.Enabled,
			}, true
		}
	}
	return provider.Config{}, false
}

// ModelByID returns the model entry with the given id.
func (c *Config) ModelByID(id string) (ModelConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// replaceFrom swaps this config's contents for another's under the write
// lock. Used by the watcher on reload so resolver callers holding the
// original pointer see the new values.
func (c *Config) replaceFrom(next *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.DefaultProvider = next.DefaultProvider
	c.DefaultModel = next.DefaultModel
	c.RequestsPerSecond = next.RequestsPerSecond
	c.Providers = next.Providers
	c.Models = next.Models
}

// RequestLimiter builds the pacing limiter for the streaming engine from
// RequestsPerSecond. Unlimited when the setting is zero.
func (c *Config) RequestLimiter() *rate.Limiter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.RequestsPerSecond > 0 {
		return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}
	return rate.NewLimiter(rate.Inf, 0)
}
