// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for solace.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.solace/config.toml
//   - ~/.solace/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/solaceapp/solace/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete solace configuration.
type Config struct {
	// UserID identifies the conversation owner. A fixed identifier until
	// real accounts exist.
	UserID string `toml:"user_id" json:"user_id"`

	// Completion holds chat-completion endpoint settings.
	Completion CompletionConfig `toml:"completion" json:"completion"`

	// Remote holds message log settings.
	Remote RemoteConfig `toml:"remote" json:"remote"`

	// Transcribe holds speech-to-text settings.
	Transcribe TranscribeConfig `toml:"transcribe" json:"transcribe"`

	// Cache holds local cache settings.
	Cache CacheConfig `toml:"cache" json:"cache"`

	// Chat holds engine pacing settings.
	Chat ChatConfig `toml:"chat" json:"chat"`
}

// CompletionConfig contains chat-completion endpoint configuration.
type CompletionConfig struct {
	// APIKey is the bearer token for the completion endpoint.
	APIKey string `toml:"api_key" json:"api_key"`
	// BaseURL is the endpoint base URL.
	BaseURL string `toml:"base_url" json:"base_url"`
	// Model is the completion model to request.
	Model string `toml:"model" json:"model"`
	// Temperature is the sampling temperature.
	Temperature float64 `toml:"temperature" json:"temperature"`
}

// RemoteConfig contains message log configuration.
type RemoteConfig struct {
	// BaseURL is the message log base URL. Empty disables remote sync:
	// the client runs cache-only.
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey is the bearer token for the message log.
	APIKey string `toml:"api_key" json:"api_key"`
}

// TranscribeConfig contains speech-to-text configuration.
type TranscribeConfig struct {
	// APIKey is the transcription endpoint key.
	APIKey string `toml:"api_key" json:"api_key"`
	// BaseURL is the transcription endpoint base URL.
	BaseURL string `toml:"base_url" json:"base_url"`
	// StorageBaseURL is the audio object-storage gateway base URL.
	StorageBaseURL string `toml:"storage_base_url" json:"storage_base_url"`
	// PollIntervalMs is the delay between job status polls.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms"`
	// MaxPollAttempts bounds the poll loop.
	MaxPollAttempts int `toml:"max_poll_attempts" json:"max_poll_attempts"`
}

// CacheConfig contains local cache configuration.
type CacheConfig struct {
	// Path is the SQLite database location.
	Path string `toml:"path" json:"path"`
}

// ChatConfig contains engine pacing configuration.
type ChatConfig struct {
	// RevealIntervalMs is the delay between revealed tokens.
	RevealIntervalMs int `toml:"reveal_interval_ms" json:"reveal_interval_ms"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default values.
const (
	DefaultUserID           = "defaultUser"
	DefaultCompletionURL    = "https://api.groq.com/openai/v1"
	DefaultModel            = "llama3-70b-8192"
	DefaultTemperature      = 0.7
	DefaultTranscribeURL    = "https://api.assemblyai.com"
	DefaultPollIntervalMs   = 2000
	DefaultMaxPollAttempts  = 150
	DefaultRevealIntervalMs = 75
)

// Default returns a configuration with built-in defaults applied.
func Default() *Config {
	return &Config{
		UserID: DefaultUserID,
		Completion: CompletionConfig{
			BaseURL:     DefaultCompletionURL,
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
		},
		Transcribe: TranscribeConfig{
			BaseURL:         DefaultTranscribeURL,
			PollIntervalMs:  DefaultPollIntervalMs,
			MaxPollAttempts: DefaultMaxPollAttempts,
		},
		Cache: CacheConfig{
			Path: defaultCachePath(),
		},
		Chat: ChatConfig{
			RevealIntervalMs: DefaultRevealIntervalMs,
		},
	}
}

// defaultCachePath returns ~/.solace/cache.db, or a relative fallback when
// the home directory cannot be resolved.
func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cache.db"
	}
	return filepath.Join(home, ".solace", "cache.db")
}

// DefaultDir returns the configuration directory (~/.solace).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".solace"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from the default locations, applies environment
// overrides, validates, and returns the result. A missing file is not an
// error: defaults plus environment are used.
func Load() (*Config, error) {
	dir, err := DefaultDir()
	if err != nil {
		cfg := Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	return LoadFrom(dir)
}

// LoadFrom reads configuration from the given directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := Default()

	tomlPath := filepath.Join(dir, "config.toml")
	jsonPath := filepath.Join(dir, "config.json")

	switch {
	case fileExists(tomlPath):
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
	case fileExists(jsonPath):
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", jsonPath, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from SOLACE_* environment variables.
// Environment always wins over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("SOLACE_USER_ID"); v != "" {
		c.UserID = v
	}
	if v := os.Getenv("SOLACE_COMPLETION_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("SOLACE_COMPLETION_URL"); v != "" {
		c.Completion.BaseURL = v
	}
	if v := os.Getenv("SOLACE_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv("SOLACE_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("SOLACE_REMOTE_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("SOLACE_TRANSCRIBE_KEY"); v != "" {
		c.Transcribe.APIKey = v
	}
	if v := os.Getenv("SOLACE_TRANSCRIBE_URL"); v != "" {
		c.Transcribe.BaseURL = v
	}
	if v := os.Getenv("SOLACE_STORAGE_URL"); v != "" {
		c.Transcribe.StorageBaseURL = v
	}
	if v := os.Getenv("SOLACE_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("SOLACE_MAX_POLL_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Transcribe.MaxPollAttempts = n
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validation errors.
var (
	ErrMissingUserID = errors.New("user_id must not be empty")
)

// Validate checks the configuration for consistency. API keys may be empty
// (the clients report ErrNotConfigured at call time), but URLs must parse
// and pacing values must be positive.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return ErrMissingUserID
	}

	for name, raw := range map[string]string{
		"completion.base_url":         c.Completion.BaseURL,
		"remote.base_url":             c.Remote.BaseURL,
		"transcribe.base_url":         c.Transcribe.BaseURL,
		"transcribe.storage_base_url": c.Transcribe.StorageBaseURL,
	} {
		if raw == "" {
			continue
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.Transcribe.PollIntervalMs <= 0 {
		return errors.New("transcribe.poll_interval_ms must be positive")
	}
	if c.Transcribe.MaxPollAttempts <= 0 {
		return errors.New("transcribe.max_poll_attempts must be positive")
	}
	if c.Chat.RevealIntervalMs <= 0 {
		return errors.New("chat.reveal_interval_ms must be positive")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return errors.New("completion.temperature must be between 0 and 2")
	}
	return nil
}

// =============================================================================
// DURATION ACCESSORS
// =============================================================================

// PollInterval returns the poll delay as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Transcribe.PollIntervalMs) * time.Millisecond
}

// RevealInterval returns the token reveal delay as a duration.
func (c *Config) RevealInterval() time.Duration {
	return time.Duration(c.Chat.RevealIntervalMs) * time.Millisecond
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration as JSON to the given directory.
// RELIABILITY: Uses an atomic write so a crash cannot corrupt the file.
func (c *Config) Save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return util.AtomicWriteFile(filepath.Join(dir, "config.json"), data, 0600)
}

// fileExists reports whether the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
