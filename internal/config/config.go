// Package config provides configuration management for aura.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultPort is the default daemon HTTP port.
	DefaultPort = 41717

	// DefaultScreenSampleIntervalMs is how often the screen sentinel samples.
	DefaultScreenSampleIntervalMs = 45000

	// DefaultAudioSilenceTimeoutMs is the silence duration that seals an audio session.
	DefaultAudioSilenceTimeoutMs = 2000

	// DefaultMinUtteranceMs is the minimum session length kept (noise suppression).
	DefaultMinUtteranceMs = 600

	// DefaultVolumeThreshold opens an audio session on a rising edge above it.
	DefaultVolumeThreshold = 0.15

	// DefaultMaxSnapshots caps retained snapshots and sessions per kind.
	DefaultMaxSnapshots = 500

	// DefaultConfirmTTLMs is how long a pending clarification stays confirmable.
	DefaultConfirmTTLMs = 120000

	// DefaultClarifierTokenBudget caps context tokens sent to the clarifier.
	DefaultClarifierTokenBudget = 1500
)

// Config holds all aura settings. Values come from defaults, then
// ~/.aura/settings.json, then AURA_* environment overrides.
type Config struct {
	Port     int    `json:"AURA_PORT"`
	LogLevel string `json:"AURA_LOG_LEVEL"`
	MaxConns int    `json:"AURA_MAX_CONNS"`

	ScreenSampleIntervalMs int     `json:"AURA_SCREEN_SAMPLE_INTERVAL_MS"`
	AudioSilenceTimeoutMs  int     `json:"AURA_AUDIO_SILENCE_TIMEOUT_MS"`
	MinUtteranceMs         int     `json:"AURA_MIN_UTTERANCE_MS"`
	VolumeThreshold        float64 `json:"AURA_VOLUME_THRESHOLD"`

	QuietHoursStart  int  `json:"AURA_QUIET_HOURS_START"`
	QuietHoursEnd    int  `json:"AURA_QUIET_HOURS_END"`
	UltraLightweight bool `json:"AURA_ULTRA_LIGHTWEIGHT"`

	MaxSnapshots         int    `json:"AURA_MAX_SNAPSHOTS"`
	ConfirmTTLMs         int    `json:"AURA_CONFIRM_TTL_MS"`
	ClarifierURL         string `json:"AURA_CLARIFIER_URL"`
	TranscriberURL       string `json:"AURA_TRANSCRIBER_URL"`
	OCRURL               string `json:"AURA_OCR_URL"`
	WebhookURL           string `json:"AURA_WEBHOOK_URL"`
	RedisAddr            string `json:"AURA_REDIS_ADDR"`
	ClarifierTokenBudget int    `json:"AURA_CLARIFIER_TOKEN_BUDGET"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:                   DefaultPort,
		LogLevel:               "info",
		MaxConns:               4,
		ScreenSampleIntervalMs: DefaultScreenSampleIntervalMs,
		AudioSilenceTimeoutMs:  DefaultAudioSilenceTimeoutMs,
		MinUtteranceMs:         DefaultMinUtteranceMs,
		VolumeThreshold:        DefaultVolumeThreshold,
		QuietHoursStart:        0,
		QuietHoursEnd:          0,
		UltraLightweight:       false,
		MaxSnapshots:           DefaultMaxSnapshots,
		ConfirmTTLMs:           DefaultConfirmTTLMs,
		ClarifierTokenBudget:   DefaultClarifierTokenBudget,
	}
}

// DataDir returns ~/.aura. AURA_DATA_DIR overrides it, which is how tests
// and multi-instance setups isolate state.
func DataDir() string {
	if dir := os.Getenv("AURA_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aura"
	}
	return filepath.Join(home, ".aura")
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "aura.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// RulesPath returns the YAML rules file path.
func RulesPath() string {
	return filepath.Join(DataDir(), "rules.yaml")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings creates a default settings file if missing.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Save(Default())
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	if err := EnsureSettings(); err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

// Load reads settings.json, applies AURA_* environment overrides, and returns
// the result. A missing or malformed settings file yields defaults rather
// than an error; env overrides still apply.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err == nil {
			applySettings(cfg, raw)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Save writes the configuration to settings.json.
func Save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(), data, 0o600)
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// Get returns the cached configuration, loading it on first use.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	if cached == nil {
		cached, _ = Load()
	}
	return cached
}

// Reload discards the cache and re-reads configuration from disk. Returns the
// fresh config. Used by the settings watcher.
func Reload() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	cached, _ = Load()
	return cached
}

// GetPort returns the daemon port, preferring the AURA_PORT env var.
func GetPort() int {
	if v := os.Getenv("AURA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return Get().Port
}

// ScreenSampleInterval returns the screen sampling interval as a duration.
func (c *Config) ScreenSampleInterval() time.Duration {
	return time.Duration(c.ScreenSampleIntervalMs) * time.Millisecond
}

// AudioSilenceTimeout returns the silence seal timeout as a duration.
func (c *Config) AudioSilenceTimeout() time.Duration {
	return time.Duration(c.AudioSilenceTimeoutMs) * time.Millisecond
}

// MinUtterance returns the minimum kept utterance length as a duration.
func (c *Config) MinUtterance() time.Duration {
	return time.Duration(c.MinUtteranceMs) * time.Millisecond
}

// ConfirmTTL returns the pending-confirmation lifetime as a duration.
func (c *Config) ConfirmTTL() time.Duration {
	return time.Duration(c.ConfirmTTLMs) * time.Millisecond
}

// applySettings copies recognized keys from the settings map onto cfg.
// Unknown keys are ignored.
func applySettings(cfg *Config, raw map[string]any) {
	setInt(raw, "AURA_PORT", &cfg.Port)
	setString(raw, "AURA_LOG_LEVEL", &cfg.LogLevel)
	setInt(raw, "AURA_MAX_CONNS", &cfg.MaxConns)
	setInt(raw, "AURA_SCREEN_SAMPLE_INTERVAL_MS", &cfg.ScreenSampleIntervalMs)
	setInt(raw, "AURA_AUDIO_SILENCE_TIMEOUT_MS", &cfg.AudioSilenceTimeoutMs)
	setInt(raw, "AURA_MIN_UTTERANCE_MS", &cfg.MinUtteranceMs)
	setFloat(raw, "AURA_VOLUME_THRESHOLD", &cfg.VolumeThreshold)
	setInt(raw, "AURA_QUIET_HOURS_START", &cfg.QuietHoursStart)
	setInt(raw, "AURA_QUIET_HOURS_END", &cfg.QuietHoursEnd)
	setBool(raw, "AURA_ULTRA_LIGHTWEIGHT", &cfg.UltraLightweight)
	setInt(raw, "AURA_MAX_SNAPSHOTS", &cfg.MaxSnapshots)
	setInt(raw, "AURA_CONFIRM_TTL_MS", &cfg.ConfirmTTLMs)
	setString(raw, "AURA_CLARIFIER_URL", &cfg.ClarifierURL)
	setString(raw, "AURA_TRANSCRIBER_URL", &cfg.TranscriberURL)
	setString(raw, "AURA_OCR_URL", &cfg.OCRURL)
	setString(raw, "AURA_WEBHOOK_URL", &cfg.WebhookURL)
	setString(raw, "AURA_REDIS_ADDR", &cfg.RedisAddr)
	setInt(raw, "AURA_CLARIFIER_TOKEN_BUDGET", &cfg.ClarifierTokenBudget)
}

// applyEnv applies AURA_* environment overrides. Invalid values are ignored.
func applyEnv(cfg *Config) {
	envInt("AURA_PORT", &cfg.Port)
	envString("AURA_LOG_LEVEL", &cfg.LogLevel)
	envInt("AURA_MAX_CONNS", &cfg.MaxConns)
	envInt("AURA_SCREEN_SAMPLE_INTERVAL_MS", &cfg.ScreenSampleIntervalMs)
	envInt("AURA_AUDIO_SILENCE_TIMEOUT_MS", &cfg.AudioSilenceTimeoutMs)
	envInt("AURA_MIN_UTTERANCE_MS", &cfg.MinUtteranceMs)
	envFloat("AURA_VOLUME_THRESHOLD", &cfg.VolumeThreshold)
	envInt("AURA_QUIET_HOURS_START", &cfg.QuietHoursStart)
	envInt("AURA_QUIET_HOURS_END", &cfg.QuietHoursEnd)
	envBool("AURA_ULTRA_LIGHTWEIGHT", &cfg.UltraLightweight)
	envInt("AURA_MAX_SNAPSHOTS", &cfg.MaxSnapshots)
	envInt("AURA_CONFIRM_TTL_MS", &cfg.ConfirmTTLMs)
	envString("AURA_CLARIFIER_URL", &cfg.ClarifierURL)
	envString("AURA_TRANSCRIBER_URL", &cfg.TranscriberURL)
	envString("AURA_OCR_URL", &cfg.OCRURL)
	envString("AURA_WEBHOOK_URL", &cfg.WebhookURL)
	envString("AURA_REDIS_ADDR", &cfg.RedisAddr)
	envInt("AURA_CLARIFIER_TOKEN_BUDGET", &cfg.ClarifierTokenBudget)
}

func setInt(raw map[string]any, key string, dst *int) {
	if v, ok := raw[key]; ok {
		switch n := v.(type) {
		case float64:
			*dst = int(n)
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				*dst = parsed
			}
		}
	}
}

func setFloat(raw map[string]any, key string, dst *float64) {
	if v, ok := raw[key]; ok {
		switch n := v.(type) {
		case float64:
			*dst = n
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				*dst = parsed
			}
		}
	}
}

func setBool(raw map[string]any, key string, dst *bool) {
	if v, ok := raw[key]; ok {
		switch b := v.(type) {
		case bool:
			*dst = b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				*dst = parsed
			}
		}
	}
}

func setString(raw map[string]any, key string, dst *string) {
	if v, ok := raw[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			*dst = s
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
