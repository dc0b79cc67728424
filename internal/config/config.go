// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/muse-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete muse configuration.
type Config struct {
	OpenRouter OpenRouterConfig `toml:"openrouter"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	Storage    StorageConfig    `toml:"storage"`
	Audio      AudioConfig      `toml:"audio"`
	Log        LogConfig        `toml:"log"`
	UI         UIConfig         `toml:"ui"`
}

// OpenRouterConfig configures the language model provider.
type OpenRouterConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// SiteURL and SiteName are sent as HTTP-Referer and X-Title for
	// OpenRouter app attribution.
	SiteURL     string `toml:"site_url"`
	SiteName    string `toml:"site_name"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// ElevenLabsConfig configures narration speech synthesis.
type ElevenLabsConfig struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	ModelID         string  `toml:"model_id"`
	Stability       float64 `toml:"stability"`
	SimilarityBoost float64 `toml:"similarity_boost"`
	Style           float64 `toml:"style"`
	SpeakerBoost    bool    `toml:"speaker_boost"`
}

// StorageConfig selects where personas are persisted.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend"`
	// Path overrides the store file (empty = inside the config directory).
	Path       string `toml:"path"`
	QuotaBytes int64  `toml:"quota_bytes"`
}

// AudioConfig controls narration playback.
type AudioConfig struct {
	Muted bool `toml:"muted"`
	// Player is a command line used to play clips, e.g. "mpv --no-video {file}".
	// Empty means autodetect.
	Player   string `toml:"player"`
	Autoplay bool   `toml:"autoplay"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// UIConfig contains display preferences.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme        string `toml:"theme"`
	GlamourStyle string `toml:"glamour_style"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	DefaultElevenLabsURL = "https://api.elevenlabs.io/v1"
	DefaultSpeechModel   = "eleven_multilingual_v2"
	DefaultSiteName      = "Muse Chat"
	DefaultTimeoutSecs   = 60
	DefaultQuotaBytes    = 5 << 20
)

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		OpenRouter: OpenRouterConfig{
			BaseURL:     DefaultOpenRouterURL,
			SiteName:    DefaultSiteName,
			TimeoutSecs: DefaultTimeoutSecs,
		},
		ElevenLabs: ElevenLabsConfig{
			BaseURL:         DefaultElevenLabsURL,
			ModelID:         DefaultSpeechModel,
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Style:           0.5,
			SpeakerBoost:    true,
		},
		Storage: StorageConfig{
			Backend:    "file",
			QuotaBytes: DefaultQuotaBytes,
		},
		Audio: AudioConfig{
			Autoplay: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:        "auto",
			GlamourStyle: "auto",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the muse configuration directory (~/.muse).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".muse"), nil
}

// DefaultPath returns the path to the TOML config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the configured log file, or muse.log in the config dir.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "muse.log"), nil
}

// HistoryPath returns the line-mode REPL history file.
func HistoryPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// ensureSecurePermissions tightens the config file to 0600; it holds API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the TOML file at path (empty = DefaultPath). A missing file
// yields the defaults. Environment overrides are applied last, then the
// result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep the values
// already in cfg; keys present but empty are refilled from the defaults.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = defaults.OpenRouter.BaseURL
	}
	if cfg.OpenRouter.SiteName == "" {
		cfg.OpenRouter.SiteName = defaults.OpenRouter.SiteName
	}
	if cfg.OpenRouter.TimeoutSecs == 0 {
		cfg.OpenRouter.TimeoutSecs = defaults.OpenRouter.TimeoutSecs
	}

	if cfg.ElevenLabs.BaseURL == "" {
		cfg.ElevenLabs.BaseURL = defaults.ElevenLabs.BaseURL
	}
	if cfg.ElevenLabs.ModelID == "" {
		cfg.ElevenLabs.ModelID = defaults.ElevenLabs.ModelID
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.QuotaBytes == 0 {
		cfg.Storage.QuotaBytes = defaults.Storage.QuotaBytes
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.GlamourStyle == "" {
		cfg.UI.GlamourStyle = defaults.UI.GlamourStyle
	}
}

// ApplyEnvOverrides applies MUSE_* (and the providers' conventional)
// environment variables on top of the loaded file.
func (c *Config) ApplyEnvOverrides() {
	if key := firstEnv("MUSE_OPENROUTER_API_KEY", "OPENROUTER_API_KEY"); key != "" {
		c.OpenRouter.APIKey = key
	}
	if key := firstEnv("MUSE_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY"); key != "" {
		c.ElevenLabs.APIKey = key
	}
	if backend := os.Getenv("MUSE_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("MUSE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if muted := os.Getenv("MUSE_MUTED"); muted != "" {
		c.Audio.Muted = parseBool(muted)
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// SAVE
// =============================================================================

const fileHeader = `# muse configuration file
# Generated by muse - edit with care
#
# Environment overrides: MUSE_OPENROUTER_API_KEY, MUSE_ELEVENLABS_API_KEY,
# MUSE_STORAGE, MUSE_LOG_LEVEL, MUSE_MUTED

`

// Save writes cfg as TOML to path (empty = DefaultPath) with 0600
// permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors listing
// every problem found, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	checkURL := func(field, raw string) {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(field, "invalid URL '%s', must be http(s)://host[/path]", raw)
		}
	}
	checkURL("openrouter.base_url", c.OpenRouter.BaseURL)
	checkURL("elevenlabs.base_url", c.ElevenLabs.BaseURL)
	if c.OpenRouter.SiteURL != "" {
		checkURL("openrouter.site_url", c.OpenRouter.SiteURL)
	}

	if c.OpenRouter.TimeoutSecs < 0 || c.OpenRouter.TimeoutSecs > 600 {
		add("openrouter.timeout_secs", "must be between 0 and 600, got %d", c.OpenRouter.TimeoutSecs)
	}

	for field, v := range map[string]float64{
		"elevenlabs.stability":        c.ElevenLabs.Stability,
		"elevenlabs.similarity_boost": c.ElevenLabs.SimilarityBoost,
		"elevenlabs.style":            c.ElevenLabs.Style,
	} {
		if v < 0 || v > 1 {
			add(field, "must be between 0 and 1, got %g", v)
		}
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite", "memory":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		add("storage.quota_bytes", "must not be negative")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	if len(errs) > 0 {
		// map iteration order is random; keep messages stable
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by its TOML key (e.g. "audio.muted").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a configuration value by its TOML key. String values are
// converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return reflect.Value{}, fmt.Errorf("invalid key %q, expected section.name", key)
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, strings.ToLower(part))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	if v.Kind() == reflect.Struct {
		return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
	}
	return v, nil
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// AllKeys returns every configuration key in dot notation.
func AllKeys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// =============================================================================
// DISPLAY
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with API keys masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.OpenRouter.APIKey != "" {
		safe.OpenRouter.APIKey = "[REDACTED]"
	}
	if safe.ElevenLabs.APIKey != "" {
		safe.ElevenLabs.APIKey = "[REDACTED]"
	}
	return safe
}

// String renders the configuration as TOML with secrets redacted.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
