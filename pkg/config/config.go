// Package config loads, validates and persists esca user settings.
//
// Settings live in settings.toml inside the esca directory resolved by
// pkg/dotdir. InitViper layers environment variables and CLI flags on top of
// the file for commands that accept per-invocation overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/dotdir"
)

const (
	configFile = "settings.toml"

	// v0 is the first version of the settings file
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	// The directory exists, so SaveConfig can create the file even if it
	// is not there yet.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported setting keys in settings-file order.
func ValidConfigKeys() []string {
	ordered := []string{
		"backend.target",
		"model.name",
		"model.ctx",
		"model.gpu_layers",
		"generation.max_tokens",
		"generation.temperature",
		"generation.top_p",
		"generation.system_prompt",
		"appearance.theme",
		"appearance.accent_color",
		"appearance.word_wrap",
	}

	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported setting key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// Value returns the string form of key on cfg, or "" for unknown keys.
func Value(cfg *Config, key string) string {
	info, ok := configKeys[key]
	if !ok || cfg == nil {
		return ""
	}
	return info.get(cfg)
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads settings.toml from the esca directory. A missing file
// yields NewDefaultConfig(); keys absent from the file keep their defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	return ParseConfigTOML(data)
}

// applyDefaults fills fields that are empty or zero where zero is never a
// usable value.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Backend.Target == "" {
		cfg.Backend.Target = defaults.Backend.Target
	}
	if cfg.Model.Ctx == 0 {
		cfg.Model.Ctx = defaults.Model.Ctx
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaults.Generation.MaxTokens
	}
	if cfg.Appearance.Theme == "" {
		cfg.Appearance.Theme = defaults.Appearance.Theme
	}
	if cfg.Appearance.AccentColor == "" {
		cfg.Appearance.AccentColor = defaults.Appearance.AccentColor
	}
	if cfg.Appearance.WordWrap == 0 {
		cfg.Appearance.WordWrap = defaults.Appearance.WordWrap
	}
}

// SaveConfig persists the configuration to settings.toml.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil settings")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	return nil
}

// SetConfigValue loads the settings, sets key to value, and saves them.
// Returns an error if the key is unknown or the value is out of range.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the settings and returns the string form of key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a copy of base with the generation parameters of the
// named preset applied. Supported presets: "precise", "balanced", "creative".
func PresetConfig(base *Config, name string) (*Config, error) {
	if base == nil {
		base = NewDefaultConfig()
	}
	cfg := *base

	switch strings.ToLower(name) {
	case "precise":
		cfg.Generation.Temperature = 0.2
		cfg.Generation.TopP = 0.9

	case "balanced":
		cfg.Generation.Temperature = defaultTemperature
		cfg.Generation.TopP = defaultTopP

	case "creative":
		cfg.Generation.Temperature = 1.1
		cfg.Generation.TopP = 0.98

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return &cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"precise", "balanced", "creative"}
}

// ParseConfigTOML parses raw TOML bytes on top of the defaults and validates
// the result. Returns an error if the version field is present and not equal
// to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing settings TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported settings version %d (expected %d)", cfg.Version, CurrentV)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return cfg, nil
}
