package config

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
)

// Config represents the persistent esca settings stored as settings.toml in
// the .esca/ directory. The TOML layout uses sections for logical grouping.
//
// Numeric generation fields are never omitted on encode: zero is a
// meaningful temperature or GPU layer count.
type Config struct {
	Version    int              `toml:"version"`
	Backend    BackendConfig    `toml:"backend"`
	Model      ModelConfig      `toml:"model"`
	Generation GenerationConfig `toml:"generation"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// BackendConfig locates the esca HTTP backend.
type BackendConfig struct {
	Target string `toml:"target,omitempty"`
}

// ModelConfig holds the last selected model and its load parameters.
type ModelConfig struct {
	Name      string `toml:"name,omitempty"`
	Ctx       int    `toml:"ctx"`
	GPULayers int    `toml:"gpu_layers"`
}

// GenerationConfig holds the parameters sent with every chat request.
type GenerationConfig struct {
	MaxTokens    int     `toml:"max_tokens"`
	Temperature  float64 `toml:"temperature"`
	TopP         float64 `toml:"top_p"`
	SystemPrompt string  `toml:"system_prompt,omitempty"`
}

// AppearanceConfig controls terminal rendering of replies.
type AppearanceConfig struct {
	Theme       string `toml:"theme,omitempty"`
	AccentColor string `toml:"accent_color,omitempty"`
	WordWrap    int    `toml:"word_wrap"`
}

// Themes is the list of accepted appearance.theme values. They name
// glamour's standard styles; "auto" picks dark or light from the terminal
// background.
var Themes = []string{"auto", "dark", "light", "dracula", "tokyo-night", "pink", "ascii", "notty"}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"backend.target": {
		get: func(c *Config) string { return c.Backend.Target },
		set: func(c *Config, v string) error { c.Backend.Target = v; return nil },
	},
	"model.name": {
		get: func(c *Config) string { return c.Model.Name },
		set: func(c *Config, v string) error { c.Model.Name = v; return nil },
	},
	"model.ctx": {
		get: func(c *Config) string { return strconv.Itoa(c.Model.Ctx) },
		set: intSetter("model.ctx", validateCtx, func(c *Config, n int) { c.Model.Ctx = n }),
	},
	"model.gpu_layers": {
		get: func(c *Config) string { return strconv.Itoa(c.Model.GPULayers) },
		set: intSetter("model.gpu_layers", validateGPULayers, func(c *Config, n int) { c.Model.GPULayers = n }),
	},
	"generation.max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Generation.MaxTokens) },
		set: intSetter("generation.max_tokens", validateMaxTokens, func(c *Config, n int) { c.Generation.MaxTokens = n }),
	},
	"generation.temperature": {
		get: func(c *Config) string { return formatFloat(c.Generation.Temperature) },
		set: floatSetter("generation.temperature", validateTemperature, func(c *Config, f float64) { c.Generation.Temperature = f }),
	},
	"generation.top_p": {
		get: func(c *Config) string { return formatFloat(c.Generation.TopP) },
		set: floatSetter("generation.top_p", validateTopP, func(c *Config, f float64) { c.Generation.TopP = f }),
	},
	"generation.system_prompt": {
		get: func(c *Config) string { return c.Generation.SystemPrompt },
		set: func(c *Config, v string) error { c.Generation.SystemPrompt = v; return nil },
	},
	"appearance.theme": {
		get: func(c *Config) string { return c.Appearance.Theme },
		set: func(c *Config, v string) error {
			if err := validateTheme(v); err != nil {
				return err
			}
			c.Appearance.Theme = v
			return nil
		},
	},
	"appearance.accent_color": {
		get: func(c *Config) string { return c.Appearance.AccentColor },
		set: func(c *Config, v string) error {
			if err := validateAccentColor(v); err != nil {
				return err
			}
			c.Appearance.AccentColor = v
			return nil
		},
	},
	"appearance.word_wrap": {
		get: func(c *Config) string { return strconv.Itoa(c.Appearance.WordWrap) },
		set: intSetter("appearance.word_wrap", validateWordWrap, func(c *Config, n int) { c.Appearance.WordWrap = n }),
	},
}

func intSetter(key string, validate func(int) error, apply func(*Config, int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if err := validate(n); err != nil {
			return err
		}
		apply(c, n)
		return nil
	}
}

func floatSetter(key string, validate func(float64) error, apply func(*Config, float64)) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if !finite(f) {
			return fmt.Errorf("invalid value for %s: %q is not a finite number", key, v)
		}
		if err := validate(f); err != nil {
			return err
		}
		apply(c, f)
		return nil
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func validateCtx(n int) error {
	if n < 512 || n > 131072 {
		return fmt.Errorf("model.ctx must be between 512 and 131072, got %d", n)
	}
	return nil
}

// validateGPULayers accepts -1, llama.cpp's "offload every layer".
func validateGPULayers(n int) error {
	if n < -1 || n > 999 {
		return fmt.Errorf("model.gpu_layers must be between -1 and 999, got %d", n)
	}
	return nil
}

func validateMaxTokens(n int) error {
	if n < 1 {
		return fmt.Errorf("generation.max_tokens must be at least 1, got %d", n)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validateTemperature(f float64) error {
	if !finite(f) || f < 0 || f > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", f)
	}
	return nil
}

func validateTopP(f float64) error {
	if !finite(f) || f < 0 || f > 1 {
		return fmt.Errorf("generation.top_p must be between 0 and 1, got %g", f)
	}
	return nil
}

func validateTheme(v string) error {
	if !slices.Contains(Themes, v) {
		return fmt.Errorf("unknown appearance.theme %q (available: %v)", v, Themes)
	}
	return nil
}

func validateAccentColor(v string) error {
	if !hexColor.MatchString(v) {
		return fmt.Errorf("appearance.accent_color must look like #rrggbb, got %q", v)
	}
	return nil
}

func validateWordWrap(n int) error {
	if n < 20 {
		return fmt.Errorf("appearance.word_wrap must be at least 20, got %d", n)
	}
	return nil
}

// Validate checks every constrained field of c.
func (c *Config) Validate() error {
	checks := []error{
		validateCtx(c.Model.Ctx),
		validateGPULayers(c.Model.GPULayers),
		validateMaxTokens(c.Generation.MaxTokens),
		validateTemperature(c.Generation.Temperature),
		validateTopP(c.Generation.TopP),
		validateTheme(c.Appearance.Theme),
		validateAccentColor(c.Appearance.AccentColor),
		validateWordWrap(c.Appearance.WordWrap),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
