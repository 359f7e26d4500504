package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads settings.toml (if found via
// dotdir resolution), and binds environment variables with the ESCA_ prefix.
//
// Precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ESCA_BACKEND_TARGET, ESCA_GENERATION_TOP_P, etc.)
//  3. settings.toml values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName(strings.TrimSuffix(configFile, ".toml"))
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Missing settings file is fine, defaults apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
	}

	v.SetEnvPrefix("ESCA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Reload re-reads the settings file layer of v. Flag and environment
// overrides keep their precedence.
func Reload(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return fmt.Errorf("reloading settings: %w", err)
		}
	}
	return nil
}

// FromViper assembles a validated Config from the merged viper view.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Backend: BackendConfig{
			Target: v.GetString("backend.target"),
		},
		Model: ModelConfig{
			Name:      v.GetString("model.name"),
			Ctx:       v.GetInt("model.ctx"),
			GPULayers: v.GetInt("model.gpu_layers"),
		},
		Generation: GenerationConfig{
			MaxTokens:    v.GetInt("generation.max_tokens"),
			Temperature:  v.GetFloat64("generation.temperature"),
			TopP:         v.GetFloat64("generation.top_p"),
			SystemPrompt: v.GetString("generation.system_prompt"),
		},
		Appearance: AppearanceConfig{
			Theme:       v.GetString("appearance.theme"),
			AccentColor: v.GetString("appearance.accent_color"),
			WordWrap:    v.GetInt("appearance.word_wrap"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("backend.target", d.Backend.Target)

	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.ctx", d.Model.Ctx)
	v.SetDefault("model.gpu_layers", d.Model.GPULayers)

	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.top_p", d.Generation.TopP)
	v.SetDefault("generation.system_prompt", d.Generation.SystemPrompt)

	v.SetDefault("appearance.theme", d.Appearance.Theme)
	v.SetDefault("appearance.accent_color", d.Appearance.AccentColor)
	v.SetDefault("appearance.word_wrap", d.Appearance.WordWrap)
}
