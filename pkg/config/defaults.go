package config

const (
	defaultBackendTarget = "http://localhost:5000"

	defaultModelCtx       = 8192
	defaultModelGPULayers = 0

	defaultMaxTokens   = 1500
	defaultTemperature = 0.7
	defaultTopP        = 0.95

	defaultTheme       = "dark"
	defaultAccentColor = "#3b82f6"
	defaultWordWrap    = 80
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			Target: defaultBackendTarget,
		},
		Model: ModelConfig{
			Ctx:       defaultModelCtx,
			GPULayers: defaultModelGPULayers,
		},
		Generation: GenerationConfig{
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
			TopP:        defaultTopP,
		},
		Appearance: AppearanceConfig{
			Theme:       defaultTheme,
			AccentColor: defaultAccentColor,
			WordWrap:    defaultWordWrap,
		},
	}
}
