package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so --backend means the same
// thing on "esca chat" and "esca models list".
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "backend.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagBackend      = "backend"
	FlagModel        = "model"
	FlagCtx          = "ctx"
	FlagGPULayers    = "gpu-layers"
	FlagMaxTokens    = "max-tokens"
	FlagTemperature  = "temperature"
	FlagTopP         = "top-p"
	FlagSystemPrompt = "system-prompt"
)

// Flags is the registry shared by every esca command.
var Flags = FlagSet{
	FlagBackend: {
		Name:        "backend",
		Shorthand:   "b",
		ViperKey:    "backend.target",
		Description: "Esca backend URL",
	},
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "model.name",
		Description: "Model file name (.gguf) in the backend's models directory",
	},
	FlagCtx: {
		Name:        "ctx",
		ViperKey:    "model.ctx",
		Description: "Context window size used when loading a model",
	},
	FlagGPULayers: {
		Name:        "gpu-layers",
		ViperKey:    "model.gpu_layers",
		Description: "Number of layers to offload to the GPU (-1 for all)",
	},
	FlagMaxTokens: {
		Name:        "max-tokens",
		ViperKey:    "generation.max_tokens",
		Description: "Maximum number of tokens to generate per reply",
	},
	FlagTemperature: {
		Name:        "temperature",
		Shorthand:   "t",
		ViperKey:    "generation.temperature",
		Description: "Sampling temperature",
	},
	FlagTopP: {
		Name:        "top-p",
		ViperKey:    "generation.top_p",
		Description: "Nucleus sampling probability mass",
	},
	FlagSystemPrompt: {
		Name:        "system-prompt",
		Shorthand:   "s",
		ViperKey:    "generation.system_prompt",
		Description: "System prompt sent with every message",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddPersistentStringFlag is AddStringFlag for flags inherited by subcommands.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.PersistentFlags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
// Flags inherited from parent commands are found as well.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(def.Name)
		}
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Resolve is the PreRunE helper shared by commands: it builds the viper
// chain for the --config-dir in effect, binds the given flags and returns
// the merged settings.
func Resolve(cmd *cobra.Command, registryKeys ...string) (*viper.Viper, *Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, nil, err
	}

	BindRegisteredFlags(v, cmd, Flags, registryKeys)

	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// defaults returns a viper instance holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
