// Package configcmder provides the config command for managing persistent
// esca settings stored in the .esca/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent esca settings.

Settings are stored as settings.toml in the .esca/ directory and provide
default values for command flags. CLI flags and ESCA_* environment
variables always take precedence over settings file values.

Keys use dotted notation matching the TOML section structure:
  backend.target,
  model.name, model.ctx, model.gpu_layers,
  generation.max_tokens, generation.temperature, generation.top_p,
  generation.system_prompt,
  appearance.theme, appearance.accent_color, appearance.word_wrap

Use subcommands to get, set, or list settings:
  esca config set <key> <value>    Set a value
  esca config get <key>            Get a value
  esca config list                 List all values
  esca config preset <name>        Apply a generation preset

A running "esca chat" picks up changes immediately.

Examples:
  esca config set backend.target http://gpu-box:5000
  esca config set generation.temperature 0.2
  esca config get model.name
  esca config preset creative`

const configShortDesc string = "Manage persistent esca settings"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPresetCmd())

	return cmd
}
