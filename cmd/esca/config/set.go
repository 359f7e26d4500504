package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
)

const setLongDesc string = `Set a settings value.

Sets the given key to the provided value in the settings.toml file
stored in the .esca/ directory. Values are validated before they are
written: temperature 0..2, top_p 0..1, ctx 512..131072, gpu_layers
-1..999, max_tokens >= 1, word_wrap >= 20, accent_color #rrggbb and
theme one of auto, dark, light, dracula, tokyo-night, pink, ascii, notty.

Examples:
  esca config set backend.target http://localhost:5000
  esca config set model.gpu_layers -1
  esca config set appearance.theme dracula`

const setShortDesc string = "Set a settings value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runSet(out io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKeyError(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	printTarget(out, cfger)

	err = cfger.SetConfigValue(key, value)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
