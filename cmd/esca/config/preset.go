package configcmder

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
)

const presetLongDesc string = `Apply a generation preset.

Presets set generation.temperature and generation.top_p together:
  precise     temperature 0.2, top_p 0.9
  balanced    temperature 0.7, top_p 0.95 (the defaults)
  creative    temperature 1.1, top_p 0.98

Other settings are left unchanged.

Examples:
  esca config preset precise`

const presetShortDesc string = "Apply a generation preset"

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset <name>",
		Short: presetShortDesc,
		Long:  presetLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runPreset(cmd.OutOrStdout(), args[0], configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	return cmd
}

func runPreset(out io.Writer, name, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	current, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	cfg, err := config.PresetConfig(current, name)
	if err != nil {
		return err
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Applied preset %s (temperature %s, top_p %s)\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
		cliui.ValueStyle.Render(strconv.FormatFloat(cfg.Generation.Temperature, 'g', -1, 64)),
		cliui.ValueStyle.Render(strconv.FormatFloat(cfg.Generation.TopP, 'g', -1, 64)),
	)
	return nil
}
