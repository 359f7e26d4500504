// Package statuscmder provides the status command for displaying the
// settings in effect and whether the esca backend is reachable.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
)

const statusLongDesc string = `Show the esca settings in effect and the backend state.

Resolves the settings file, environment and flags, then contacts the backend
to count the available models and saved sessions. An unreachable backend is
reported, not treated as an error.

Examples:
  esca status
  esca status --backend http://gpu-box:5000`

const statusShortDesc string = "Show settings and backend state"

// probeTimeout bounds each backend call made by status.
const probeTimeout = 5 * time.Second

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := config.Resolve(cmd, config.FlagBackend)
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			log := logger.New(
				logger.WithDebug(debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}

			client := backend.NewClient(cfg.Backend.Target,
				backend.WithLogger(log),
				backend.WithTimeout(probeTimeout),
			)
			return runStatus(cmd.Context(), cmd.OutOrStdout(), cfger.GetTarget(), cfg, client)
		},
	}

	return cmd
}

func runStatus(ctx context.Context, out io.Writer, settingsFile string, cfg *config.Config, client *backend.Client) error {
	if settingsFile == "" {
		settingsFile = "<defaults>"
	}

	model := cfg.Model.Name
	if model == "" {
		model = "<not set>"
	}

	fmt.Fprintf(out, "\n  %s  %s\n", cliui.KeyStyle.Render("Settings:"), cliui.DimStyle.Render(settingsFile))
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Backend: "), cliui.ValueStyle.Render(client.BaseURL()))
	fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render("Model:   "), cliui.NameStyle.Render(model))

	models, err := client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(out, "  %s Backend unreachable: %v\n\n", cliui.FailMark, err)
		return nil
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		fmt.Fprintf(out, "  %s Listing sessions: %v\n\n", cliui.FailMark, err)
		return nil
	}

	fmt.Fprintf(out, "  %s Backend reachable\n", cliui.SuccessMark)
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Models:  "), cliui.ValueStyle.Render(strconv.Itoa(len(models))))
	fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render("Sessions:"), cliui.ValueStyle.Render(strconv.Itoa(len(sessions))))
	return nil
}
