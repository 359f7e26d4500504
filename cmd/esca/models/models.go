// Package modelscmder provides the models command for listing, loading and
// downloading the GGUF models served by the esca backend.
package modelscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/download"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
)

const modelsLongDesc string = `List, load and download GGUF models.

The backend serves every .gguf file in its models directory. Loading a model
replaces the one in memory and records it as model.name in settings.toml.

Examples:
  esca models list
  esca models load qwen2.5-7b-instruct-q4_k_m.gguf --gpu-layers -1
  esca models pick
  esca models download https://huggingface.co/org/repo/blob/main/model.gguf`

const modelsShortDesc string = "List, load and download models"

type modelsCommander struct {
	configDir  string
	cfg        *config.Config
	client     *backend.Client
	logger     *slog.Logger
	ctxSize    int
	gpuLayers  int
	loadAfter  bool
	pollPeriod time.Duration
}

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   modelsShortDesc,
		Long:    modelsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := config.Resolve(cmd,
				config.FlagBackend,
				config.FlagModel,
				config.FlagCtx,
				config.FlagGPULayers,
			)
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(
				logger.WithDebug(debug),
				logger.WithPretty(true),
				logger.WithWriter(cmd.ErrOrStderr()),
			)

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.cfg = cfg
			cmder.client = backend.NewClient(cfg.Backend.Target, backend.WithLogger(cmder.logger))
			return nil
		},
	}

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newLoadCmd())
	cmd.AddCommand(cmder.newPickCmd())
	cmd.AddCommand(cmder.newDownloadCmd())

	return cmd
}

// addLoadFlags registers the flags that shape a load_model request. Their
// values reach the request through the resolved settings.
func (c *modelsCommander) addLoadFlags(cmd *cobra.Command) {
	config.AddIntFlag(cmd, config.Flags, config.FlagCtx, &c.ctxSize)
	config.AddIntFlag(cmd, config.Flags, config.FlagGPULayers, &c.gpuLayers)
}

func (c *modelsCommander) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the models available on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.list(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (c *modelsCommander) newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [name]",
		Short: "Load a model into the backend",
		Long: `Load a model into the backend.

Without a name the configured model.name is loaded. --ctx and --gpu-layers
default to model.ctx and model.gpu_layers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := c.cfg.Model.Name
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return errors.New(`no model given and model.name is not set (see "esca models list")`)
			}
			return c.load(cmd.Context(), cmd.OutOrStdout(), name)
		},
	}
	c.addLoadFlags(cmd)
	return cmd
}

func (c *modelsCommander) newPickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose a model interactively and load it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := c.client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			name, err := cliui.PickModel(models, c.cfg.Model.Name,
				bubbletea.WithInput(cmd.InOrStdin()),
				bubbletea.WithOutput(cmd.OutOrStdout()),
				bubbletea.WithContext(cmd.Context()),
			)
			if errors.Is(err, cliui.ErrPickCancelled) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", cliui.DimStyle.Render("No model selected."))
				return nil
			}
			if err != nil {
				return err
			}
			return c.load(cmd.Context(), cmd.OutOrStdout(), name)
		},
	}
	c.addLoadFlags(cmd)
	return cmd
}

func (c *modelsCommander) newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a .gguf model into the backend's models directory",
		Long: `Download a .gguf model into the backend's models directory.

Hugging Face "blob" page links are rewritten to direct "resolve" links.
Progress is polled until the download completes; Ctrl+C stops watching but
the backend keeps downloading.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.download(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().BoolVar(&c.loadAfter, "load", false, "Load the model once the download completes")
	cmd.Flags().DurationVar(&c.pollPeriod, "poll-interval", download.DefaultPollInterval, "Time between progress polls")
	_ = cmd.Flags().MarkHidden("poll-interval")
	c.addLoadFlags(cmd)
	return cmd
}

func (c *modelsCommander) list(ctx context.Context, out io.Writer) error {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	if len(models) == 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No models found. Use \"esca models download <url>\" to fetch one."))
		return nil
	}

	fmt.Fprintln(out)
	for _, m := range models {
		if m == c.cfg.Model.Name {
			fmt.Fprintf(out, "  %s %s\n", cliui.NameStyle.Render(m), cliui.DimStyle.Render("(current)"))
			continue
		}
		fmt.Fprintf(out, "  %s\n", cliui.ValueStyle.Render(m))
	}
	fmt.Fprintln(out)
	return nil
}

func (c *modelsCommander) load(ctx context.Context, out io.Writer, name string) error {
	req := backend.LoadModelRequest{
		Model:      name,
		NCtx:       c.cfg.Model.Ctx,
		NGPULayers: c.cfg.Model.GPULayers,
	}

	fmt.Fprintln(out)
	msg := fmt.Sprintf("Loading %s (ctx %d, gpu layers %d)", name, req.NCtx, req.NGPULayers)
	err := cliui.Step(out, msg, func() error {
		return c.client.LoadModel(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if err := cfger.SetConfigValue("model.name", name); err != nil {
		// The model is loaded; only the remembered default is stale.
		c.logger.Warn("saving model name", "model", name, "error", err)
	}

	fmt.Fprintln(out)
	return nil
}

func (c *modelsCommander) download(ctx context.Context, out io.Writer, rawURL string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	accent := c.cfg.Appearance.AccentColor
	watcher := download.NewWatcher(c.client,
		download.WithPollInterval(c.pollPeriod),
		download.WithLogger(c.logger),
	)

	fmt.Fprintln(out)
	name, err := watcher.Run(ctx, rawURL, func(status backend.DownloadStatus) {
		fmt.Fprintf(out, "\r  %s %s", cliui.ProgressBar(status.Progress, accent), cliui.DimStyle.Render(status.Filename))
	})
	fmt.Fprintln(out)

	var dlErr *download.Error
	switch {
	case err == nil:
		fmt.Fprintf(out, "  %s Downloaded %s\n", cliui.SuccessMark, cliui.NameStyle.Render(name))

	case errors.Is(err, context.Canceled) && name == "":
		fmt.Fprintf(out, "  %s %s\n", cliui.DimStyle.Render("●"),
			cliui.DimStyle.Render("Interrupted before the backend accepted the download."))
		return nil

	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "  %s %s\n", cliui.DimStyle.Render("●"),
			cliui.DimStyle.Render("Stopped watching; the backend keeps downloading "+name+"."))
		return nil

	case errors.As(err, &dlErr):
		return fmt.Errorf("downloading %s: %s", dlErr.Filename, dlErr.Message)

	default:
		return fmt.Errorf("downloading model: %w", err)
	}

	if !c.loadAfter {
		fmt.Fprintln(out)
		return nil
	}
	return c.load(ctx, out, name)
}
