// Package chatcmder provides the chat command, an interactive terminal chat
// with the model loaded in the esca backend.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/conversation"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/dotdir"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/stream"
)

var assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("esca>")

// maxLineSize bounds a single line of input; pasted text can be long.
const maxLineSize = 4 * conversation.MaxAttachmentSize

const chatLongDesc string = `Start an interactive chat with the model loaded in the esca backend.

Replies stream in as they are generated and are rendered as Markdown. Every
completed turn is saved as a session on the backend; resume one with
--session or /load.

While a reply is streaming, Ctrl+C stops it and keeps what arrived so far.
At the prompt, Ctrl+C or Ctrl+D quits.

Generation flags override settings.toml for this chat. Edits to settings.toml
made while the chat runs (for example with "esca config set") apply to the
next message.

Type /help at the prompt for the chat commands.

Examples:
  esca chat
  esca chat --temperature 0.2 --system-prompt "Answer in one sentence."
  esca chat --session 3f2a...`

const chatShortDesc string = "Interactive chat with the loaded model"

type chatCommander struct {
	configDir string
	debug     bool
	sessionID string

	// Flag targets; the values in effect are read from cfg.
	maxTokens    int
	temperature  float64
	topP         float64
	systemPrompt string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logger *slog.Logger
	conv   *conversation.Conversation
	client *backend.Client

	mu      sync.Mutex
	v       *viper.Viper
	cfg     *config.Config
	persona *string
	pending []string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, cfg, err := config.Resolve(cmd,
				config.FlagBackend,
				config.FlagMaxTokens,
				config.FlagTemperature,
				config.FlagTopP,
				config.FlagSystemPrompt,
			)
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}

			cmder.v = v
			cmder.cfg = cfg
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTemperature, &cmder.temperature)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTopP, &cmder.topP)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.systemPrompt)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Resume a saved session by id")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cfg := c.settings()
	c.client = backend.NewClient(cfg.Backend.Target, backend.WithLogger(c.logger))
	c.conv = conversation.New(c.client, conversation.WithLogger(c.logger))

	fmt.Fprintln(c.out)
	if c.sessionID != "" {
		if err := c.conv.Load(ctx, c.sessionID); err != nil {
			return fmt.Errorf("loading session %s: %w", c.sessionID, err)
		}
		fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(c.conv.Title()),
			cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(c.conv.History()))),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New chat\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Backend:"),
		cliui.ValueStyle.Render(c.client.BaseURL()),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /help for commands, /exit or Ctrl+D to quit."))

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.watchSettings(ctx)
	}()
	go func() {
		defer wg.Done()
		c.handleInterrupts(ctx, cancel)
	}()

	lines, scanErr := c.readLines(ctx)

	for {
		fmt.Fprint(c.out, cliui.AccentStyle(c.settings().Appearance.AccentColor).Render("you>")+" ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			// EOF or error
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(ctx, input)
			if err != nil {
				fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			}
			if quit {
				return nil
			}
			continue
		}

		c.send(ctx, input)
		fmt.Fprintln(c.out)
	}

	if err := <-scanErr; err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// setupLogger logs to the terminal and, with --debug, also as JSON to the
// chat log in the esca directory.
func (c *chatCommander) setupLogger() (func(), error) {
	terminal := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)
	if !c.debug {
		c.logger = terminal
		return func() {}, nil
	}

	path, err := dotdir.NewManager().File(c.configDir, dotdir.LogFile)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(terminal, logger.New(
		logger.WithDebug(true),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() { _ = f.Close() }, nil
}

// readLines scans input on its own goroutine so an interrupt at the prompt
// can end the chat while a read is pending.
func (c *chatCommander) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	return lines, errs
}

// handleInterrupts stops the streaming reply on Ctrl+C, or ends the chat
// when nothing is streaming.
func (c *chatCommander) handleInterrupts(ctx context.Context, quit context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if c.conv.Busy() {
				c.conv.Stop()
				continue
			}
			quit()
		}
	}
}

// watchSettings applies settings.toml edits to the running chat.
func (c *chatCommander) watchSettings(ctx context.Context) {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		c.logger.Debug("settings watcher disabled", "error", err)
		return
	}

	err = cfger.Watch(ctx, c.reloadSettings)
	if err != nil {
		c.logger.Debug("settings watcher stopped", "error", err)
	}
}

func (c *chatCommander) reloadSettings() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := config.Reload(c.v); err != nil {
		c.logger.Warn("reloading settings", "error", err)
		return
	}
	cfg, err := config.FromViper(c.v)
	if err != nil {
		c.logger.Warn("ignoring invalid settings", "error", err)
		return
	}

	c.cfg = cfg
	c.logger.Debug("settings reloaded")
}

// settings returns the settings in effect.
func (c *chatCommander) settings() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *chatCommander) params(cfg *config.Config) conversation.Params {
	c.mu.Lock()
	defer c.mu.Unlock()

	prompt := cfg.Generation.SystemPrompt
	if c.persona != nil {
		prompt = *c.persona
	}
	return conversation.Params{
		MaxTokens:    cfg.Generation.MaxTokens,
		Temperature:  cfg.Generation.Temperature,
		TopP:         cfg.Generation.TopP,
		SystemPrompt: prompt,
	}
}

func appearance(cfg *config.Config) cliui.Appearance {
	return cliui.Appearance{
		Theme:       cfg.Appearance.Theme,
		AccentColor: cfg.Appearance.AccentColor,
		WordWrap:    cfg.Appearance.WordWrap,
	}
}

// send streams the reply to input, with any pending attachments appended.
func (c *chatCommander) send(ctx context.Context, input string) {
	c.mu.Lock()
	text := input + strings.Join(c.pending, "")
	c.pending = nil
	c.mu.Unlock()

	cfg := c.settings()
	live := cliui.NewLiveRenderer(c.out, appearance(cfg))

	fmt.Fprintln(c.out, assistantPrompt)
	reply, err := c.conv.Send(ctx, text, c.params(cfg), live.Render)
	live.Finish()

	if err != nil {
		if !errors.Is(err, conversation.ErrEmptyMessage) {
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
		}
		return
	}

	if reply.State == stream.Cancelled {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Reply stopped."))
	}
	if meta := cliui.Metrics(reply.Metadata); meta != "" {
		fmt.Fprintf(c.out, "  %s\n", meta)
	}
}
