// Package sessionscmder provides the sessions command for browsing, exporting
// and deleting chats saved on the esca backend.
package sessionscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/conversation"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/utils"
)

const sessionsLongDesc string = `Browse the chats saved on the esca backend.

Every chat turn is saved to the backend as it completes. Sessions are listed
newest first.

Examples:
  esca sessions list
  esca sessions show 3f2a...
  esca sessions export 3f2a... --output chat.md
  esca sessions delete 3f2a...`

const sessionsShortDesc string = "Browse saved chats"

// titleWidth bounds the title column of the session list.
const titleWidth = 40

type sessionsCommander struct {
	client     *backend.Client
	appearance cliui.Appearance
}

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   sessionsShortDesc,
		Long:    sessionsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
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

			cmder.client = backend.NewClient(cfg.Backend.Target, backend.WithLogger(log))
			cmder.appearance = cliui.Appearance{
				Theme:       cfg.Appearance.Theme,
				AccentColor: cfg.Appearance.AccentColor,
				WordWrap:    cfg.Appearance.WordWrap,
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.list(cmd.Context(), cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.show(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.delete(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})

	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved chat as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return cmder.export(cmd.Context(), cmd.OutOrStdout(), args[0], output)
		},
	}
	exportCmd.Flags().StringP("output", "o", "", `Output file ("-" for stdout, default chat_export_<date>.md)`)
	cmd.AddCommand(exportCmd)

	return cmd
}

func (c *sessionsCommander) list(ctx context.Context, out io.Writer) error {
	sessions, err := c.client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No saved chats."))
		return nil
	}

	fmt.Fprintln(out)
	for _, s := range sessions {
		updated := s.UpdatedAt
		if t := s.Updated(); !t.IsZero() {
			updated = t.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "  %s  %-*s  %s\n",
			cliui.DimStyle.Render(s.ID),
			titleWidth, utils.Truncate(s.Title, titleWidth),
			cliui.StepStyle.Render(updated),
		)
	}
	fmt.Fprintln(out)
	return nil
}

func (c *sessionsCommander) show(ctx context.Context, out io.Writer, id string) error {
	session, err := c.client.GetSession(ctx, id)
	if err != nil {
		return lookupError(id, err)
	}

	accent := cliui.AccentStyle(c.appearance.AccentColor)

	fmt.Fprintf(out, "\n  %s %s\n", cliui.NameStyle.Render(session.Title), cliui.DimStyle.Render(session.ID))
	for _, turn := range session.History {
		fmt.Fprintf(out, "\n%s %s\n", accent.Render("you>"), turn.User)
		rendered, _ := cliui.RenderMarkdown(turn.Bot, c.appearance)
		fmt.Fprintf(out, "%s\n%s\n", cliui.StepStyle.Render("esca>"), rendered)
	}
	return nil
}

func (c *sessionsCommander) delete(ctx context.Context, out io.Writer, id string) error {
	if err := c.client.DeleteSession(ctx, id); err != nil {
		return lookupError(id, err)
	}

	fmt.Fprintf(out, "  %s Deleted %s\n", cliui.SuccessMark, cliui.DimStyle.Render(id))
	return nil
}

func (c *sessionsCommander) export(ctx context.Context, out io.Writer, id, output string) error {
	session, err := c.client.GetSession(ctx, id)
	if err != nil {
		return lookupError(id, err)
	}

	now := time.Now()
	if output == "-" {
		return conversation.WriteMarkdown(out, session.History, now)
	}
	if output == "" {
		output = conversation.ExportFilename(now)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	err = conversation.WriteMarkdown(f, session.History, now)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Exported to %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(output))
	return nil
}

func lookupError(id string, err error) error {
	if errors.Is(err, backend.ErrSessionNotFound) {
		return fmt.Errorf("no saved chat with id %q", id)
	}
	return err
}
