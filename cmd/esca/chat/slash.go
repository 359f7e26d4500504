package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/conversation"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/persona"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/utils"
)

const helpText = `Commands:
  /new               Start a new chat
  /sessions          List saved chats
  /load <id>         Continue a saved chat
  /delete <id>       Delete a saved chat
  /attach <path>     Attach a text file to the next message
  /export [path]     Save this chat as Markdown
  /persona [name]    Switch persona for this chat ("off" restores the settings prompt)
  /stop              How to stop a streaming reply
  /exit              Quit`

// command runs a slash command. quit reports whether the chat should end.
func (c *chatCommander) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprintf(c.out, "\n%s\n\n", cliui.DimStyle.Render(helpText))

	case "/stop":
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Press Ctrl+C while a reply is streaming to stop it."))

	case "/new":
		c.conv.NewChat()
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		fmt.Fprintf(c.out, "  %s New chat\n", cliui.DimStyle.Render("●"))

	case "/sessions":
		return false, c.listSessions(ctx)

	case "/load":
		if arg == "" {
			return false, errors.New("usage: /load <id>")
		}
		if err := c.conv.Load(ctx, arg); err != nil {
			return false, sessionError(arg, err)
		}
		fmt.Fprintf(c.out, "  %s Loaded %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(c.conv.Title()),
			cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(c.conv.History()))),
		)

	case "/delete":
		if arg == "" {
			return false, errors.New("usage: /delete <id>")
		}
		if err := c.conv.Delete(ctx, arg); err != nil {
			return false, sessionError(arg, err)
		}
		fmt.Fprintf(c.out, "  %s Deleted %s\n", cliui.SuccessMark, cliui.DimStyle.Render(arg))

	case "/attach":
		return false, c.attach(arg)

	case "/export":
		return false, c.export(arg)

	case "/persona":
		return false, c.switchPersona(arg)

	default:
		return false, fmt.Errorf("unknown command %s (type /help)", name)
	}

	return false, nil
}

func (c *chatCommander) listSessions(ctx context.Context) error {
	sessions, err := c.client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("No saved chats."))
		return nil
	}

	current := c.conv.SessionID()
	fmt.Fprintln(c.out)
	for _, s := range sessions {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		fmt.Fprintf(c.out, "  %s %s  %s\n", marker, cliui.DimStyle.Render(s.ID), utils.Truncate(s.Title, 40))
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) attach(path string) error {
	if path == "" {
		return errors.New("usage: /attach <path>")
	}

	block, err := conversation.Attach(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pending = append(c.pending, block)
	n := len(c.pending)
	c.mu.Unlock()

	fmt.Fprintf(c.out, "  %s Attached %s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(filepath.Base(path)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d pending, sent with your next message)", n)),
	)
	return nil
}

func (c *chatCommander) export(path string) error {
	now := time.Now()
	if path == "" {
		path = conversation.ExportFilename(now)
	}

	if len(c.conv.History()) == 0 {
		return conversation.ErrEmptyHistory
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}

	err = c.conv.ExportMarkdown(f, now)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Exported to %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(path))
	return nil
}

func (c *chatCommander) switchPersona(name string) error {
	switch strings.ToLower(name) {
	case "":
		c.printPersonas()
		return nil

	case "off", "none":
		c.mu.Lock()
		c.persona = nil
		c.mu.Unlock()
		fmt.Fprintf(c.out, "  %s Using the system prompt from settings\n", cliui.SuccessMark)
		return nil
	}

	p, err := persona.Get(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.persona = &p.Prompt
	c.mu.Unlock()

	fmt.Fprintf(c.out, "  %s Persona %s\n", cliui.SuccessMark, cliui.NameStyle.Render(p.Name))
	return nil
}

func (c *chatCommander) printPersonas() {
	fmt.Fprintln(c.out)
	for _, p := range persona.List() {
		fmt.Fprintf(c.out, "  %-12s %s\n", strings.ToLower(p.Name), cliui.DimStyle.Render(p.Description))
	}
	fmt.Fprintln(c.out)
}

func sessionError(id string, err error) error {
	if errors.Is(err, backend.ErrSessionNotFound) {
		return fmt.Errorf("no saved chat with id %q", id)
	}
	return err
}
