package conversation

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
)

// ExportFilename is the default file name for an export made at now.
func ExportFilename(now time.Time) string {
	return "chat_export_" + now.UTC().Format("2006-01-02") + ".md"
}

// ExportMarkdown writes the history as a Markdown transcript.
func (c *Conversation) ExportMarkdown(w io.Writer, now time.Time) error {
	return WriteMarkdown(w, c.History(), now)
}

// WriteMarkdown writes turns as a Markdown transcript headed with the export
// time. An empty history is ErrEmptyHistory.
func WriteMarkdown(w io.Writer, turns []backend.Turn, now time.Time) error {
	if len(turns) == 0 {
		return ErrEmptyHistory
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Chat Export - %s \n\n", now.Format("2006-01-02 15:04:05"))
	for _, t := range turns {
		fmt.Fprintf(bw, "### User\n%s \n\n### Assistant\n%s \n\n", t.User, t.Bot)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}
