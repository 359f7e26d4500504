// Package initcmder provides the init command for initializing a local .esca
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
)

const (
	dirName = ".esca"
)

const initLongDesc string = `Initialize a new .esca/ directory in the current working directory.

Creates a local .esca/ directory that takes precedence over the default
~/.esca/ directory, and writes a settings.toml holding the default settings
if none exists yet.

This is useful for keeping per-project backend targets or system prompts.

Examples:
  esca init`

const initShortDesc string = "Initialize a local .esca/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runInit(out io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .esca directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return err
	}

	fmt.Fprintf(out, "Initialized .esca directory: %s\n", dir)
	return nil
}
