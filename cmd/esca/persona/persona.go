// Package personacmder provides the persona command for listing the built-in
// personas and applying one as the default system prompt.
package personacmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/cliui"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/persona"
)

const personaLongDesc string = `List and apply built-in personas.

A persona is a named system prompt. Applying one stores its prompt as
generation.system_prompt in settings.toml; inside "esca chat" the /persona
command switches persona for the running chat only.

Examples:
  esca persona list
  esca persona apply coder`

const personaShortDesc string = "List and apply personas"

func NewPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: personaShortDesc,
		Long:  personaLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newApplyCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printPersonas(cmd.OutOrStdout())
			return nil
		},
	}
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <name>",
		Short: "Store a persona's prompt as the default system prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runApply(cmd.OutOrStdout(), args[0], configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return persona.Names(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}
}

// printPersonas writes the persona table.
func printPersonas(out io.Writer) {
	personas := persona.List()

	maxLen := 0
	for _, p := range personas {
		maxLen = max(maxLen, len(p.Name))
	}

	fmt.Fprintln(out)
	for _, p := range personas {
		name := strings.ToLower(p.Name)
		fmt.Fprintf(out, "  %s%s  %s\n",
			cliui.NameStyle.Render(name),
			strings.Repeat(" ", maxLen-len(name)),
			cliui.DimStyle.Render(p.Description),
		)
	}
	fmt.Fprintln(out)
}

func runApply(out io.Writer, name, configDir string) error {
	p, err := persona.Get(name)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if err := cfger.SetConfigValue("generation.system_prompt", p.Prompt); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Applied persona %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(p.Name))
	return nil
}
