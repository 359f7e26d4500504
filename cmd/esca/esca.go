// Package escacmder
package escacmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/chat"
	configcmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/config"
	initcmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/init"
	modelscmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/models"
	personacmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/persona"
	sessionscmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/sessions"
	statuscmder "github.com/Esca-Byte/ESCA-GGUF/cmd/esca/status"
	versioncmder "github.com/Esca-Byte/ESCA-GGUF/cmd/version"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/config"
)

const escaLongDesc string = `Esca is a terminal chat client for a local llama.cpp GGUF backend.

Chat with the loaded model, manage models and saved sessions:
  esca chat                 Start an interactive chat
  esca models list          List the backend's .gguf models
  esca models pick          Choose and load a model
  esca sessions list        List saved chats

Settings live in .esca/settings.toml (see "esca config").`

const escaShortDesc string = "Esca - local GGUF chat"

// NewEscaCmd returns the root command with every subcommand attached.
func NewEscaCmd() *cobra.Command {
	var backendTarget string

	cmd := &cobra.Command{
		Use:          "esca",
		Short:        escaShortDesc,
		Long:         escaLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .esca/ settings directory")
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagBackend, &backendTarget)

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(personacmder.NewPersonaCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
