// Package mnemocmder
package mnemocmder

import (
	"github.com/spf13/cobra"

	clearcmder "github.com/mnemohq/mnemo/cmd/mnemo/clear"
	configcmder "github.com/mnemohq/mnemo/cmd/mnemo/config"
	forcecmder "github.com/mnemohq/mnemo/cmd/mnemo/force"
	invalidatecmder "github.com/mnemohq/mnemo/cmd/mnemo/invalidate"
	servecmder "github.com/mnemohq/mnemo/cmd/mnemo/serve"
	statuscmder "github.com/mnemohq/mnemo/cmd/mnemo/status"
	versioncmder "github.com/mnemohq/mnemo/cmd/version"
)

const mnemoLongDesc string = `Mnemo is a self-healing gateway between your agents and their memory.

Run the gateway using:
  mnemo serve          Run the gateway and its admin API

Operate a running gateway using:
  mnemo status         Show the effective mode and failure streak
  mnemo force          Force write-only mode (incident response)
  mnemo clear          Lift a forced downgrade
  mnemo invalidate     Bust cached context for a conversation`

const mnemoShortDesc string = "Mnemo - Self-Healing Memory Gateway"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mnemo",
		Short: mnemoShortDesc,
		Long:  mnemoLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .mnemo/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(forcecmder.NewForceCmd())
	cmd.AddCommand(clearcmder.NewClearCmd())
	cmd.AddCommand(invalidatecmder.NewInvalidateCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
