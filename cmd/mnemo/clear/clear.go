// Package clearcmder provides the clear command for lifting a forced
// downgrade.
package clearcmder

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/cliui"
	"github.com/mnemohq/mnemo/pkg/config"
	"github.com/mnemohq/mnemo/pkg/eventstream/nop"
	"github.com/mnemohq/mnemo/pkg/gateway"
	"github.com/mnemohq/mnemo/pkg/statestore/factory"
)

const clearLongDesc string = `Lift a forced downgrade.

Deletes the forced-degradation record from the shared state store, restoring
the configured base mode immediately without waiting for a recovery probe.

Examples:
  mnemo clear`

const clearShortDesc string = "Lift a forced downgrade"

type ClearCommander struct {
	stateProvider string
	stateTarget   string
}

func NewClearCmd() *cobra.Command {
	cmder := &ClearCommander{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: clearShortDesc,
		Long:  clearLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagStateProvider,
				config.FlagStateTarget,
			})

			return cmder.run(config.FromViper(v))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStateProvider, &cmder.stateProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStateTarget, &cmder.stateTarget)

	return cmd
}

func (c *ClearCommander) run(cfg *config.Config) error {
	ctx := context.Background()

	store, err := factory.Open(ctx, cfg.State.Provider, cfg.State.Target)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	metrics := gateway.NewMetrics(prometheus.NewRegistry())
	controller := gateway.NewModeController(store, cfg.BaseMode, metrics, nop.NewPublisher(), zap.NewNop())

	record, err := controller.Forced(ctx)
	if err != nil {
		return fmt.Errorf("reading forced mode: %w", err)
	}
	if record == nil {
		fmt.Printf("\n  %s No forced mode to clear.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	if err := controller.ClearForcedMode(ctx); err != nil {
		return fmt.Errorf("clearing forced mode: %w", err)
	}

	fmt.Printf("\n  %s Cleared forced mode (was: %s), base mode %s restored\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(record.Reason),
		cliui.ModeHealthyStyle.Render(string(cfg.BaseMode())),
	)
	return nil
}
