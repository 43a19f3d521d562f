// Package forcecmder provides the force command for manually downgrading
// the gateway to write-only mode.
package forcecmder

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/cliui"
	"github.com/mnemohq/mnemo/pkg/config"
	"github.com/mnemohq/mnemo/pkg/eventstream/nop"
	"github.com/mnemohq/mnemo/pkg/gateway"
	"github.com/mnemohq/mnemo/pkg/statestore/factory"
)

const forceLongDesc string = `Force the gateway into write-only mode.

Writes a forced-degradation record with reason "manual" to the shared state
store. Every gateway instance sharing the store observes the downgrade on
its next call. Reads resume automatically once the hold expires and a
recovery probe succeeds, or immediately after "mnemo clear".

This command talks to the state store directly, so it works during
incidents even if the admin API is down.

Examples:
  mnemo force
  mnemo force --hold 900`

const forceShortDesc string = "Force write-only mode"

type ForceCommander struct {
	stateProvider string
	stateTarget   string
	holdSeconds   uint
}

func NewForceCmd() *cobra.Command {
	cmder := &ForceCommander{}

	cmd := &cobra.Command{
		Use:   "force",
		Short: forceShortDesc,
		Long:  forceLongDesc,
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
				config.FlagHold,
			})

			return cmder.run(config.FromViper(v))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStateProvider, &cmder.stateProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStateTarget, &cmder.stateTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagHold, &cmder.holdSeconds)

	return cmd
}

func (c *ForceCommander) run(cfg *config.Config) error {
	ctx := context.Background()

	store, err := factory.Open(ctx, cfg.State.Provider, cfg.State.Target)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	metrics := gateway.NewMetrics(prometheus.NewRegistry())
	controller := gateway.NewModeController(store, cfg.BaseMode, metrics, nop.NewPublisher(), zap.NewNop())

	hold := cfg.Hold()
	if err := controller.ForceWriteOnly(ctx, gateway.ReasonManual, hold); err != nil {
		return fmt.Errorf("forcing write-only mode: %w", err)
	}

	fmt.Printf("\n  %s Forced %s for %s\n\n",
		cliui.SuccessMark,
		cliui.ModeDegradedStyle.Render(string(gateway.ModeWriteOnly)),
		cliui.ValueStyle.Render(cliui.FormatDuration(hold.Round(time.Second))),
	)
	return nil
}
