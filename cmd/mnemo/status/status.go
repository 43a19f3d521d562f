// Package statuscmder provides the status command for displaying the
// gateway's current mode and degradation state.
package statuscmder

import (
	"context"
	"fmt"
	"strconv"
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

const statusLongDesc string = `Show the gateway's current mode.

Reads the shared state store directly, so status works during incidents even
if the admin API is down. Displays the base mode, the effective mode, the
forced-degradation record if one exists, and the consecutive failure streak.

Examples:
  mnemo status
  mnemo status --state-provider redis --state-target localhost:6379`

const statusShortDesc string = "Show the gateway's current mode"

type StatusCommander struct {
	stateProvider string
	stateTarget   string
}

func NewStatusCmd() *cobra.Command {
	cmder := &StatusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
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

func (c *StatusCommander) run(cfg *config.Config) error {
	ctx := context.Background()

	store, err := factory.Open(ctx, cfg.State.Provider, cfg.State.Target)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	logger := zap.NewNop()
	metrics := gateway.NewMetrics(prometheus.NewRegistry())
	controller := gateway.NewModeController(store, cfg.BaseMode, metrics, nop.NewPublisher(), logger)
	detector := gateway.NewFailureDetector(store, cfg.FailureWindow(), logger)

	effective := controller.EffectiveMode(ctx)

	fmt.Printf("\n  %s  %s\n", cliui.KeyStyle.Render("Base mode:     "), renderMode(cfg.BaseMode()))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Effective mode:"), renderMode(effective))

	record, err := controller.Forced(ctx)
	switch {
	case err != nil:
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Forced:        "), cliui.DimStyle.Render("unknown (state store unreachable)"))
	case record == nil:
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Forced:        "), cliui.DimStyle.Render("no"))
	default:
		remaining := time.Until(record.Until).Round(time.Second)
		fmt.Printf("  %s  %s (reason: %s, %s)\n",
			cliui.KeyStyle.Render("Forced:        "),
			cliui.ModeDegradedStyle.Render("yes"),
			cliui.ValueStyle.Render(record.Reason),
			cliui.DimStyle.Render(renderRemaining(remaining)),
		)
	}

	count, err := detector.Count(ctx)
	if err == nil {
		fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Failure streak:"), cliui.ValueStyle.Render(strconv.FormatInt(count, 10)))
	} else {
		fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Failure streak:"), cliui.DimStyle.Render("unknown"))
	}

	return nil
}

func renderMode(mode gateway.Mode) string {
	switch mode {
	case gateway.ModeReadWrite:
		return cliui.ModeHealthyStyle.Render(string(mode))
	case gateway.ModeWriteOnly:
		return cliui.ModeDegradedStyle.Render(string(mode))
	default:
		return cliui.ModeOffStyle.Render(string(mode))
	}
}

func renderRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "hold expired, awaiting probe"
	}
	return cliui.FormatDuration(remaining) + " remaining"
}
