// Package invalidatecmder provides the invalidate command for busting
// cached context.
package invalidatecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/cliui"
	"github.com/mnemohq/mnemo/pkg/config"
	"github.com/mnemohq/mnemo/pkg/gateway"
	"github.com/mnemohq/mnemo/pkg/statestore/factory"
)

const invalidateLongDesc string = `Bust cached context for a conversation.

Removes the conversation's cached entries for every fetch mode from the
shared state store. The next read goes straight to the memory service.

Examples:
  mnemo invalidate conv-8a61f
  mnemo invalidate conv-8a61f --state-provider redis --state-target localhost:6379`

const invalidateShortDesc string = "Bust cached context for a conversation"

type InvalidateCommander struct {
	stateProvider string
	stateTarget   string
}

func NewInvalidateCmd() *cobra.Command {
	cmder := &InvalidateCommander{}

	cmd := &cobra.Command{
		Use:   "invalidate <conversation_id>",
		Short: invalidateShortDesc,
		Long:  invalidateLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagStateProvider,
				config.FlagStateTarget,
			})

			return cmder.run(config.FromViper(v), args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStateProvider, &cmder.stateProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStateTarget, &cmder.stateTarget)

	return cmd
}

func (c *InvalidateCommander) run(cfg *config.Config, conversationID string) error {
	ctx := context.Background()

	store, err := factory.Open(ctx, cfg.State.Provider, cfg.State.Target)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	cache := gateway.NewContextCache(store, cfg.CachePositiveTTL(), cfg.CacheNegativeTTL(), zap.NewNop())

	if err := cache.Invalidate(ctx, conversationID); err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}

	fmt.Printf("\n  %s Invalidated cached context for %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(conversationID),
	)
	return nil
}
