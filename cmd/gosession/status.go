package main

import (
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted session",
		Long: `Show the session restored from Redis.

With --check the session is reconciled against the backend first; a session
the backend no longer recognizes is cleared.`,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if check {
				if err := a.manager.CheckSession(ctx); err != nil {
					return fmt.Errorf("session check failed: %s", goSession.UserMessage(err))
				}
				if a.manager.State().User == nil {
					if err := a.clearCredentials(ctx); err != nil {
						a.logger.Warn().Err(err).Msg("stored access token not removed")
					}
				}
			}
			printState(a.out, a.manager.State())
			return nil
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "reconcile with the backend before printing")
	return cmd
}
