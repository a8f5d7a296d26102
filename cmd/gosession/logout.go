package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the persisted session",
		Long: `Sign out. The persisted session and access token are removed even when
the backend cannot be reached.`,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(ctx, "Sign out?", true)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			if err := a.manager.Logout(ctx); err != nil {
				return err
			}
			if err := a.clearCredentials(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("stored access token not removed")
			}
			fmt.Fprintln(a.out, okStyle.Render("Signed out."))
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
