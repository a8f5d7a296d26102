package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
)

func newPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "permissions",
		Aliases: []string{"perms"},
		Short:   "Show module permissions, refreshing them when stale",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if err := a.restore(ctx); err != nil {
				return err
			}
			if a.manager.State().User == nil {
				return errors.New("not signed in")
			}
			a.manager.FetchPermissions(ctx)
			printPermissions(a.out, a.manager.Permissions(), time.Now())
			return nil
		}),
	}
}
