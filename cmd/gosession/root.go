package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gosession",
		Short: "Sign in and inspect an authenticated session",
		Long: `gosession drives a session manager against an auth backend.

The session survives between invocations in Redis under the configured
prefix. Use --ephemeral to run against a throwaway in-process Redis.

Environment:
  GOSESSION_API_URL       backend base URL (default http://localhost:5000/api)
  GOSESSION_REDIS_ADDR    Redis address (default localhost:6379)
  GOSESSION_REDIS_PASSWORD
  GOSESSION_REDIS_DB
  GOSESSION_PREFIX        persisted key prefix (default gs)
  GOSESSION_LOG_LEVEL     trace|debug|info|warn|error (default warn)
  GOSESSION_TIMEOUT       per-request timeout (default 30s)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("api-url", "", "backend base URL")
	pf.String("redis-addr", "", "Redis address")
	pf.Int("redis-db", 0, "Redis database")
	pf.String("prefix", "", "persisted key prefix")
	pf.String("log-level", "", "log level")
	pf.String("timeout", "", "per-request timeout, e.g. 15s")
	pf.Bool("ephemeral", false, "use an in-process Redis discarded on exit")

	root.AddCommand(
		newLoginCmd(),
		newStatusCmd(),
		newPermissionsCmd(),
		newLogoutCmd(),
	)
	return root
}

// withApp builds the app for a subcommand run and closes it afterwards.
func withApp(run func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a)
	}
}
