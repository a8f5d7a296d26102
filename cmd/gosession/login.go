package main

import (
	"errors"
	"fmt"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

const maxOTPAttempts = 3

func newLoginCmd() *cobra.Command {
	var username, password, otp string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, answering the emailed code if one is requested",
		Long: `Sign in with a username and password. Missing values are prompted for.

When the backend requests an email verification code, it is read from --otp
or prompted for. A wrong code may be retried; an expired login session
requires signing in again.

Examples:
  gosession login
  gosession login --username lawyer@example.com
  GOSESSION_API_URL=https://api.example.com/api gosession login`,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if err := promptCredentials(ctx, &username, &password); err != nil {
				return err
			}

			res, err := a.manager.Login(ctx, goSession.LoginCredentials{
				Username: username,
				Password: password,
			})
			password = ""
			if err != nil {
				return fmt.Errorf("login failed: %s", goSession.UserMessage(err))
			}

			for attempt := 1; res.Type == goSession.LoginOTPRequired; attempt++ {
				code := otp
				otp = ""
				if code == "" {
					fmt.Fprintf(a.out, "A verification code was sent to %s.\n", res.OTPData.Email)
					if code, err = promptOTP(ctx, res.OTPData.Email); err != nil {
						return err
					}
				}
				res, err = a.manager.VerifyOTP(ctx, code)
				if err == nil {
					break
				}
				if !errors.Is(err, goSession.ErrAuthFailure) || attempt >= maxOTPAttempts {
					return fmt.Errorf("verification failed: %s", goSession.UserMessage(err))
				}
				fmt.Fprintln(a.out, errStyle.Render(goSession.UserMessage(err)))
				res = goSession.LoginResult{Type: goSession.LoginOTPRequired, OTPData: a.manager.State().OTPData}
				if res.OTPData == nil {
					return fmt.Errorf("verification failed: %s", goSession.UserMessage(goSession.ErrOTPNotPending))
				}
			}

			if err := a.saveCredentials(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("access token not saved")
			}

			switch res.Type {
			case goSession.LoginMFARequired:
				fmt.Fprintln(a.out, warnStyle.Render("Multi-factor confirmation is pending. Complete it, then run `gosession status --check`."))
			case goSession.LoginSuccess:
				a.manager.FetchPermissions(ctx)
			}

			printState(a.out, a.manager.State())
			if res.Type == goSession.LoginSuccess {
				fmt.Fprintln(a.out)
				printPermissions(a.out, a.manager.Permissions(), time.Now())
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&otp, "otp", "", "verification code, if one is requested")
	return cmd
}
