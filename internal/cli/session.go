package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teachlink/client-core/internal/app"
	"github.com/teachlink/client-core/internal/auth"
	"github.com/teachlink/client-core/internal/domain"
)

func newLoginCommand(opts *options) *cobra.Command {
	var (
		email      string
		password   string
		remember   bool
		biometric  bool
		googleCode string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email/password, Google, or the stored biometric credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Signing in", func(ctx context.Context, a *app.App) ([]string, error) {
				var session *domain.Session
				var err error
				switch {
				case biometric:
					session, err = a.Auth.LoginWithBiometrics(ctx)
					if errors.Is(err, auth.ErrBiometricCancelled) {
						return []string{"cancelled"}, nil
					}
				case googleCode != "":
					exchanger := auth.NewGoogleExchanger(
						a.Config.GoogleClientID, a.Config.GoogleClientSecret, a.Config.GoogleRedirectURL)
					cred, xerr := exchanger.Exchange(ctx, googleCode)
					if xerr != nil {
						return nil, xerr
					}
					session, err = a.Auth.LoginWithSocial(ctx, cred)
				default:
					if email == "" || password == "" {
						return nil, fmt.Errorf("--email and --password are required")
					}
					session, err = a.Auth.Login(ctx, email, password, remember)
				}
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("signed in as %s <%s>", session.User.Name, session.User.Email),
					fmt.Sprintf("session valid until %s", session.Tokens.ExpiresAtTime().Format("15:04:05")),
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&remember, "remember", false, "remember this email for future logins")
	cmd.Flags().BoolVar(&biometric, "biometric", false, "use the biometric credential instead of a password")
	cmd.Flags().StringVar(&googleCode, "google-code", "", "Google OAuth authorization code to exchange for a session")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Signing out", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.Logout(ctx); err != nil {
					return nil, err
				}
				details := []string{"credentials cleared"}
				if email := a.Auth.RememberedEmail(ctx); email != "" {
					details = append(details, "remembered email kept: "+email)
				}
				return details, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and subscription tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Checking session", func(ctx context.Context, a *app.App) ([]string, error) {
				session, err := a.Auth.RestoreSession(ctx)
				if err != nil {
					return nil, err
				}
				tier := a.Entitlement.SubscriptionTier(ctx)
				if session == nil {
					return []string{"not signed in", "tier: " + string(tier)}, nil
				}
				return []string{
					fmt.Sprintf("signed in as %s <%s>", session.User.Name, session.User.Email),
					fmt.Sprintf("session valid until %s", session.Tokens.ExpiresAtTime().Format("2006-01-02 15:04:05")),
					"tier: " + string(tier),
				}, nil
			})
		},
	}
}

func newRefreshCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a silent token refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run("Refreshing session", func(ctx context.Context, a *app.App) ([]string, error) {
				session, err := a.Auth.RefreshSession(ctx)
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("session valid until %s", session.Tokens.ExpiresAtTime().Format("15:04:05")),
				}, nil
			})
		},
	}
}
