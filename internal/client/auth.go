package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

func envPassword() string {
	return os.Getenv("SLOKA_PASSWORD")
}

func credentialFlags(cmd *cobra.Command, creds *models.Credentials) {
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (or SLOKA_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

// withHint wraps an auth failure and appends the suggestion for role.
func withHint(msg string, err error, role models.Role) error {
	if hint := apperr.Hint(err, role); hint != "" {
		return fmt.Errorf("%s: %w\n%s", msg, err, hint)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (c *cli) newLoginCmd() *cobra.Command {
	var (
		creds models.Credentials
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a student or, with --admin, as an administrator",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			role := models.RoleStudent
			if admin {
				role = models.RoleAdmin
			}
			if creds.Password == "" {
				creds.Password = envPassword()
			}
			id, err := a.Session.Login(ctx, creds, role)
			if err != nil {
				return withHint("login failed", err, role)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", id.Subject, id.Role)
			return nil
		}),
	}
	credentialFlags(cmd, &creds)
	cmd.Flags().BoolVar(&admin, "admin", false, "log in as an administrator")
	return cmd
}

func (c *cli) newRegisterCmd() *cobra.Command {
	var creds models.Credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a student account",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if creds.Password == "" {
				creds.Password = envPassword()
			}
			if err := a.Session.Register(ctx, creds); err != nil {
				return withHint("registration failed", err, models.RoleStudent)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Account created. You can now log in.")
			return nil
		}),
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			a.Logout(ctx)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: c.run(func(_ context.Context, cmd *cobra.Command, a *App, _ []string) error {
			id := a.Identity()
			if id == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s), session expires %s\n",
				id.Subject, id.Role, id.TokenExpiry.Local().Format(time.RFC1123))
			return nil
		}),
	}
}
