package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mithrel/inkwell/internal/auth"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/internal/wire"
)

// authError shows the user-facing message for auth failures and keeps the
// original error for errors.Is.
type authError struct{ err error }

func (e authError) Error() string { return auth.Message(e.err) }
func (e authError) Unwrap() error { return e.err }

func friendly(err error) error {
	if err == nil || auth.Code(err) == "" {
		return err
	}
	return authError{err}
}

// readSecret returns flagVal, or prompts for it: without echo on a
// terminal, one line from stdin otherwise.
func readSecret(cmd *cobra.Command, flagVal, prompt string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func signIn(cmd *cobra.Command, app *wire.App, sess session.Session, token string) error {
	st, err := tokenStore(app)
	if err != nil {
		return err
	}
	if err := st.Save(token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", sess.Name, sess.Email)
	return nil
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage your account and session",
	}
	cmd.AddCommand(newUserRegisterCmd(), newUserLoginCmd(), newUserLogoutCmd(), newUserWhoamiCmd(), newUserPasswordCmd(), newUserResetCmd())
	return cmd
}

func newUserRegisterCmd() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			sess, tok, err := app.Auth.Register(cmd.Context(), email, pw, name)
			if err != nil {
				return friendly(err)
			}
			return signIn(cmd, app, sess, tok)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUserLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			sess, tok, err := app.Auth.Login(cmd.Context(), email, pw)
			if err != nil {
				return friendly(err)
			}
			return signIn(cmd, app, sess, tok)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := tokenStore(getApp(cmd))
			if err != nil {
				return err
			}
			if err := st.Forget(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newUserWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			sess, err := currentSession(app)
			if err != nil {
				return err
			}
			u, err := app.Auth.Me(cmd.Context(), sess)
			if err != nil {
				return friendly(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.ID, u.Email, u.Name)
			return nil
		},
	}
}

func newUserPasswordCmd() *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the password of the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			sess, err := currentSession(app)
			if err != nil {
				return err
			}
			cur, err := readSecret(cmd, current, "Current password: ")
			if err != nil {
				return err
			}
			pw, err := readSecret(cmd, next, "New password: ")
			if err != nil {
				return err
			}
			if err := app.Auth.ChangePassword(cmd.Context(), sess, cur, pw); err != nil {
				return friendly(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	return cmd
}

func newUserResetCmd() *cobra.Command {
	var email, token, password string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
		Long: "Without --token, prints a reset token for --email. With --token, sets a new\n" +
			"password. Tokens expire after 30 minutes and stop working once the password changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			if token == "" {
				if email == "" {
					return fmt.Errorf("--email or --token is required")
				}
				tok, err := app.Auth.RequestReset(cmd.Context(), email)
				if err != nil {
					return friendly(err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			}
			pw, err := readSecret(cmd, password, "New password: ")
			if err != nil {
				return err
			}
			if err := app.Auth.ConfirmReset(cmd.Context(), token, pw); err != nil {
				return friendly(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password reset. Sign in with `inkwell-cli user login`.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email to request a reset token for")
	cmd.Flags().StringVar(&token, "token", "", "reset token to confirm")
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	return cmd
}
