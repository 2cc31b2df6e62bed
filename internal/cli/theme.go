package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mithrel/inkwell/internal/service"
)

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Show or set the display theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"dark", "light"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			sess, err := currentSession(app)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				t, err := app.Settings.Theme(cmd.Context(), sess)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
				return nil
			}
			t, err := service.ParseTheme(args[0])
			if err != nil {
				return err
			}
			if err := app.Settings.SetTheme(cmd.Context(), sess, t); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", t)
			return nil
		},
	}
}
