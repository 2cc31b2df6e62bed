package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mithrel/inkwell/internal/config"
	"github.com/mithrel/inkwell/internal/present/format"
)

// redacted keys are shown as set/unset by `config show`.
var redacted = map[string]bool{"auth.secret": true, "storage.dsn": true}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage configuration",
		Annotations: map[string]string{skipApp: "true"},
	}
	cmd.AddCommand(newConfigGenerateCmd(), newConfigPathCmd(), newConfigShowCmd())
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default config.toml location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.DefaultConfigPath())
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults, file, .env and INKWELL_* merged)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if p, _ := cmd.Flags().GetString("config"); p != "" {
				v.SetConfigFile(p)
			}
			if err := config.Load(cmd.Context(), v); err != nil {
				return err
			}
			if o, _ := cmd.Flags().GetString("output"); o != "" {
				v.Set("output", o)
			}
			values := make(map[string]any)
			for _, o := range config.GetConfigOptions() {
				val := v.Get(o.Key)
				if redacted[o.Key] {
					val = "<unset>"
					if v.GetString(o.Key) != "" {
						val = "<set>"
					}
				}
				values[o.Key] = val
			}
			if v.GetString("output") == "json" {
				return format.WriteJSON(cmd.OutOrStdout(), values, true)
			}
			w := cmd.OutOrStdout()
			if used := v.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(w, "# file: %s\n", used)
			}
			for _, o := range config.GetConfigOptions() {
				_, _ = fmt.Fprintf(w, "%s = %v\n", o.Key, values[o.Key])
			}
			if err := config.CheckConfigValidity(v); err != nil {
				return fmt.Errorf("config is invalid:\n%w", err)
			}
			return nil
		},
	}
}

// generateMode picks what `config generate` does with an existing file.
type generateMode int

const (
	generateNew generateMode = iota
	generateOverwrite
	generateUpdate
)

func newConfigGenerateCmd() *cobra.Command {
	var path string
	var overwrite, update bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a default config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.DefaultConfigPath()
			}
			mode := generateNew
			switch {
			case overwrite:
				mode = generateOverwrite
			case update:
				mode = generateUpdate
			}
			return generateConfig(cmd, path, mode)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "output path for config.toml")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing config (keeps a backup)")
	cmd.Flags().BoolVar(&update, "update", false, "add missing defaults to an existing config (keeps a backup)")
	cmd.MarkFlagsMutuallyExclusive("overwrite", "update")
	return cmd
}

func generateConfig(cmd *cobra.Command, path string, mode generateMode) error {
	existing, err := os.ReadFile(path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if exists && mode == generateNew {
		return fmt.Errorf("config already exists at %s; use --overwrite to replace it or --update to merge defaults", path)
	}

	content := config.RenderDefaultTOML()
	if exists && mode == generateUpdate {
		merged, changed := config.UpdateTOML(string(existing))
		if !changed {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config already up to date: %s\n", path)
			return nil
		}
		content = merged
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	backup := ""
	if exists {
		if backup, err = writeBackup(path, existing); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	if backup != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backup: %s\n", backup)
	}
	return nil
}

// writeBackup stores data next to path as .bak, or a timestamped .bak-*
// when a backup already exists.
func writeBackup(path string, data []byte) (string, error) {
	backup := path + ".bak"
	if _, err := os.Stat(backup); err == nil {
		backup = fmt.Sprintf("%s.bak-%s", path, time.Now().Format("20060102-150405"))
	}
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return "", err
	}
	return backup, nil
}
