package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/transfer"
	"github.com/mithrel/inkwell/pkg/api"
)

func newExportCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write notes and blueprints as markdown files with front matter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			sess, err := currentSession(app)
			if err != nil {
				return err
			}
			var all []api.Document
			for _, kind := range []api.Kind{api.KindNote, api.KindBlueprint} {
				docs, err := app.Docs(kind).List(cmd.Context(), sess, service.ListOptions{})
				if err != nil {
					return err
				}
				all = append(all, docs...)
			}
			n, err := transfer.ExportDir(dir, all)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d documents to %s\n", n, dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "target directory (notes/ and blueprints/ are created inside)")
	return cmd
}

func newImportCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Read markdown files from notes/ and blueprints/ under a directory",
		Long: "Files carrying an id in their front matter replace the document with that id;\n" +
			"everything else is created.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			sess, err := currentSession(app)
			if err != nil {
				return err
			}
			docs, err := transfer.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			created, updated := 0, 0
			for _, d := range docs {
				_, isNew, err := app.Docs(d.Kind).Upsert(cmd.Context(), sess, d)
				if err != nil {
					return fmt.Errorf("import %s %q: %w", d.Kind, d.Title, err)
				}
				if isNew {
					created++
				} else {
					updated++
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d documents (%d created, %d updated)\n", created+updated, created, updated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "source directory")
	return cmd
}
