package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mithrel/inkwell/internal/config"
	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/util"
	"github.com/mithrel/inkwell/internal/wire"
	"github.com/mithrel/inkwell/pkg/api"
)

const maxCompletions = 20

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "completion",
		Short:       "Generate shell completion scripts",
		Annotations: map[string]string{skipApp: "true"},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate Bash completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Root().GenBashCompletion(os.Stdout)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate Zsh completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Root().GenZshCompletion(os.Stdout)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate Fish completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		},
	})

	return cmd
}

// completeIDs offers "<id>\t<title>" for documents whose title fuzzily
// matches toComplete. Completion never fails loudly.
func completeIDs(kind api.Kind) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		app, done, err := completionApp(cmd)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer done()
		sess, err := currentSession(app)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		docs, err := app.Docs(kind).List(cmd.Context(), sess, service.ListOptions{})
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return matchDocuments(toComplete, docs), cobra.ShellCompDirectiveNoFileComp
	}
}

// completionApp returns the wired app. Completion callbacks run without the
// root pre-run hook, so the app is built here when it is missing.
func completionApp(cmd *cobra.Command) (*wire.App, func(), error) {
	if app, ok := cmd.Context().Value(appKey).(*wire.App); ok {
		return app, func() {}, nil
	}
	v := viper.New()
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		v.SetConfigFile(p)
	}
	if err := config.Load(cmd.Context(), v); err != nil {
		return nil, nil, err
	}
	app, err := wire.BuildApp(cmd.Context(), v)
	if err != nil {
		return nil, nil, err
	}
	return app, func() { _ = app.Close() }, nil
}

func matchDocuments(input string, docs []api.Document) []string {
	titles := make([]string, len(docs))
	byTitle := make(map[string]api.Document, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
		if _, dup := byTitle[d.Title]; !dup {
			byTitle[d.Title] = d
		}
	}
	seen := make(map[string]bool)
	var out []string
	add := func(d api.Document) {
		if !seen[d.ID] && len(out) < maxCompletions {
			seen[d.ID] = true
			out = append(out, d.ID+"\t"+d.Title)
		}
	}
	for _, d := range docs {
		if input != "" && strings.HasPrefix(d.ID, input) {
			add(d)
		}
	}
	for _, t := range util.ScoreCompletions(input, titles, maxCompletions) {
		add(byTitle[t])
	}
	return out
}
