package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mithrel/inkwell/internal/editor"
	"github.com/mithrel/inkwell/internal/present"
	"github.com/mithrel/inkwell/internal/present/format"
	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/internal/util"
	"github.com/mithrel/inkwell/internal/wire"
	"github.com/mithrel/inkwell/pkg/api"
)

// newNoteCmd defines the parent "note" command.
func newNoteCmd() *cobra.Command {
	cmd := newDocCmd(api.KindNote, "Work with notes")
	cmd.AddCommand(newInsertCmd())
	return cmd
}

func newBlueprintCmd() *cobra.Command {
	cmd := newDocCmd(api.KindBlueprint, "Work with checklist blueprints")
	cmd.Aliases = []string{"bp"}
	return cmd
}

// docCtx is what every document subcommand starts from.
type docCtx struct {
	app  *wire.App
	sess session.Session
	docs *service.Documents
}

func loadDocCtx(cmd *cobra.Command, kind api.Kind) (docCtx, error) {
	app := getApp(cmd)
	sess, err := currentSession(app)
	if err != nil {
		return docCtx{}, err
	}
	return docCtx{app: app, sess: sess, docs: app.Docs(kind)}, nil
}

func newDocCmd(kind api.Kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
	}
	cmd.AddCommand(
		newDocAddCmd(kind),
		newDocListCmd(kind),
		newDocSearchCmd(kind),
		newDocShowCmd(kind),
		newDocEditCmd(kind),
		newDocDeleteCmd(kind),
		newDocToggleCmd(kind),
		newDocEnterCmd(kind),
		newDocPreviewCmd(kind),
	)
	return cmd
}

func printDoc(cmd *cobra.Command, d api.Document) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.ID, d.Title)
}

// readContent resolves --content; "-" reads stdin.
func readContent(cmd *cobra.Command, content string) (string, error) {
	if content != "-" {
		return content, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func newDocAddCmd(kind api.Kind) *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a new " + string(kind) + " (opens $EDITOR unless --content is given)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			title := strings.TrimSpace(strings.Join(args, " "))
			if cmd.Flags().Changed("content") || title != "" {
				body, err := readContent(cmd, content)
				if err != nil {
					return err
				}
				d, err := dc.docs.Create(cmd.Context(), dc.sess, title, body)
				if err != nil {
					return err
				}
				printDoc(cmd, d)
				return nil
			}

			// Editor flow: create first so the document exists while editing.
			d, err := dc.docs.Create(cmd.Context(), dc.sess, "", "")
			if err != nil {
				return err
			}
			deleteEmpty := func(msg string) error {
				if dc.app.Cfg.GetBool("editor.delete_empty") {
					if err := dc.docs.Delete(cmd.Context(), dc.sess, d.ID); err != nil {
						dc.app.Log.Warn("delete aborted document", "id", d.ID, "err", err)
					}
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			}
			title, body, changed, err := editDocument(kind, d)
			if err != nil {
				return err
			}
			if !changed {
				return deleteEmpty("No edits; " + string(kind) + " discarded.")
			}
			if strings.TrimSpace(body) == "" && (title == "" || title == d.Title) {
				return deleteEmpty(strings.ToUpper(string(kind)[:1]) + string(kind)[1:] + " aborted: empty content.")
			}
			d, err = dc.docs.Update(cmd.Context(), dc.sess, d.ID, service.Patch{Title: &title, Content: &body})
			if err != nil {
				return err
			}
			printDoc(cmd, d)
			return nil
		},
	}
	cmd.Flags().StringVarP(&content, "content", "c", "", "content for a one-liner add; - reads stdin")
	return cmd
}

// editDocument round-trips d through $EDITOR.
func editDocument(kind api.Kind, d api.Document) (title, content string, changed bool, err error) {
	path, err := editor.PathForID(string(kind), d.ID)
	if err != nil {
		return "", "", false, err
	}
	initial := []byte(editor.ComposeContent(string(kind), d.Title, d.Content))
	out, changed, err := editor.OpenAt(path, initial)
	_ = os.Remove(path)
	if err != nil || !changed {
		return "", "", false, err
	}
	title, content = editor.ParseEdited(string(out))
	return title, content, true, nil
}

type listFlags struct {
	since, until string
	limit        int
	noHeaders    bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "only documents updated at or after (RFC3339, YYYY-MM-DD or e.g. 3d)")
	cmd.Flags().StringVar(&f.until, "until", "", "only documents updated at or before")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of results (0 = all)")
	cmd.Flags().BoolVar(&f.noHeaders, "noheaders", false, "hide column headers (plain)")
}

func runList(cmd *cobra.Command, kind api.Kind, query string, f listFlags) error {
	dc, err := loadDocCtx(cmd, kind)
	if err != nil {
		return err
	}
	since, until, err := util.NormalizeTimeRange(f.since, f.until)
	if err != nil {
		return err
	}
	docs, err := dc.docs.List(cmd.Context(), dc.sess, service.ListOptions{Query: query, Since: since, Until: until, Limit: f.limit})
	if err != nil {
		return err
	}
	opts, err := presentOptions(cmd, dc.app, dc.sess, !f.noHeaders)
	if err != nil {
		return err
	}
	return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
		return present.RenderDocuments(w, docs, opts)
	})
}

func newDocListCmd(kind api.Kind) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + kind.Collection() + ", most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, kind, "", f)
		},
	}
	f.register(cmd)
	return cmd
}

func newDocSearchCmd(kind api.Kind) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search " + kind.Collection() + " by title and content (case-insensitive)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, kind, strings.Join(args, " "), f)
		},
	}
	f.register(cmd)
	return cmd
}

func newDocShowCmd(kind api.Kind) *cobra.Command {
	return &cobra.Command{
		Use:               "show <id>",
		Short:             "Display a " + string(kind),
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			d, err := dc.docs.Get(cmd.Context(), dc.sess, args[0])
			if err != nil {
				return err
			}
			opts, err := presentOptions(cmd, dc.app, dc.sess, true)
			if err != nil {
				return err
			}
			return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
				return present.RenderDocument(w, d, opts)
			})
		},
	}
}

func newDocEditCmd(kind api.Kind) *cobra.Command {
	var title, content string
	cmd := &cobra.Command{
		Use:               "edit <id>",
		Short:             "Edit a " + string(kind) + " in $EDITOR, or set --title/--content directly",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			var p service.Patch
			if cmd.Flags().Changed("title") {
				p.Title = &title
			}
			if cmd.Flags().Changed("content") {
				body, err := readContent(cmd, content)
				if err != nil {
					return err
				}
				p.Content = &body
			}
			if p.Title == nil && p.Content == nil {
				cur, err := dc.docs.Get(cmd.Context(), dc.sess, args[0])
				if err != nil {
					return err
				}
				t, body, changed, err := editDocument(kind, cur)
				if err != nil {
					return err
				}
				if !changed {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
					return nil
				}
				p.Title, p.Content = &t, &body
			}
			d, err := dc.docs.Update(cmd.Context(), dc.sess, args[0], p)
			if err != nil {
				return err
			}
			printDoc(cmd, d)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "new content; - reads stdin")
	return cmd
}

func newDocDeleteCmd(kind api.Kind) *cobra.Command {
	return &cobra.Command{
		Use:               "delete <id>...",
		Aliases:           []string{"rm"},
		Short:             "Delete " + kind.Collection(),
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeIDs(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := dc.docs.Delete(cmd.Context(), dc.sess, id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func parseIntArg(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, s)
	}
	return n, nil
}

func newDocToggleCmd(kind api.Kind) *cobra.Command {
	var check, uncheck bool
	cmd := &cobra.Command{
		Use:   "toggle <id> <line>",
		Short: "Flip the checkbox on a 0-based line (see preview for indexes)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := parseIntArg("line", args[1])
			if err != nil {
				return err
			}
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			var (
				d  api.Document
				ok bool
			)
			switch {
			case check || uncheck:
				d, ok, err = dc.docs.SetCheckbox(cmd.Context(), dc.sess, args[0], line, check)
			default:
				d, ok, err = dc.docs.ToggleCheckbox(cmd.Context(), dc.sess, args[0], line)
			}
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Line %d is not a checkbox; nothing changed.\n", line)
				return nil
			}
			lines := strings.Split(d.Content, "\n")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), lines[line])
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "set the checkbox instead of flipping it")
	cmd.Flags().BoolVar(&uncheck, "uncheck", false, "clear the checkbox instead of flipping it")
	cmd.MarkFlagsMutuallyExclusive("check", "uncheck")
	return cmd
}

func newDocEnterCmd(kind api.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "enter <id> <caret>",
		Short: "Apply checklist Enter handling at a byte offset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caret, err := parseIntArg("caret", args[1])
			if err != nil {
				return err
			}
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			res, _, err := dc.docs.Enter(cmd.Context(), dc.sess, args[0], caret)
			if err != nil {
				return err
			}
			if dc.app.Cfg.GetString("output") == "json" {
				return format.WriteJSON(cmd.OutOrStdout(), res, false)
			}
			if !res.Handled {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not a checklist line; nothing changed.")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "caret\t%d\n", res.Caret)
			return nil
		},
	}
}

func newDocPreviewCmd(kind api.Kind) *cobra.Command {
	var noTitle bool
	cmd := &cobra.Command{
		Use:               "preview <id>",
		Short:             "Show headings and checkboxes with their line indexes",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := loadDocCtx(cmd, kind)
			if err != nil {
				return err
			}
			d, lines, err := dc.docs.Preview(cmd.Context(), dc.sess, args[0])
			if err != nil {
				return err
			}
			opts, err := presentOptions(cmd, dc.app, dc.sess, !noTitle)
			if err != nil {
				return err
			}
			// Preview styles follow the theme in every mode.
			if t, err := dc.app.Settings.Theme(cmd.Context(), dc.sess); err == nil {
				opts.Theme = t
			}
			return present.RenderPreview(cmd.OutOrStdout(), d, lines, opts)
		},
	}
	cmd.Flags().BoolVar(&noTitle, "no-title", false, "omit the title line")
	return cmd
}

func newInsertCmd() *cobra.Command {
	var at int
	cmd := &cobra.Command{
		Use:   "insert <note-id> <blueprint-id>",
		Short: "Insert a blueprint into a note at a byte offset (default: append)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := loadDocCtx(cmd, api.KindNote)
			if err != nil {
				return err
			}
			d, err := dc.docs.InsertBlueprint(cmd.Context(), dc.sess, args[0], args[1], at)
			if err != nil {
				return err
			}
			printDoc(cmd, d)
			return nil
		},
	}
	cmd.Flags().IntVar(&at, "at", -1, "byte offset in the note; out of range appends")
	return cmd
}
