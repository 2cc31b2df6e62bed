package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/mithrel/inkwell/internal/util"
	"github.com/mithrel/inkwell/pkg/api"
)

// GlamourStyle maps the stored theme to a glamour standard style.
func GlamourStyle(t api.Theme) string {
	if t.Dark {
		return "dracula"
	}
	return "light"
}

func renderMarkdown(w io.Writer, md, style string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	_, err = io.WriteString(w, out)
	return err
}

// WritePrettyDocument renders a single document with markdown formatting using glamour.
func WritePrettyDocument(w io.Writer, d api.Document, style string, now time.Time) error {
	md := fmt.Sprintf(`# %s

> **ID:** %s | **Updated:** %s

---

%s
`, d.Title, d.ID, util.RelativeTime(d.UpdatedAt, now), strings.TrimSpace(d.Content))
	return renderMarkdown(w, md, style)
}

// WritePrettyDocuments renders a markdown table of documents.
func WritePrettyDocuments(w io.Writer, docs []api.Document, style string, now time.Time) error {
	if len(docs) == 0 {
		return renderMarkdown(w, "_Nothing here yet._", style)
	}
	var b strings.Builder
	b.WriteString("| Title | Updated | Preview | ID |\n|---|---|---|---|\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "| %s | %s | %s | `%s` |\n",
			cell(d.Title), util.RelativeTime(d.UpdatedAt, now), cell(util.Snippet(d.Content)), d.ID)
	}
	return renderMarkdown(w, b.String(), style)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
