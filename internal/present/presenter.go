package present

import (
	"fmt"
	"io"
	"time"

	"github.com/mithrel/inkwell/internal/markup"
	"github.com/mithrel/inkwell/internal/present/format"
	"github.com/mithrel/inkwell/pkg/api"
)

type Mode int

const (
	ModePlain Mode = iota
	ModePretty
	ModeJSON
)

type Options struct {
	Mode       Mode
	JSONIndent bool
	Headers    bool
	Theme      api.Theme
	Now        time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// ParseMode parses "plain", "pretty" or "json".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "plain":
		return ModePlain, true
	case "pretty":
		return ModePretty, true
	case "json":
		return ModeJSON, true
	default:
		return ModePlain, false
	}
}

// RenderDocuments renders a list of documents according to options.
func RenderDocuments(w io.Writer, docs []api.Document, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSON(w, docs, opts.JSONIndent)
	case ModePretty:
		return format.WritePrettyDocuments(w, docs, format.GlamourStyle(opts.Theme), opts.now())
	default:
		return format.WritePlainDocuments(w, docs, opts.Headers, opts.now())
	}
}

// RenderDocument renders a single document according to options.
func RenderDocument(w io.Writer, d api.Document, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSON(w, d, opts.JSONIndent)
	case ModePretty:
		return format.WritePrettyDocument(w, d, format.GlamourStyle(opts.Theme), opts.now())
	default:
		return format.WritePlainDocument(w, d, opts.now())
	}
}

// RenderPreview renders classified lines; JSON mode emits the display lines.
func RenderPreview(w io.Writer, d api.Document, lines []markup.Line, opts Options) error {
	if opts.Mode == ModeJSON {
		return format.WriteJSON(w, map[string]any{"id": d.ID, "title": d.Title, "lines": lines}, opts.JSONIndent)
	}
	if opts.Headers {
		if _, err := fmt.Fprintf(w, "%s\n\n", d.Title); err != nil {
			return err
		}
	}
	return format.WritePreview(w, lines, format.NewPreviewStyles(opts.Theme.Dark))
}
