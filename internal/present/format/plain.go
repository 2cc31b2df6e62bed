package format

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mithrel/inkwell/internal/util"
	"github.com/mithrel/inkwell/pkg/api"
)

// TSV columns: id, title, updated, preview
var headerLine = "id\ttitle\tupdated\tpreview\n"

func esc(field string) string {
	field = strings.ReplaceAll(field, "\t", "\\t")
	field = strings.ReplaceAll(field, "\n", "\\n")
	return field
}

// WritePlainDocuments writes one aligned row per document.
func WritePlainDocuments(w io.Writer, docs []api.Document, headers bool, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if headers {
		_, _ = io.WriteString(tw, headerLine)
	}
	for _, d := range docs {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
			esc(d.ID), esc(d.Title), util.RelativeTime(d.UpdatedAt, now), esc(util.Snippet(d.Content)))
		_, _ = io.WriteString(tw, line)
	}
	return tw.Flush()
}

// WritePlainDocument writes the title, a metadata line and the raw content.
func WritePlainDocument(w io.Writer, d api.Document, now time.Time) error {
	_, err := fmt.Fprintf(w, "%s\n%s · %s · updated %s\n\n%s\n",
		d.Title, d.Kind, d.ID, util.RelativeTime(d.UpdatedAt, now), d.Content)
	return err
}
