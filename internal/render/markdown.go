// Package render turns document content into HTML.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// engine is stateless and safe for concurrent use. Raw HTML in content is
// not passed through.
var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.TaskList),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// HTML renders content as GitHub-flavoured markdown with task lists.
func HTML(content string) (string, error) {
	var buf bytes.Buffer
	src := strings.ReplaceAll(content, "\r\n", "\n")
	if err := engine.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), nil
}
