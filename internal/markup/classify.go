// Package markup classifies note content into display lines for the preview
// renderer and edits checkbox state in place.
package markup

import (
	"encoding/json"
	"iter"
	"strconv"
	"strings"
)

// LineKind tags the variant held by a Line.
type LineKind int

const (
	KindText LineKind = iota
	KindHeading
	KindCheckbox
)

// Line is one classified line of content. Level is set for headings,
// Checked for checkboxes. Index is the zero-based source line.
type Line struct {
	Kind    LineKind
	Level   int
	Text    string
	Checked bool
	Index   int
}

// Type returns the renderer tag: "h1".."h6", "checkbox" or "text".
func (l Line) Type() string {
	switch l.Kind {
	case KindHeading:
		return "h" + strconv.Itoa(l.Level)
	case KindCheckbox:
		return "checkbox"
	default:
		return "text"
	}
}

type lineJSON struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Checked *bool  `json:"checked,omitempty"`
	Index   *int   `json:"line_index,omitempty"`
}

// MarshalJSON emits checked and line_index only for checkbox lines.
func (l Line) MarshalJSON() ([]byte, error) {
	out := lineJSON{Type: l.Type(), Text: l.Text}
	if l.Kind == KindCheckbox {
		checked, idx := l.Checked, l.Index
		out.Checked = &checked
		out.Index = &idx
	}
	return json.Marshal(out)
}

// EmptyPlaceholder stands in for blank lines so layouts keep their height.
const EmptyPlaceholder = " "

// matcher recognises one line shape. Matchers are tried in table order and
// the first hit wins.
type matcher struct {
	prefix  string
	kind    LineKind
	level   int
	checked bool
}

// Longer heading markers come first: "# " is a suffix of "###### ".
var matchers = []matcher{
	{prefix: "###### ", kind: KindHeading, level: 6},
	{prefix: "##### ", kind: KindHeading, level: 5},
	{prefix: "#### ", kind: KindHeading, level: 4},
	{prefix: "### ", kind: KindHeading, level: 3},
	{prefix: "## ", kind: KindHeading, level: 2},
	{prefix: "# ", kind: KindHeading, level: 1},
	{prefix: UncheckedPrefix, kind: KindCheckbox},
	{prefix: CheckedPrefix, kind: KindCheckbox, checked: true},
	{prefix: "- [X] ", kind: KindCheckbox, checked: true},
}

// ClassifyLine classifies a single line found at source index idx.
// A marker with nothing after it is plain text.
func ClassifyLine(line string, idx int) Line {
	for _, m := range matchers {
		rest, ok := strings.CutPrefix(line, m.prefix)
		if !ok || rest == "" {
			continue
		}
		return Line{Kind: m.kind, Level: m.level, Text: rest, Checked: m.checked, Index: idx}
	}
	if line == "" {
		line = EmptyPlaceholder
	}
	return Line{Kind: KindText, Text: line, Index: idx}
}

// Lines walks content lazily, yielding one Line per "\n"-separated segment.
// The sequence is restartable; every range re-reads content.
func Lines(content string) iter.Seq2[int, Line] {
	return func(yield func(int, Line) bool) {
		i := 0
		for seg := range strings.SplitSeq(content, "\n") {
			if !yield(i, ClassifyLine(seg, i)) {
				return
			}
			i++
		}
	}
}

// Classify materialises Lines. The result always has exactly
// strings.Count(content, "\n")+1 elements.
func Classify(content string) []Line {
	out := make([]Line, 0, strings.Count(content, "\n")+1)
	for _, l := range Lines(content) {
		out = append(out, l)
	}
	return out
}
