package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mithrel/inkwell/internal/markup"
)

// PreviewStyles styles each classified line kind.
type PreviewStyles struct {
	Heading [6]lipgloss.Style
	Checked lipgloss.Style
	Open    lipgloss.Style
	Text    lipgloss.Style
}

// NewPreviewStyles returns styles for a dark or light terminal.
func NewPreviewStyles(dark bool) PreviewStyles {
	accent := lipgloss.Color("#5A56E0")
	muted := lipgloss.Color("#8A8A8A")
	if dark {
		accent = lipgloss.Color("#BD93F9")
		muted = lipgloss.Color("#6272A4")
	}
	var s PreviewStyles
	for i := range s.Heading {
		st := lipgloss.NewStyle().Bold(true).Foreground(accent)
		if i == 0 {
			st = st.Underline(true)
		}
		if i >= 3 {
			st = st.Bold(false).Italic(true)
		}
		s.Heading[i] = st
	}
	s.Checked = lipgloss.NewStyle().Strikethrough(true).Foreground(muted)
	s.Open = lipgloss.NewStyle()
	s.Text = lipgloss.NewStyle()
	return s
}

// PreviewLine renders one classified line. Checkbox lines are prefixed with
// their line index so they can be passed to toggle.
func (s PreviewStyles) PreviewLine(l markup.Line) string {
	switch l.Kind {
	case markup.KindHeading:
		return s.Heading[l.Level-1].Render(strings.Repeat("#", l.Level) + " " + l.Text)
	case markup.KindCheckbox:
		box := "[ ]"
		st := s.Open
		if l.Checked {
			box, st = "[x]", s.Checked
		}
		return lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("%3d", l.Index)) + " " + box + " " + st.Render(l.Text)
	}
	return s.Text.Render(l.Text)
}

// WritePreview writes the styled lines, one per classified line.
func WritePreview(w io.Writer, lines []markup.Line, s PreviewStyles) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(s.PreviewLine(l))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
