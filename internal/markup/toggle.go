package markup

import "strings"

const (
	UncheckedPrefix = "- [ ] "
	CheckedPrefix   = "- [x] "
)

// IsUnchecked reports whether line starts with the unchecked marker.
func IsUnchecked(line string) bool { return strings.HasPrefix(line, UncheckedPrefix) }

// IsChecked reports whether line starts with "- [x] " or "- [X] ".
func IsChecked(line string) bool {
	return len(line) >= len(CheckedPrefix) && strings.EqualFold(line[:len(CheckedPrefix)], CheckedPrefix)
}

// Toggle flips the checkbox at line index. It reports false and returns
// content untouched when index is out of range or the line is not a
// checkbox. Only the marker is rewritten; the rest of the line is kept.
func Toggle(content string, index int) (string, bool) {
	if index < 0 {
		return content, false
	}
	lines := strings.Split(content, "\n")
	if index >= len(lines) {
		return content, false
	}
	line := lines[index]
	switch {
	case IsUnchecked(line):
		lines[index] = CheckedPrefix + line[len(UncheckedPrefix):]
	case IsChecked(line):
		lines[index] = UncheckedPrefix + line[len(CheckedPrefix):]
	default:
		return content, false
	}
	return strings.Join(lines, "\n"), true
}

// SetChecked forces the checkbox at index into the wanted state. It is the
// optimistic path used when a client already flipped its rendered flag.
func SetChecked(content string, index int, checked bool) (string, bool) {
	lines := strings.Split(content, "\n")
	if index < 0 || index >= len(lines) {
		return content, false
	}
	line := lines[index]
	if checked == IsChecked(line) && (IsChecked(line) || IsUnchecked(line)) {
		return content, true
	}
	return Toggle(content, index)
}
