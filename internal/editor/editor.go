package editor

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	TitlePrefix = "Title: "
	separator   = "---"
)

// ComposeContent creates the buffer handed to $EDITOR: a commented header,
// the title line, a separator and the raw content.
func ComposeContent(kind, title, content string) string {
	var b bytes.Buffer
	b.WriteString("# inkwell " + kind + "\n")
	b.WriteString("# Lines starting with '#' above the separator are ignored.\n")
	b.WriteString("# Everything below '---' is saved verbatim as content.\n")
	b.WriteString(TitlePrefix)
	b.WriteString(title)
	b.WriteString("\n" + separator + "\n")
	b.WriteString(content)
	return b.String()
}

// ParseEdited extracts title and content from an edited buffer. Content
// below the separator is kept byte-for-byte except for one trailing newline
// most editors append on save.
func ParseEdited(s string) (title, content string) {
	header, body, found := strings.Cut(s, "\n"+separator+"\n")
	if !found {
		if h, ok := strings.CutSuffix(s, "\n"+separator); ok {
			header, body = h, ""
		} else {
			header = s
		}
	}
	for _, line := range strings.Split(header, "\n") {
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "#") {
			continue
		}
		if t, ok := strings.CutPrefix(trim, strings.TrimSpace(TitlePrefix)); ok {
			title = strings.TrimSpace(t)
		}
	}
	return title, strings.TrimSuffix(body, "\n")
}

// PreferredEditor finds a suitable editor from env or common defaults.
func PreferredEditor() (string, error) {
	if v := os.Getenv("VISUAL"); v != "" {
		return v, nil
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e, nil
	}
	for _, cand := range []string{"nvim", "vim", "vi", "nano"} {
		if p, err := exec.LookPath(cand); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no editor found; set $EDITOR or $VISUAL")
}

// PathForID returns a private temp path for editing one document.
func PathForID(kind, id string) (string, error) {
	name := sanitize(kind) + "." + sanitize(id) + ".inkwell.md"
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "inkwell", name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "inkwell", "edit", name), nil
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func writeFile0600(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, fs.FileMode(0o600))
}

// OpenAt opens the editor at path with initial content and returns the final
// bytes and whether they changed.
func OpenAt(path string, initial []byte) (final []byte, changed bool, err error) {
	if err := writeFile0600(path, initial); err != nil {
		return nil, false, err
	}
	// Run through sh so VISUAL/EDITOR may carry flags.
	ed := os.Getenv("VISUAL")
	if ed == "" {
		ed = os.Getenv("EDITOR")
	}
	var cmd *exec.Cmd
	if strings.TrimSpace(ed) != "" {
		cmd = exec.Command("sh", "-c", "$EDITORCMD \"$FILEPATH\"")
		cmd.Env = append(os.Environ(), "EDITORCMD="+ed, "FILEPATH="+path)
	} else {
		prog, err := PreferredEditor()
		if err != nil {
			return nil, false, err
		}
		cmd = exec.Command(prog, path)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, false, err
	}
	out, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return out, !bytes.Equal(out, initial), nil
}
