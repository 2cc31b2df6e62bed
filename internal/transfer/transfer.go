// Package transfer exports documents as markdown files with YAML front
// matter and reads them back.
package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/mithrel/inkwell/pkg/api"
)

// Meta is the front matter written above each exported document.
type Meta struct {
	ID        string    `yaml:"id,omitempty"`
	Kind      api.Kind  `yaml:"kind,omitempty"`
	Title     string    `yaml:"title"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Encode renders d as front matter followed by its content verbatim.
func Encode(d api.Document) ([]byte, error) {
	meta, err := yaml.Marshal(Meta{ID: d.ID, Kind: d.Kind, Title: d.Title, CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(meta)
	b.WriteString("---\n")
	b.WriteString(d.Content)
	return b.Bytes(), nil
}

// Decode parses a markdown file. Files without front matter are accepted:
// the title falls back to the file name and kind to fallback.
func Decode(name string, src []byte, fallback api.Kind) (api.Document, error) {
	var meta Meta
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		return api.Document{}, fmt.Errorf("parse front matter of %s: %w", name, err)
	}
	d := api.Document{
		ID:        meta.ID,
		Kind:      meta.Kind,
		Title:     strings.TrimSpace(meta.Title),
		Content:   string(body),
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}
	if d.Kind == "" {
		d.Kind = fallback
	}
	if _, err := api.ParseKind(string(d.Kind)); err != nil {
		return api.Document{}, fmt.Errorf("%s: %w", name, err)
	}
	if d.Title == "" {
		d.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return d, nil
}

// FileName is the exported name of d inside its collection directory.
func FileName(d api.Document) string {
	slug := slugify(d.Title)
	if slug == "" {
		return d.ID + ".md"
	}
	return slug + "--" + d.ID + ".md"
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ExportDir writes docs under dir/<collection>/ and returns the number written.
func ExportDir(dir string, docs []api.Document) (int, error) {
	n := 0
	for _, d := range docs {
		sub := filepath.Join(dir, d.Kind.Collection())
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return n, err
		}
		b, err := Encode(d)
		if err != nil {
			return n, err
		}
		if err := os.WriteFile(filepath.Join(sub, FileName(d)), b, 0o644); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ReadDir reads every .md file under dir/notes and dir/blueprints. Missing
// collection directories are skipped.
func ReadDir(dir string) ([]api.Document, error) {
	var out []api.Document
	for _, kind := range []api.Kind{api.KindNote, api.KindBlueprint} {
		root := filepath.Join(dir, kind.Collection())
		err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return fs.SkipDir
				}
				return err
			}
			if e.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
				return nil
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			d, err := Decode(path, src, kind)
			if err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
