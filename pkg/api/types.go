package api

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the collection a Document lives in.
type Kind string

const (
	KindNote      Kind = "note"
	KindBlueprint Kind = "blueprint"
)

// ParseKind accepts singular or plural spellings ("note", "notes").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "note", "notes":
		return KindNote, nil
	case "blueprint", "blueprints":
		return KindBlueprint, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Collection is the storage namespace for the kind.
func (k Kind) Collection() string { return string(k) + "s" }

// DefaultTitle is the title given to freshly created documents.
func (k Kind) DefaultTitle() string {
	if k == KindBlueprint {
		return "Untitled Blueprint"
	}
	return "Untitled Note"
}

// Document is a note or a blueprint. Both share one shape; Kind picks the collection.
type Document struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// User is an account owning documents.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListQuery filters documents for listing. Results are ordered by UpdatedAt DESC.
type ListQuery struct {
	UserID string
	Kind   Kind
	// Query is a case-insensitive substring matched against title and content.
	Query string
	Since time.Time
	Until time.Time
	Limit int
}

// Theme is the per-owner display preference.
type Theme struct {
	Dark bool `json:"dark"`
}

func (t Theme) String() string {
	if t.Dark {
		return "dark"
	}
	return "light"
}
