package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mithrel/inkwell/pkg/api"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Documents is the owner-scoped CRUD capability for notes and blueprints.
// Every call names the owner; a document owned by someone else is
// reported as ErrNotFound.
type Documents interface {
	ListDocuments(ctx context.Context, q api.ListQuery) ([]api.Document, error)
	GetDocument(ctx context.Context, kind api.Kind, userID, id string) (api.Document, error)
	CreateDocument(ctx context.Context, d api.Document) (api.Document, error)
	// UpdateDocumentCAS writes d only when the stored version equals ifVersion.
	UpdateDocumentCAS(ctx context.Context, d api.Document, ifVersion int64) (api.Document, error)
	DeleteDocument(ctx context.Context, kind api.Kind, userID, id string) error
}

// Users stores accounts.
type Users interface {
	CreateUser(ctx context.Context, u api.User) (api.User, error)
	GetUser(ctx context.Context, id string) (api.User, error)
	GetUserByEmail(ctx context.Context, email string) (api.User, error)
	ListUsers(ctx context.Context) ([]api.User, error)
	UpdateUserPassword(ctx context.Context, id, hash string) error
}

// Settings stores per-owner preferences.
type Settings interface {
	GetTheme(ctx context.Context, userID string) (api.Theme, error)
	SetTheme(ctx context.Context, userID string, t api.Theme) error
}

// Store bundles the capabilities of one backend.
type Store struct {
	Documents Documents
	Users     Users
	Settings  Settings
}

// Drivers lists the accepted storage.driver values.
var Drivers = []string{"sqlite", "postgres", "local", "mem"}

// Open returns the Store for driver. The closer releases the backend.
func Open(ctx context.Context, driver, dsn string) (*Store, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return openSQLite(ctx, dsn)
	case "postgres", "pgx":
		return openPostgres(ctx, dsn)
	case "local":
		return openLocal(ctx, dsn)
	case "mem":
		m := newMemStore()
		return &Store{Documents: m, Users: m, Settings: m}, io.NopCloser(nil), nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
}

// normalizeEmail is the comparison form for unique emails.
func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
