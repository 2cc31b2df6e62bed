package db

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT NOT NULL,
  kind TEXT NOT NULL,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  title_key TEXT NOT NULL DEFAULT '',
  content_key TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  version INTEGER NOT NULL,
  PRIMARY KEY(kind, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_owner_updated ON documents(user_id, kind, updated_at DESC, id);
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_key TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
  user_id TEXT PRIMARY KEY,
  dark BOOLEAN NOT NULL DEFAULT 0
);`,
	isUnique: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

// sqlitePath turns a sqlite DSN into a filesystem path.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

func openSQLite(ctx context.Context, dsn string) (*Store, io.Closer, error) {
	path := sqlitePath(dsn)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	// set WAL mode
	if _, err := dbh.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = dbh.Close()
		return nil, nil, err
	}
	if _, err := dbh.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		_ = dbh.Close()
		return nil, nil, err
	}
	s := &sqlStore{db: dbh, d: sqliteDialect}
	if err := s.migrate(ctx); err != nil {
		_ = dbh.Close()
		return nil, nil, err
	}
	return &Store{Documents: s, Users: s, Settings: s}, dbh, nil
}
