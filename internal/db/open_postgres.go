package db

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT NOT NULL,
  kind TEXT NOT NULL,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  title_key TEXT NOT NULL DEFAULT '',
  content_key TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  version BIGINT NOT NULL,
  PRIMARY KEY(kind, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_owner_updated ON documents(user_id, kind, updated_at DESC, id);
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_key TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
  user_id TEXT PRIMARY KEY,
  dark BOOLEAN NOT NULL DEFAULT FALSE
);`,
	isUnique: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

func openPostgres(ctx context.Context, dsn string) (*Store, io.Closer, error) {
	if dsn == "" {
		return nil, nil, errors.New("postgres driver requires storage.dsn")
	}
	dbh, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := dbh.PingContext(ctx); err != nil {
		_ = dbh.Close()
		return nil, nil, err
	}
	s := &sqlStore{db: dbh, d: postgresDialect}
	if err := s.migrate(ctx); err != nil {
		_ = dbh.Close()
		return nil, nil, err
	}
	return &Store{Documents: s, Users: s, Settings: s}, dbh, nil
}
