package db

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mithrel/inkwell/pkg/api"
)

// dialect captures what differs between the relational backends.
type dialect struct {
	name     string
	schema   string
	numbered bool // $1, $2 placeholders instead of ?
	isUnique func(error) bool
}

// sqlStore serves Documents, Users and Settings from one relational database.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *sqlStore) rebind(q string) string {
	if !s.d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(s.d.schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.addSearchKeys(ctx)
}

// addSearchKeys upgrades a documents table created before the lowercased
// search columns existed and fills them for the stored rows.
func (s *sqlStore) addSearchKeys(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `SELECT title_key FROM documents LIMIT 0`); err == nil {
		return nil
	}
	for _, col := range []string{"title_key", "content_key"} {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE documents ADD COLUMN `+col+` TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, id, title, content FROM documents`)
	if err != nil {
		return err
	}
	type row struct{ kind, id, title, content string }
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.kind, &r.id, &r.title, &r.content); err != nil {
			_ = rows.Close()
			return err
		}
		all = append(all, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, r := range all {
		if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE documents SET title_key=?, content_key=? WHERE kind=? AND id=?`),
			searchKey(r.title), searchKey(r.content), r.kind, r.id); err != nil {
			return err
		}
	}
	return nil
}

// searchKey folds s for substring search. SQL LOWER only folds ASCII in
// sqlite, so the keys are computed here and stored next to the text.
func searchKey(s string) string { return strings.ToLower(s) }

// likePattern builds a case-insensitive substring pattern; callers use ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(searchKey(s)) + "%"
}

const documentColumns = `id, kind, user_id, title, content, created_at, updated_at, version`

type scanner interface{ Scan(dest ...any) error }

func scanDocument(row scanner) (api.Document, error) {
	var d api.Document
	var kind string
	if err := row.Scan(&d.ID, &kind, &d.UserID, &d.Title, &d.Content, &d.CreatedAt, &d.UpdatedAt, &d.Version); err != nil {
		return api.Document{}, err
	}
	d.Kind = api.Kind(kind)
	return d, nil
}

func (s *sqlStore) ListDocuments(ctx context.Context, q api.ListQuery) ([]api.Document, error) {
	conds := []string{"kind = ?", "user_id = ?"}
	args := []any{string(q.Kind), q.UserID}
	if term := strings.TrimSpace(q.Query); term != "" {
		conds = append(conds, `(title_key LIKE ? ESCAPE '\' OR content_key LIKE ? ESCAPE '\')`)
		p := likePattern(term)
		args = append(args, p, p)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "updated_at >= ?")
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		conds = append(conds, "updated_at <= ?")
		args = append(args, q.Until.UTC())
	}
	sqlq := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY updated_at DESC, id DESC`
	if q.Limit > 0 {
		sqlq += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(sqlq), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]api.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetDocument(ctx context.Context, kind api.Kind, userID, id string) (api.Document, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+documentColumns+` FROM documents WHERE kind=? AND user_id=? AND id=?`),
		string(kind), userID, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Document{}, ErrNotFound
	}
	return d, err
}

func (s *sqlStore) CreateDocument(ctx context.Context, d api.Document) (api.Document, error) {
	if d.ID == "" {
		return api.Document{}, ErrConflict
	}
	if d.Version == 0 {
		d.Version = 1
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO documents(`+documentColumns+`, title_key, content_key) VALUES(?,?,?,?,?,?,?,?,?,?)`),
		d.ID, string(d.Kind), d.UserID, d.Title, d.Content, d.CreatedAt.UTC(), d.UpdatedAt.UTC(), d.Version,
		searchKey(d.Title), searchKey(d.Content))
	if err != nil {
		if s.d.isUnique(err) {
			return api.Document{}, ErrConflict
		}
		return api.Document{}, err
	}
	return d, nil
}

func (s *sqlStore) UpdateDocumentCAS(ctx context.Context, d api.Document, ifVersion int64) (api.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return api.Document{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE documents SET title=?, content=?, title_key=?, content_key=?, updated_at=?, version=? WHERE kind=? AND user_id=? AND id=? AND version=?`),
		d.Title, d.Content, searchKey(d.Title), searchKey(d.Content), d.UpdatedAt.UTC(), d.Version, string(d.Kind), d.UserID, d.ID, ifVersion)
	if err != nil {
		return api.Document{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing row from a stale version.
		var v int64
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT version FROM documents WHERE kind=? AND user_id=? AND id=?`),
			string(d.Kind), d.UserID, d.ID).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return api.Document{}, ErrNotFound
		}
		if err != nil {
			return api.Document{}, err
		}
		return api.Document{}, ErrConflict
	}
	out, err := scanDocument(tx.QueryRowContext(ctx, s.rebind(`SELECT `+documentColumns+` FROM documents WHERE kind=? AND user_id=? AND id=?`),
		string(d.Kind), d.UserID, d.ID))
	if err != nil {
		return api.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return api.Document{}, err
	}
	return out, nil
}

func (s *sqlStore) DeleteDocument(ctx context.Context, kind api.Kind, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE kind=? AND user_id=? AND id=?`), string(kind), userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, email, name, password_hash, created_at, updated_at`

func scanUser(row scanner) (api.User, error) {
	var u api.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *sqlStore) CreateUser(ctx context.Context, u api.User) (api.User, error) {
	if u.ID == "" {
		return api.User{}, ErrConflict
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users(id, email, email_key, name, password_hash, created_at, updated_at) VALUES(?,?,?,?,?,?,?)`),
		u.ID, u.Email, normalizeEmail(u.Email), u.Name, u.PasswordHash, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		if s.d.isUnique(err) {
			return api.User{}, ErrConflict
		}
		return api.User{}, err
	}
	return u, nil
}

func (s *sqlStore) GetUser(ctx context.Context, id string) (api.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, ErrNotFound
	}
	return u, err
}

func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (api.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE email_key=?`), normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return api.User{}, ErrNotFound
	}
	return u, err
}

func (s *sqlStore) ListUsers(ctx context.Context) ([]api.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]api.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateUserPassword(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET password_hash=?, updated_at=? WHERE id=?`), hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) GetTheme(ctx context.Context, userID string) (api.Theme, error) {
	var t api.Theme
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT dark FROM settings WHERE user_id=?`), userID).Scan(&t.Dark)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Theme{}, nil
	}
	return t, err
}

func (s *sqlStore) SetTheme(ctx context.Context, userID string, t api.Theme) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO settings(user_id, dark) VALUES(?, ?) ON CONFLICT(user_id) DO UPDATE SET dark = excluded.dark`),
		userID, t.Dark)
	return err
}
