package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mithrel/inkwell/pkg/api"
)

// localFile is the on-disk layout of the local backend: one namespaced
// slot per collection plus the theme flags.
type localFile struct {
	Notes      []api.Document       `json:"notes"`
	Blueprints []api.Document       `json:"blueprints"`
	Theme      map[string]api.Theme `json:"theme"`
	Users      []localUser          `json:"users"`
}

// localUser carries the password hash, which api.User never serialises.
type localUser struct {
	api.User
	PasswordHash string `json:"password_hash"`
}

// localStore keeps a memStore in sync with a JSON file. Every mutation is
// flushed atomically; external edits to the file are picked up by a watcher.
type localStore struct {
	*memStore
	path    string
	writeMu sync.Mutex // held across a mutation and its flush
	last    []byte     // bytes of the last flush, to skip self-triggered reloads
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func openLocal(ctx context.Context, dsn string) (*Store, io.Closer, error) {
	path := sqlitePath(dsn)
	if path == "" {
		return nil, nil, errors.New("local driver requires storage.dsn")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	l := &localStore{memStore: newMemStore(), path: path, done: make(chan struct{})}
	if err := l.load(); err != nil {
		return nil, nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	// Watch the directory; atomic renames replace the file's inode.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	l.watcher = w
	go l.watch()
	return &Store{Documents: l, Users: l, Settings: l}, l, nil
}

func (l *localStore) Close() error {
	close(l.done)
	return l.watcher.Close()
}

func (l *localStore) watch() {
	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(l.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := l.load(); err != nil {
				slog.Warn("local store reload failed", "path", l.path, "err", err)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("local store watcher", "err", err)
		}
	}
}

// load replaces the in-memory state with the file contents. A missing file
// is an empty store; a malformed slot is an error and leaves state untouched.
func (l *localStore) load() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	b, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b) == 0 || bytes.Equal(b, l.last) {
		return nil
	}
	var f localFile
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	next := newMemStore()
	for _, d := range f.Notes {
		d.Kind = api.KindNote
		next.docs[api.KindNote][d.ID] = d
	}
	for _, d := range f.Blueprints {
		d.Kind = api.KindBlueprint
		next.docs[api.KindBlueprint][d.ID] = d
	}
	for _, u := range f.Users {
		u.User.PasswordHash = u.PasswordHash
		next.users[u.ID] = u.User
	}
	for id, t := range f.Theme {
		next.theme[id] = t
	}

	l.mu.Lock()
	l.docs, l.users, l.theme = next.docs, next.users, next.theme
	l.mu.Unlock()
	return nil
}

// flush writes the current state through a temp file and rename. Callers hold writeMu.
func (l *localStore) flush() error {
	l.mu.RLock()
	f := localFile{Theme: make(map[string]api.Theme, len(l.theme))}
	for _, d := range l.docs[api.KindNote] {
		f.Notes = append(f.Notes, d)
	}
	for _, d := range l.docs[api.KindBlueprint] {
		f.Blueprints = append(f.Blueprints, d)
	}
	for _, u := range l.users {
		f.Users = append(f.Users, localUser{User: u, PasswordHash: u.PasswordHash})
	}
	for id, t := range l.theme {
		f.Theme[id] = t
	}
	l.mu.RUnlock()
	sortByUpdated(f.Notes)
	sortByUpdated(f.Blueprints)

	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".inkwell-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return err
	}
	l.last = b
	return nil
}

func (l *localStore) CreateDocument(ctx context.Context, d api.Document) (api.Document, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	out, err := l.memStore.CreateDocument(ctx, d)
	if err != nil {
		return out, err
	}
	return out, l.flush()
}

func (l *localStore) UpdateDocumentCAS(ctx context.Context, d api.Document, ifVersion int64) (api.Document, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	out, err := l.memStore.UpdateDocumentCAS(ctx, d, ifVersion)
	if err != nil {
		return out, err
	}
	return out, l.flush()
}

func (l *localStore) DeleteDocument(ctx context.Context, kind api.Kind, userID, id string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.memStore.DeleteDocument(ctx, kind, userID, id); err != nil {
		return err
	}
	return l.flush()
}

func (l *localStore) CreateUser(ctx context.Context, u api.User) (api.User, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	out, err := l.memStore.CreateUser(ctx, u)
	if err != nil {
		return out, err
	}
	return out, l.flush()
}

func (l *localStore) UpdateUserPassword(ctx context.Context, id, hash string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.memStore.UpdateUserPassword(ctx, id, hash); err != nil {
		return err
	}
	return l.flush()
}

func (l *localStore) SetTheme(ctx context.Context, userID string, t api.Theme) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := l.memStore.SetTheme(ctx, userID, t); err != nil {
		return err
	}
	return l.flush()
}
