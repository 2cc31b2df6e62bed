package db

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mithrel/inkwell/pkg/api"
)

type memStore struct {
	mu    sync.RWMutex
	docs  map[api.Kind]map[string]api.Document
	users map[string]api.User
	theme map[string]api.Theme
}

func newMemStore() *memStore {
	return &memStore{
		docs: map[api.Kind]map[string]api.Document{
			api.KindNote:      {},
			api.KindBlueprint: {},
		},
		users: make(map[string]api.User),
		theme: make(map[string]api.Theme),
	}
}

// matches applies the ListQuery filters other than ordering and limit.
func matches(d api.Document, q api.ListQuery) bool {
	if d.UserID != q.UserID {
		return false
	}
	if !q.Since.IsZero() && d.UpdatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && d.UpdatedAt.After(q.Until) {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Query)); s != "" {
		return strings.Contains(strings.ToLower(d.Title), s) || strings.Contains(strings.ToLower(d.Content), s)
	}
	return true
}

// sortByUpdated orders documents most recently updated first.
func sortByUpdated(out []api.Document) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
}

func (m *memStore) ListDocuments(ctx context.Context, q api.ListQuery) ([]api.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.Document, 0)
	for _, d := range m.docs[q.Kind] {
		if matches(d, q) {
			out = append(out, d)
		}
	}
	sortByUpdated(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) GetDocument(ctx context.Context, kind api.Kind, userID, id string) (api.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[kind][id]
	if !ok || d.UserID != userID {
		return api.Document{}, ErrNotFound
	}
	return d, nil
}

func (m *memStore) CreateDocument(ctx context.Context, d api.Document) (api.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.docs[d.Kind]
	if !ok || d.ID == "" {
		return api.Document{}, ErrConflict
	}
	if _, exists := coll[d.ID]; exists {
		return api.Document{}, ErrConflict
	}
	if d.Version == 0 {
		d.Version = 1
	}
	coll[d.ID] = d
	return d, nil
}

func (m *memStore) UpdateDocumentCAS(ctx context.Context, d api.Document, ifVersion int64) (api.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[d.Kind][d.ID]
	if !ok || cur.UserID != d.UserID {
		return api.Document{}, ErrNotFound
	}
	if cur.Version != ifVersion {
		return api.Document{}, ErrConflict
	}
	d.CreatedAt = cur.CreatedAt
	m.docs[d.Kind][d.ID] = d
	return d, nil
}

func (m *memStore) DeleteDocument(ctx context.Context, kind api.Kind, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[kind][id]
	if !ok || cur.UserID != userID {
		return ErrNotFound
	}
	delete(m.docs[kind], id)
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, u api.User) (api.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		return api.User{}, ErrConflict
	}
	if _, ok := m.users[u.ID]; ok {
		return api.User{}, ErrConflict
	}
	for _, other := range m.users {
		if normalizeEmail(other.Email) == normalizeEmail(u.Email) {
			return api.User{}, ErrConflict
		}
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetUser(ctx context.Context, id string) (api.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return api.User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (api.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := normalizeEmail(email)
	for _, u := range m.users {
		if normalizeEmail(u.Email) == want {
			return u, nil
		}
	}
	return api.User{}, ErrNotFound
}

func (m *memStore) ListUsers(ctx context.Context) ([]api.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateUserPassword(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memStore) GetTheme(ctx context.Context, userID string) (api.Theme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.theme[userID], nil
}

func (m *memStore) SetTheme(ctx context.Context, userID string, t api.Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme[userID] = t
	return nil
}
