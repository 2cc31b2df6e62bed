package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/markup"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/pkg/api"
)

var alice = session.Session{UserID: "alice", Email: "alice@example.com", Name: "Alice"}

func setupServices(t *testing.T) (*Documents, *Documents, *db.Store) {
	t.Helper()
	st, _, err := db.Open(context.Background(), "mem", "")
	require.NoError(t, err)
	notes := NewDocuments(api.KindNote, st.Documents, Options{FuzzyRank: true})
	blueprints := NewDocuments(api.KindBlueprint, st.Documents, Options{})
	return notes, blueprints, st
}

func ptr(s string) *string { return &s }

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	notes, blueprints, _ := setupServices(t)

	n, err := notes.Create(ctx, alice, "  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Note", n.Title)
	assert.Equal(t, "", n.Content)
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, int64(1), n.Version)

	b, err := blueprints.Create(ctx, alice, "", "- [ ] x")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Blueprint", b.Title)

	_, err = notes.Create(ctx, session.Session{}, "t", "")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	long := make([]byte, MaxTitleLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = notes.Create(ctx, alice, string(long), "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	n, err := notes.Create(ctx, alice, "mine", "")
	require.NoError(t, err)

	bob := session.Session{UserID: "bob"}
	_, err = notes.Get(ctx, bob, n.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = notes.Update(ctx, bob, n.ID, Patch{Content: ptr("stolen")})
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.ErrorIs(t, notes.Delete(ctx, bob, n.ID), db.ErrNotFound)

	list, err := notes.List(ctx, bob, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateAndDedupe(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	n, err := notes.Create(ctx, alice, "t", "a")
	require.NoError(t, err)

	u, err := notes.Update(ctx, alice, n.ID, Patch{Content: ptr("b")})
	require.NoError(t, err)
	assert.Equal(t, "b", u.Content)
	assert.Equal(t, "t", u.Title)
	assert.Equal(t, int64(2), u.Version)

	// same content again is not written
	same, err := notes.Update(ctx, alice, n.ID, Patch{Content: ptr("b")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), same.Version)

	u, err = notes.Update(ctx, alice, n.ID, Patch{Title: ptr(" New ")})
	require.NoError(t, err)
	assert.Equal(t, "New", u.Title)
	assert.Equal(t, "b", u.Content)
	assert.Equal(t, int64(3), u.Version)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	for _, n := range []struct{ title, content string }{
		{"Shopping", "buy Milk"},
		{"Milk run", "errands"},
		{"Work", "nothing here"},
	} {
		_, err := notes.Create(ctx, alice, n.title, n.content)
		require.NoError(t, err)
	}
	got, err := notes.List(ctx, alice, ListOptions{Query: "milk"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// fuzzy ranking puts the title match first
	assert.Equal(t, "Milk run", got[0].Title)

	got, err = notes.List(ctx, alice, ListOptions{Query: "MILK RUN"})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestToggleCheckboxScenario(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	n, err := notes.Create(ctx, alice, "", "- [ ] buy milk\n- [x] pay rent")
	require.NoError(t, err)

	d, ok, err := notes.ToggleCheckbox(ctx, alice, n.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "- [x] buy milk\n- [x] pay rent", d.Content)

	lines := markup.Classify(d.Content)
	assert.True(t, lines[0].Checked)

	d, ok, err = notes.ToggleCheckbox(ctx, alice, n.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "- [x] buy milk\n- [x] pay rent", d.Content)
	assert.Equal(t, int64(2), d.Version)

	d, ok, err = notes.SetCheckbox(ctx, alice, n.ID, 1, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "- [x] buy milk\n- [ ] pay rent", d.Content)

	_, _, err = notes.ToggleCheckbox(ctx, alice, "missing", 0)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestInsertBlueprint(t *testing.T) {
	ctx := context.Background()
	notes, blueprints, _ := setupServices(t)
	bp, err := blueprints.Create(ctx, alice, "Daily", "- [ ] stretch\n")
	require.NoError(t, err)
	n, err := notes.Create(ctx, alice, "", "Morning\nEvening")
	require.NoError(t, err)

	d, err := notes.InsertBlueprint(ctx, alice, n.ID, bp.ID, len("Morning\n"))
	require.NoError(t, err)
	assert.Equal(t, "Morning\n- [ ] stretch\nEvening", d.Content)

	d, err = notes.InsertBlueprint(ctx, alice, n.ID, bp.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, "Morning\n- [ ] stretch\nEvening- [ ] stretch\n", d.Content)

	_, err = notes.InsertBlueprint(ctx, alice, n.ID, "missing", 0)
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = blueprints.InsertBlueprint(ctx, alice, bp.ID, bp.ID, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnter(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	n, err := notes.Create(ctx, alice, "", "- [ ] wash car")
	require.NoError(t, err)

	res, d, err := notes.Enter(ctx, alice, n.ID, len("- [ ] wash car"))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "- [ ] wash car\n- [ ] ", d.Content)

	res, d, err = notes.Enter(ctx, alice, n.ID, len(d.Content))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, "- [ ] wash car\n", d.Content)

	res, d, err = notes.Enter(ctx, alice, n.ID, len(d.Content))
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, "- [ ] wash car\n", d.Content)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	n, err := notes.Create(ctx, alice, "", "# Title\n- [ ] task\n\nplain")
	require.NoError(t, err)
	_, lines, err := notes.Preview(ctx, alice, n.ID)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, "h1", lines[0].Type())
	assert.Equal(t, "checkbox", lines[1].Type())
	assert.Equal(t, " ", lines[2].Text)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	_, _, st := setupServices(t)
	s := NewSettings(st.Settings)
	th, err := s.Theme(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "light", th.String())

	dark, err := ParseTheme("dark")
	require.NoError(t, err)
	require.NoError(t, s.SetTheme(ctx, alice, dark))
	th, err = s.Theme(ctx, alice)
	require.NoError(t, err)
	assert.True(t, th.Dark)

	_, err = ParseTheme("blue")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.Theme(ctx, session.Session{})
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func pendingLen(q *saveQueue, key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[key]; ok {
		return len(l.pending)
	}
	return -1
}

func TestSaveQueueCollapsesReplaces(t *testing.T) {
	q := newSaveQueue()
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	var ran []string
	var mu sync.Mutex
	write := func(name string, block bool) writeFunc {
		return func(context.Context) (api.Document, error) {
			if block {
				close(started)
				<-release
			}
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return api.Document{Content: name}, nil
		}
	}

	results := make([]string, 3)
	var wg sync.WaitGroup
	do := func(i int, name string, block bool) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := q.Do(ctx, "k", true, write(name, block))
			assert.NoError(t, err)
			results[i] = d.Content
		}()
	}

	do(0, "first", true)
	<-started
	do(1, "second", false)
	require.Eventually(t, func() bool { return pendingLen(q, "k") == 1 }, time.Second, time.Millisecond)
	do(2, "third", false)
	// third replaced second in the pending slot
	require.Never(t, func() bool { return pendingLen(q, "k") == 2 }, 50*time.Millisecond, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"first", "third"}, ran)
	assert.Equal(t, []string{"first", "third", "third"}, results)
	require.Eventually(t, func() bool { return pendingLen(q, "k") == -1 }, time.Second, time.Millisecond)
}

func TestSaveQueueKeepsEdits(t *testing.T) {
	q := newSaveQueue()
	ctx := context.Background()
	release := make(chan struct{})
	var count atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Do(ctx, "k", false, func(context.Context) (api.Document, error) {
			<-release
			count.Add(1)
			return api.Document{}, nil
		})
	}()
	require.Eventually(t, func() bool { return pendingLen(q, "k") == 0 }, time.Second, time.Millisecond)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Do(ctx, "k", false, func(context.Context) (api.Document, error) {
				count.Add(1)
				return api.Document{}, nil
			})
		}()
	}
	require.Eventually(t, func() bool { return pendingLen(q, "k") == 3 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(4), count.Load())
}

func TestSaveQueueCallerCancel(t *testing.T) {
	q := newSaveQueue()
	release := make(chan struct{})
	done := make(chan struct{})
	errCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, err := q.Do(ctx, "k", true, func(context.Context) (api.Document, error) {
			<-release
			close(done)
			return api.Document{}, nil
		})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return pendingLen(q, "k") == 0 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("save did not run after caller cancelled")
	}
}

func TestConcurrentUpdatesConverge(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)
	n, err := notes.Create(ctx, alice, "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := notes.Update(ctx, alice, n.ID, Patch{Content: ptr(string(rune('a' + i)))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	got, err := notes.Get(ctx, alice, n.ID)
	require.NoError(t, err)
	assert.Len(t, got.Content, 1)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	notes, _, _ := setupServices(t)

	n, created, err := notes.Upsert(ctx, alice, api.Document{ID: "imported-1", Title: "From disk", Content: "a"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "imported-1", n.ID)
	assert.Equal(t, api.KindNote, n.Kind)

	n, created, err = notes.Upsert(ctx, alice, api.Document{ID: "imported-1", Title: "From disk", Content: "b"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "b", n.Content)
	assert.Equal(t, int64(2), n.Version)

	fresh, created, err := notes.Upsert(ctx, alice, api.Document{Content: "c"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, "Untitled Note", fresh.Title)
}

func TestCaretTracking(t *testing.T) {
	ctx := context.Background()
	notes, blueprints, _ := setupServices(t)
	bp, err := blueprints.Create(ctx, alice, "", "[bp]")
	require.NoError(t, err)
	n, err := notes.Create(ctx, alice, "", "- [ ] a")
	require.NoError(t, err)

	assert.Equal(t, 0, notes.LastCaret(alice, n.ID))
	d, err := notes.InsertBlueprintAtCaret(ctx, alice, n.ID, bp.ID)
	require.NoError(t, err)
	assert.Equal(t, "[bp]- [ ] a", d.Content)
	assert.Equal(t, len("[bp]"), notes.LastCaret(alice, n.ID))

	res, _, err := notes.Enter(ctx, alice, n.ID, len(d.Content))
	require.NoError(t, err)
	assert.Equal(t, res.Caret, notes.LastCaret(alice, n.ID))

	require.NoError(t, notes.ObserveCaret(ctx, alice, n.ID, 2))
	assert.Equal(t, 2, notes.LastCaret(alice, n.ID))
	assert.ErrorIs(t, notes.ObserveCaret(ctx, alice, n.ID, -3), ErrInvalid)
	assert.ErrorIs(t, notes.ObserveCaret(ctx, alice, "missing", 0), db.ErrNotFound)

	// offsets are bytes and must not split a character
	cafe, err := notes.Create(ctx, alice, "", "é")
	require.NoError(t, err)
	assert.ErrorIs(t, notes.ObserveCaret(ctx, alice, cafe.ID, 1), ErrInvalid)
	x, err := blueprints.Create(ctx, alice, "", "X")
	require.NoError(t, err)
	got, err := notes.InsertBlueprint(ctx, alice, cafe.ID, x.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "éX", got.Content)

	// carets are per owner
	bob := session.Session{UserID: "bob"}
	assert.Equal(t, 0, notes.LastCaret(bob, n.ID))

	require.NoError(t, notes.Delete(ctx, alice, n.ID))
	assert.Equal(t, 0, notes.LastCaret(alice, n.ID))
}

// gatedDocuments holds the first version-checked write until release closes.
type gatedDocuments struct {
	db.Documents
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedDocuments) UpdateDocumentCAS(ctx context.Context, d api.Document, ifVersion int64) (api.Document, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.Documents.UpdateDocumentCAS(ctx, d, ifVersion)
}

func TestPartialUpdatesAreNotSuperseded(t *testing.T) {
	ctx := context.Background()
	st, _, err := db.Open(ctx, "mem", "")
	require.NoError(t, err)
	gate := &gatedDocuments{Documents: st.Documents, started: make(chan struct{}), release: make(chan struct{})}
	notes := NewDocuments(api.KindNote, gate, Options{})
	n, err := notes.Create(ctx, alice, "orig", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	update := func(p Patch, out *api.Document) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := notes.Update(ctx, alice, n.ID, p)
			assert.NoError(t, err)
			if out != nil {
				*out = d
			}
		}()
	}
	key := alice.UserID + "/" + n.ID

	update(Patch{Content: ptr("first")}, nil)
	<-gate.started
	var titled api.Document
	update(Patch{Title: ptr("NEW TITLE")}, &titled)
	require.Eventually(t, func() bool { return pendingLen(notes.queue, key) == 1 }, time.Second, time.Millisecond)
	update(Patch{Content: ptr("second")}, nil)
	require.Eventually(t, func() bool { return pendingLen(notes.queue, key) == 2 }, time.Second, time.Millisecond)
	close(gate.release)
	wg.Wait()

	assert.Equal(t, "NEW TITLE", titled.Title)
	got, err := notes.Get(ctx, alice, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "NEW TITLE", got.Title)
	assert.Equal(t, "second", got.Content)
}
