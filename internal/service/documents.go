// Package service implements note and blueprint operations on top of the
// store: owner checks, default values, search ranking and serialised saves.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/editor"
	"github.com/mithrel/inkwell/internal/markup"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/internal/util"
	"github.com/mithrel/inkwell/pkg/api"
)

var ErrInvalid = errors.New("invalid input")

const MaxTitleLen = 200

// Options tune a Documents service.
type Options struct {
	Log *slog.Logger
	// FuzzyRank orders search results by fuzzy title match instead of recency.
	FuzzyRank bool
}

// Documents serves one collection (notes or blueprints).
type Documents struct {
	kind  api.Kind
	store db.Documents
	queue *saveQueue
	log   *slog.Logger
	fuzzy bool
	now   func() time.Time

	carets sync.Map // caretKey -> *editor.Caret
}

func NewDocuments(kind api.Kind, store db.Documents, opts Options) *Documents {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Documents{
		kind:  kind,
		store: store,
		queue: newSaveQueue(),
		log:   log.With("kind", string(kind)),
		fuzzy: opts.FuzzyRank,
		now:   time.Now,
	}
}

func (s *Documents) Kind() api.Kind { return s.kind }

// ListOptions narrows List.
type ListOptions struct {
	Query string
	Since time.Time
	Until time.Time
	Limit int
}

// List returns the owner's documents, most recently updated first. A
// non-empty Query keeps documents whose title or content contains it
// (case-insensitive).
func (s *Documents) List(ctx context.Context, sess session.Session, o ListOptions) ([]api.Document, error) {
	if err := session.Require(sess); err != nil {
		return nil, err
	}
	q := api.ListQuery{UserID: sess.UserID, Kind: s.kind, Query: strings.TrimSpace(o.Query), Since: o.Since, Until: o.Until, Limit: o.Limit}
	docs, err := s.store.ListDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind.Collection(), err)
	}
	if q.Query == "" || !s.fuzzy || len(docs) < 2 {
		return docs, nil
	}
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
	}
	ranked := make([]api.Document, 0, len(docs))
	for _, i := range util.RankTitles(q.Query, titles) {
		ranked = append(ranked, docs[i])
	}
	return ranked, nil
}

func (s *Documents) Get(ctx context.Context, sess session.Session, id string) (api.Document, error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, err
	}
	d, err := s.store.GetDocument(ctx, s.kind, sess.UserID, id)
	if err != nil {
		return api.Document{}, fmt.Errorf("get %s %s: %w", s.kind, id, err)
	}
	return d, nil
}

func validateTitle(title string) error {
	if err := validation.Validate(title, validation.RuneLength(0, MaxTitleLen)); err != nil {
		return fmt.Errorf("%w: title %v", ErrInvalid, err)
	}
	return nil
}

// Create stores a new document. An empty title becomes the kind's default.
func (s *Documents) Create(ctx context.Context, sess session.Session, title, content string) (api.Document, error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, err
	}
	return s.create(ctx, api.Document{ID: api.NewID(), UserID: sess.UserID, Title: title, Content: content})
}

func (s *Documents) create(ctx context.Context, d api.Document) (api.Document, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = s.kind.DefaultTitle()
	}
	if err := validateTitle(d.Title); err != nil {
		return api.Document{}, err
	}
	now := s.now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Kind = s.kind
	d.Version = 1
	d, err := s.store.CreateDocument(ctx, d)
	if err != nil {
		return api.Document{}, fmt.Errorf("create %s: %w", s.kind, err)
	}
	s.log.Debug("created", "id", d.ID)
	return d, nil
}

// Upsert writes an imported document: the document with in.ID is replaced
// when the owner already has it, otherwise it is created under that ID (or
// a fresh one when in.ID is empty). created reports which happened.
func (s *Documents) Upsert(ctx context.Context, sess session.Session, in api.Document) (d api.Document, created bool, err error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, false, err
	}
	if in.ID != "" {
		title, content := in.Title, in.Content
		d, err = s.Update(ctx, sess, in.ID, Patch{Title: &title, Content: &content})
		if err == nil || !errors.Is(err, db.ErrNotFound) {
			return d, false, err
		}
	} else {
		in.ID = api.NewID()
	}
	d, err = s.create(ctx, api.Document{ID: in.ID, UserID: sess.UserID, Title: in.Title, Content: in.Content, CreatedAt: in.CreatedAt.UTC()})
	if err != nil {
		return api.Document{}, false, err
	}
	return d, true, nil
}

// Patch carries the fields an Update changes; nil leaves a field as is.
type Patch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Update replaces title and/or content. Concurrent updates of one document
// are serialised. A patch that sets both fields may supersede a queued one;
// a partial patch is applied in order so no acknowledged field is lost.
func (s *Documents) Update(ctx context.Context, sess session.Session, id string, p Patch) (api.Document, error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, err
	}
	if p.Title != nil {
		if err := validateTitle(strings.TrimSpace(*p.Title)); err != nil {
			return api.Document{}, err
		}
	}
	full := p.Title != nil && p.Content != nil
	return s.save(ctx, sess, id, full, func(cur api.Document) (api.Document, error) {
		if p.Title != nil {
			cur.Title = strings.TrimSpace(*p.Title)
		}
		if p.Content != nil {
			cur.Content = *p.Content
		}
		return cur, nil
	})
}

// save runs edit against the stored document inside the save queue and
// persists the result with a version check. Unchanged content is not written.
func (s *Documents) save(ctx context.Context, sess session.Session, id string, replace bool, edit func(api.Document) (api.Document, error)) (api.Document, error) {
	key := sess.UserID + "/" + id
	d, err := s.queue.Do(ctx, key, replace, func(ctx context.Context) (api.Document, error) {
		cur, err := s.store.GetDocument(ctx, s.kind, sess.UserID, id)
		if err != nil {
			return api.Document{}, err
		}
		next, err := edit(cur)
		if err != nil {
			return api.Document{}, err
		}
		if next.Hash() == cur.Hash() {
			return cur, nil
		}
		next.UpdatedAt = s.now().UTC()
		next.Version = cur.Version + 1
		return s.store.UpdateDocumentCAS(ctx, next, cur.Version)
	})
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.log.Error("save failed", "id", id, "err", err)
		}
		return api.Document{}, fmt.Errorf("save %s %s: %w", s.kind, id, err)
	}
	return d, nil
}

func (s *Documents) Delete(ctx context.Context, sess session.Session, id string) error {
	if err := session.Require(sess); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, s.kind, sess.UserID, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", s.kind, id, err)
	}
	s.carets.Delete(caretKey(sess, id))
	s.log.Debug("deleted", "id", id)
	return nil
}

func caretKey(sess session.Session, id string) string { return sess.UserID + "/" + id }

func (s *Documents) caret(sess session.Session, id string) *editor.Caret {
	c, _ := s.carets.LoadOrStore(caretKey(sess, id), &editor.Caret{})
	return c.(*editor.Caret)
}

// ObserveCaret records the cursor offset an editing surface reported for
// document id on focus or change.
func (s *Documents) ObserveCaret(ctx context.Context, sess session.Session, id string, offset int) error {
	d, err := s.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("%w: caret must not be negative", ErrInvalid)
	}
	if offset < len(d.Content) && !editor.ValidOffset(d.Content, offset) {
		return fmt.Errorf("%w: caret splits a character", ErrInvalid)
	}
	s.caret(sess, id).Observe(offset)
	return nil
}

// LastCaret returns the last observed offset for id, 0 when none was seen.
func (s *Documents) LastCaret(sess session.Session, id string) int {
	if c, ok := s.carets.Load(caretKey(sess, id)); ok {
		return c.(*editor.Caret).Offset()
	}
	return 0
}

// ToggleCheckbox flips the checkbox on line index and persists the change.
// An index that does not address a checkbox line is a no-op reported as
// toggled=false.
func (s *Documents) ToggleCheckbox(ctx context.Context, sess session.Session, id string, index int) (d api.Document, toggled bool, err error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, false, err
	}
	d, err = s.save(ctx, sess, id, false, func(cur api.Document) (api.Document, error) {
		next, ok := markup.Toggle(cur.Content, index)
		toggled = ok
		cur.Content = next
		return cur, nil
	})
	if err != nil {
		return api.Document{}, false, err
	}
	return d, toggled, nil
}

// InsertBlueprint splices the content of a blueprint into a note at offset.
// An offset outside the note content appends. The note's caret moves to the
// end of the inserted block.
func (s *Documents) InsertBlueprint(ctx context.Context, sess session.Session, noteID, blueprintID string, offset int) (api.Document, error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, err
	}
	if s.kind != api.KindNote {
		return api.Document{}, fmt.Errorf("%w: blueprints can only be inserted into notes", ErrInvalid)
	}
	bp, err := s.store.GetDocument(ctx, api.KindBlueprint, sess.UserID, blueprintID)
	if err != nil {
		return api.Document{}, fmt.Errorf("get blueprint %s: %w", blueprintID, err)
	}
	end := 0
	d, err := s.save(ctx, sess, noteID, false, func(cur api.Document) (api.Document, error) {
		end = len(cur.Content)
		if editor.ValidOffset(cur.Content, offset) {
			end = offset
		}
		end += len(bp.Content)
		cur.Content = editor.Insert(cur.Content, bp.Content, offset)
		return cur, nil
	})
	if err != nil {
		return api.Document{}, err
	}
	s.caret(sess, noteID).Observe(end)
	return d, nil
}

// InsertBlueprintAtCaret inserts at the last observed caret of the note,
// or at 0 when no caret was ever observed.
func (s *Documents) InsertBlueprintAtCaret(ctx context.Context, sess session.Session, noteID, blueprintID string) (api.Document, error) {
	return s.InsertBlueprint(ctx, sess, noteID, blueprintID, s.LastCaret(sess, noteID))
}

// Enter applies list continuation for an Enter keypress at caret. When the
// keypress is not handled the document is not written and the result says so.
func (s *Documents) Enter(ctx context.Context, sess session.Session, id string, caret int) (editor.EnterResult, api.Document, error) {
	if err := session.Require(sess); err != nil {
		return editor.EnterResult{}, api.Document{}, err
	}
	var res editor.EnterResult
	d, err := s.save(ctx, sess, id, false, func(cur api.Document) (api.Document, error) {
		res = editor.HandleEnter(cur.Content, caret)
		cur.Content = res.Content
		return cur, nil
	})
	if err != nil {
		return editor.EnterResult{}, api.Document{}, err
	}
	s.caret(sess, id).Observe(res.Caret)
	return res, d, nil
}

// Preview classifies the document content for display.
func (s *Documents) Preview(ctx context.Context, sess session.Session, id string) (api.Document, []markup.Line, error) {
	d, err := s.Get(ctx, sess, id)
	if err != nil {
		return api.Document{}, nil, err
	}
	return d, markup.Classify(d.Content), nil
}

// SetCheckbox forces the checkbox on line index into the given state. It
// reports false for lines that are not checkboxes.
func (s *Documents) SetCheckbox(ctx context.Context, sess session.Session, id string, index int, checked bool) (d api.Document, ok bool, err error) {
	if err := session.Require(sess); err != nil {
		return api.Document{}, false, err
	}
	d, err = s.save(ctx, sess, id, false, func(cur api.Document) (api.Document, error) {
		cur.Content, ok = markup.SetChecked(cur.Content, index, checked)
		return cur, nil
	})
	if err != nil {
		return api.Document{}, false, err
	}
	return d, ok, nil
}
