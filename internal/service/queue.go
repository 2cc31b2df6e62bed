package service

import (
	"context"
	"sync"

	"github.com/mithrel/inkwell/pkg/api"
)

// writeFunc performs one save against the store and returns the persisted document.
type writeFunc func(ctx context.Context) (api.Document, error)

type call struct {
	ctx context.Context
	fn  writeFunc
	// replace marks a whole-document save that a newer replace may supersede.
	replace bool
	done    chan struct{}
	doc     api.Document
	err     error
	// merged are superseded calls that receive this call's result.
	merged []*call
}

func (c *call) finish(doc api.Document, err error) {
	for _, m := range append(c.merged, c) {
		m.doc, m.err = doc, err
		close(m.done)
	}
}

type lane struct {
	pending []*call
}

// saveQueue serialises saves per entity. While one save for an entity is in
// flight, a queued whole-document save is replaced by a newer one (last
// writer wins) and its callers get the newer save's result. Edits that
// depend on the current content (toggle, insert, enter) are never dropped.
type saveQueue struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

func newSaveQueue() *saveQueue {
	return &saveQueue{lanes: make(map[string]*lane)}
}

// Do enqueues fn for key and waits for its outcome. A caller whose context
// ends stops waiting; the save itself still runs.
func (q *saveQueue) Do(ctx context.Context, key string, replace bool, fn writeFunc) (api.Document, error) {
	c := &call{ctx: context.WithoutCancel(ctx), fn: fn, replace: replace, done: make(chan struct{})}

	q.mu.Lock()
	l, running := q.lanes[key]
	if !running {
		l = &lane{}
		q.lanes[key] = l
	}
	if n := len(l.pending); replace && n > 0 && l.pending[n-1].replace {
		prev := l.pending[n-1]
		c.merged = append(prev.merged, prev)
		l.pending[n-1] = c
	} else {
		l.pending = append(l.pending, c)
	}
	q.mu.Unlock()

	if !running {
		go q.drain(key, l)
	}

	select {
	case <-c.done:
		return c.doc, c.err
	case <-ctx.Done():
		return api.Document{}, ctx.Err()
	}
}

func (q *saveQueue) drain(key string, l *lane) {
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		c := l.pending[0]
		l.pending = l.pending[1:]
		q.mu.Unlock()

		c.finish(c.fn(c.ctx))
	}
}
