package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mithrel/inkwell/internal/render"
	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/internal/util"
	"github.com/mithrel/inkwell/pkg/api"
)

// docHandlers binds the v1 document routes to one collection.
type docHandlers struct {
	s    *Server
	docs *service.Documents
}

func (h docHandlers) one(d api.Document) envelope {
	return envelope{string(h.docs.Kind()): d}
}

func (h docHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, until, err := util.NormalizeTimeRange(q.Get("since"), q.Get("until"))
	if err != nil {
		h.s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	opts := service.ListOptions{Query: q.Get("q"), Since: since, Until: until}
	if ls := strings.TrimSpace(q.Get("limit")); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n < 0 {
			h.s.writeError(w, fmt.Errorf("%w: bad limit %q", errBadRequest, ls))
			return
		}
		opts.Limit = n
	}
	docs, err := h.docs.List(r.Context(), session.FromContext(r.Context()), opts)
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	if docs == nil {
		docs = []api.Document{}
	}
	writeOK(w, http.StatusOK, envelope{h.docs.Kind().Collection(): docs})
}

func (h docHandlers) create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.s.writeError(w, err)
		return
	}
	d, err := h.docs.Create(r.Context(), session.FromContext(r.Context()), in.Title, in.Content)
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, h.one(d))
}

func (h docHandlers) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.docs.Get(r.Context(), session.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, h.one(d))
}

func (h docHandlers) update(w http.ResponseWriter, r *http.Request) {
	var p service.Patch
	if err := decodeJSON(r, &p); err != nil {
		h.s.writeError(w, err)
		return
	}
	d, err := h.docs.Update(r.Context(), session.FromContext(r.Context()), r.PathValue("id"), p)
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, h.one(d))
}

func (h docHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Delete(r.Context(), session.FromContext(r.Context()), r.PathValue("id")); err != nil {
		h.s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{})
}

// preview returns the classified lines, or rendered HTML for ?format=html.
func (h docHandlers) preview(w http.ResponseWriter, r *http.Request) {
	d, lines, err := h.docs.Preview(r.Context(), session.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	body := envelope{"id": d.ID, "title": d.Title}
	switch r.URL.Query().Get("format") {
	case "", "lines":
		body["lines"] = lines
	case "html":
		html, err := render.HTML(d.Content)
		if err != nil {
			h.s.writeError(w, err)
			return
		}
		body["html"] = html
	default:
		h.s.writeError(w, fmt.Errorf("%w: format must be lines or html", errBadRequest))
		return
	}
	writeOK(w, http.StatusOK, body)
}

// toggle flips the checkbox at index, or forces it when checked is given.
func (h docHandlers) toggle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Index   *int  `json:"index"`
		Checked *bool `json:"checked"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.s.writeError(w, err)
		return
	}
	if in.Index == nil {
		h.s.writeError(w, fmt.Errorf("%w: index is required", errBadRequest))
		return
	}
	sess := session.FromContext(r.Context())
	var (
		d   api.Document
		ok  bool
		err error
	)
	if in.Checked != nil {
		d, ok, err = h.docs.SetCheckbox(r.Context(), sess, r.PathValue("id"), *in.Index, *in.Checked)
	} else {
		d, ok, err = h.docs.ToggleCheckbox(r.Context(), sess, r.PathValue("id"), *in.Index)
	}
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	body := h.one(d)
	body["toggled"] = ok
	writeOK(w, http.StatusOK, body)
}

func (h docHandlers) insert(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BlueprintID string `json:"blueprint_id"`
		Caret       *int   `json:"caret"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.s.writeError(w, err)
		return
	}
	sess := session.FromContext(r.Context())
	var (
		d   api.Document
		err error
	)
	if in.Caret != nil {
		d, err = h.docs.InsertBlueprint(r.Context(), sess, r.PathValue("id"), in.BlueprintID, *in.Caret)
	} else {
		d, err = h.docs.InsertBlueprintAtCaret(r.Context(), sess, r.PathValue("id"), in.BlueprintID)
	}
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, h.one(d))
}

// caret records the cursor position an editing surface reports on focus
// or change, for later inserts without an explicit caret.
func (h docHandlers) caret(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Caret *int `json:"caret"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.s.writeError(w, err)
		return
	}
	if in.Caret == nil {
		h.s.writeError(w, fmt.Errorf("%w: caret is required", errBadRequest))
		return
	}
	if err := h.docs.ObserveCaret(r.Context(), session.FromContext(r.Context()), r.PathValue("id"), *in.Caret); err != nil {
		h.s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"caret": *in.Caret})
}

func (h docHandlers) enter(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Caret int `json:"caret"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.s.writeError(w, err)
		return
	}
	res, d, err := h.docs.Enter(r.Context(), session.FromContext(r.Context()), r.PathValue("id"), in.Caret)
	if err != nil {
		h.s.writeError(w, err)
		return
	}
	body := h.one(d)
	body["handled"] = res.Handled
	body["caret"] = res.Caret
	writeOK(w, http.StatusOK, body)
}
