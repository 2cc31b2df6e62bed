package server

import (
	"net/http"

	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
)

// The /api/users and /api/notes/{userId} routes keep the unauthenticated
// shape older clients were written against. The owner comes from the path.

func (s *Server) handleLegacyListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"users": users})
}

func (s *Server) handleLegacyCreateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	u, err := s.auth.AddUser(r.Context(), in.Email, in.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": envelope{"id": u.ID, "email": u.Email, "name": u.Name}})
}

func (s *Server) handleLegacyListNotes(w http.ResponseWriter, r *http.Request) {
	sess := session.Session{UserID: r.PathValue("userId")}
	notes, err := s.notes.List(r.Context(), sess, service.ListOptions{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"notes": notes})
}

func (s *Server) handleLegacyCreateNote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	sess := session.Session{UserID: r.PathValue("userId")}
	n, err := s.notes.Create(r.Context(), sess, in.Title, in.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"note": envelope{"id": n.ID, "user_id": n.UserID, "title": n.Title, "content": n.Content}})
}
