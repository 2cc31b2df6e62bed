package server

import (
	"net/http"

	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	sess, tok, err := s.auth.Register(r.Context(), in.Email, in.Password, in.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"token": tok, "session": sess})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	sess, tok, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"token": tok, "session": sess})
}

// handleResetRequest returns the reset token in the response; there is no
// mail delivery.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	tok, err := s.auth.RequestReset(r.Context(), in.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"reset_token": tok})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.auth.ConfirmReset(r.Context(), in.Token, in.Password); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Current  string `json:"current"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.auth.ChangePassword(r.Context(), session.FromContext(r.Context()), in.Current, in.Password); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": u})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.settings.Theme(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"theme": t.String(), "dark": t.Dark})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	t, err := service.ParseTheme(in.Theme)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.settings.SetTheme(r.Context(), session.FromContext(r.Context()), t); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"theme": t.String(), "dark": t.Dark})
}
