package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mithrel/inkwell/internal/auth"
	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/pkg/api"
)

const maxBody = 1 << 20

// Deps are the services the HTTP API is built on.
type Deps struct {
	Auth       *auth.Service
	Signer     *session.Signer
	Notes      *service.Documents
	Blueprints *service.Documents
	Settings   *service.Settings
	Log        *slog.Logger
	// AllowOrigin is sent as Access-Control-Allow-Origin; empty means "*".
	AllowOrigin string
}

// Server serves the JSON API backed by the document services.
type Server struct {
	auth     *auth.Service
	signer   *session.Signer
	docs     []*service.Documents
	notes    *service.Documents
	settings *service.Settings
	log      *slog.Logger
	origin   string
}

func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	origin := strings.TrimSpace(d.AllowOrigin)
	if origin == "" {
		origin = "*"
	}
	return &Server{
		auth:     d.Auth,
		signer:   d.Signer,
		docs:     []*service.Documents{d.Notes, d.Blueprints},
		notes:    d.Notes,
		settings: d.Settings,
		log:      log,
		origin:   origin,
	}
}

// Router returns an http.Handler with registered routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/users", s.handleLegacyListUsers)
	mux.HandleFunc("POST /api/users", s.handleLegacyCreateUser)
	mux.HandleFunc("GET /api/notes/{userId}", s.handleLegacyListNotes)
	mux.HandleFunc("POST /api/notes/{userId}", s.handleLegacyCreateNote)

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/reset", s.handleResetRequest)
	mux.HandleFunc("POST /api/v1/auth/reset/confirm", s.handleResetConfirm)
	mux.HandleFunc("POST /api/v1/auth/password", s.authed(s.handleChangePassword))
	mux.HandleFunc("GET /api/v1/me", s.authed(s.handleMe))
	mux.HandleFunc("GET /api/v1/settings/theme", s.authed(s.handleGetTheme))
	mux.HandleFunc("PUT /api/v1/settings/theme", s.authed(s.handleSetTheme))

	for _, docs := range s.docs {
		base := "/api/v1/" + docs.Kind().Collection()
		h := docHandlers{s: s, docs: docs}
		mux.HandleFunc("GET "+base, s.authed(h.list))
		mux.HandleFunc("POST "+base, s.authed(h.create))
		mux.HandleFunc("GET "+base+"/{id}", s.authed(h.get))
		mux.HandleFunc("PUT "+base+"/{id}", s.authed(h.update))
		mux.HandleFunc("DELETE "+base+"/{id}", s.authed(h.delete))
		mux.HandleFunc("GET "+base+"/{id}/preview", s.authed(h.preview))
		mux.HandleFunc("POST "+base+"/{id}/toggle", s.authed(h.toggle))
		mux.HandleFunc("POST "+base+"/{id}/enter", s.authed(h.enter))
		mux.HandleFunc("POST "+base+"/{id}/caret", s.authed(h.caret))
		if docs.Kind() == api.KindNote {
			mux.HandleFunc("POST "+base+"/{id}/insert", s.authed(h.insert))
		}
	}
	return s.logRequests(s.cors(mux))
}

// cors answers preflight requests and stamps every response with the
// allowed origin. The v1 surface also allows the Authorization header.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.origin)
		if r.Method == http.MethodOptions {
			headers := "Content-Type"
			if strings.HasPrefix(r.URL.Path, "/api/v1/") {
				headers += ", Authorization"
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", headers)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start))
	})
}

// authed resolves the bearer token into a Session on the request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if !strings.HasPrefix(got, "Bearer ") {
			s.writeError(w, session.ErrNotAuthenticated)
			return
		}
		sess, err := s.signer.Parse(strings.TrimSpace(strings.TrimPrefix(got, "Bearer ")))
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// envelope is the {success, ...} response body.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, body envelope) {
	body["success"] = true
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	var ae *auth.Error
	switch {
	case errors.As(err, &ae):
		switch ae {
		case auth.ErrTooManyRequests:
			return http.StatusTooManyRequests
		case auth.ErrEmailInUse:
			return http.StatusConflict
		case auth.ErrInvalidCredential, auth.ErrWrongPassword:
			return http.StatusUnauthorized
		case auth.ErrUserNotFound:
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalid), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := envelope{"success": false}
	if code := auth.Code(err); code != "" {
		body["code"] = code
		body["error"] = auth.Message(err)
	} else {
		body["error"] = err.Error()
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, body)
}
