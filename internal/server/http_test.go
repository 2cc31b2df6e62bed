package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/inkwell/internal/auth"
	"github.com/mithrel/inkwell/internal/db"
	"github.com/mithrel/inkwell/internal/service"
	"github.com/mithrel/inkwell/internal/session"
	"github.com/mithrel/inkwell/pkg/api"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st, _, err := db.Open(context.Background(), "mem", "")
	require.NoError(t, err)
	signer, err := session.NewSigner("test-secret", time.Hour)
	require.NoError(t, err)
	return New(Deps{
		Auth:       auth.New(st.Users, signer, nil),
		Signer:     signer,
		Notes:      service.NewDocuments(api.KindNote, st.Documents, service.Options{}),
		Blueprints: service.NewDocuments(api.KindBlueprint, st.Documents, service.Options{}),
		Settings:   service.NewSettings(st.Settings),
	}).Router()
}

type result struct {
	status int
	header http.Header
	body   map[string]any
}

func do(t *testing.T, h http.Handler, method, path, token string, in any) result {
	t.Helper()
	var body bytes.Buffer
	if in != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(in))
	}
	req := httptest.NewRequest(method, path, &body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	res := result{status: rec.Code, header: rec.Header()}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.body))
	}
	return res
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	res := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": email, "password": "secret1", "name": "Ada"})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	return res.body["token"].(string)
}

func field(t *testing.T, m map[string]any, key string) map[string]any {
	t.Helper()
	v, ok := m[key].(map[string]any)
	require.True(t, ok, "missing %q in %v", key, m)
	return v
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t)

	res := do(t, h, http.MethodOptions, "/api/users", "", nil)
	assert.Equal(t, http.StatusNoContent, res.status)
	assert.Equal(t, "*", res.header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", res.header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", res.header.Get("Access-Control-Allow-Headers"))

	res = do(t, h, http.MethodOptions, "/api/v1/notes", "", nil)
	assert.Equal(t, "Content-Type, Authorization", res.header.Get("Access-Control-Allow-Headers"))

	res = do(t, h, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, "*", res.header.Get("Access-Control-Allow-Origin"))
}

func TestLegacyRoutes(t *testing.T) {
	h := newTestServer(t)

	res := do(t, h, http.MethodPost, "/api/users", "", map[string]string{"email": "a@b.co", "name": "A"})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["success"])
	user := field(t, res.body, "user")
	assert.Equal(t, "a@b.co", user["email"])
	uid := user["id"].(string)

	res = do(t, h, http.MethodGet, "/api/users", "", nil)
	assert.Len(t, res.body["users"], 1)

	res = do(t, h, http.MethodPost, "/api/notes/"+uid, "", map[string]string{"title": "T", "content": "- [ ] x"})
	require.Equal(t, http.StatusOK, res.status)
	note := field(t, res.body, "note")
	assert.Equal(t, uid, note["user_id"])
	assert.Equal(t, "- [ ] x", note["content"])

	res = do(t, h, http.MethodGet, "/api/notes/"+uid, "", nil)
	assert.Len(t, res.body["notes"], 1)

	res = do(t, h, http.MethodPost, "/api/users", "", map[string]string{"email": "bad", "name": "A"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, false, res.body["success"])
	assert.Equal(t, "Please enter a valid email address.", res.body["error"])
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t)
	res := do(t, h, http.MethodGet, "/api/v1/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	res = do(t, h, http.MethodGet, "/api/v1/notes", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestAccountFlow(t *testing.T) {
	h := newTestServer(t)
	tok := register(t, h, "ada@example.com")

	res := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "ada@example.com", "password": "secret1", "name": "Ada"})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "auth/email-already-in-use", res.body["code"])

	res = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = do(t, h, http.MethodGet, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ada@example.com", field(t, res.body, "user")["email"])

	res = do(t, h, http.MethodPost, "/api/v1/auth/reset", "", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, res.status)
	reset := res.body["reset_token"].(string)
	res = do(t, h, http.MethodPost, "/api/v1/auth/reset/confirm", "", map[string]string{"token": reset, "password": "changed1"})
	require.Equal(t, http.StatusOK, res.status)

	res = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "changed1"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.NotEmpty(t, res.body["token"])
}

func TestDocumentRoutes(t *testing.T) {
	h := newTestServer(t)
	tok := register(t, h, "ada@example.com")

	res := do(t, h, http.MethodPost, "/api/v1/notes", tok, map[string]string{"content": "- [ ] wash car\n- [x] dishes"})
	require.Equal(t, http.StatusCreated, res.status)
	note := field(t, res.body, "note")
	assert.Equal(t, "Untitled Note", note["title"])
	id := note["id"].(string)

	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/toggle", tok, map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["toggled"])
	assert.Equal(t, "- [x] wash car\n- [x] dishes", field(t, res.body, "note")["content"])

	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/toggle", tok, map[string]any{"index": 1, "checked": false})
	assert.Equal(t, "- [x] wash car\n- [ ] dishes", field(t, res.body, "note")["content"])

	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/toggle", tok, map[string]int{"index": 9})
	assert.Equal(t, false, res.body["toggled"])

	res = do(t, h, http.MethodPut, "/api/v1/notes/"+id, tok, map[string]string{"content": "- [ ] wash car"})
	require.Equal(t, http.StatusOK, res.status)

	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/enter", tok, map[string]int{"caret": len("- [ ] wash car")})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.body["handled"])
	assert.Equal(t, float64(len("- [ ] wash car\n- [ ] ")), res.body["caret"])
	assert.Equal(t, "- [ ] wash car\n- [ ] ", field(t, res.body, "note")["content"])

	res = do(t, h, http.MethodPost, "/api/v1/blueprints", tok, map[string]string{"title": "Tpl", "content": "# Plan\n"})
	bp := field(t, res.body, "blueprint")["id"].(string)
	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/insert", tok, map[string]any{"blueprint_id": bp, "caret": 0})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "# Plan\n- [ ] wash car\n- [ ] ", field(t, res.body, "note")["content"])

	res = do(t, h, http.MethodGet, "/api/v1/notes/"+id+"/preview", tok, nil)
	require.Equal(t, http.StatusOK, res.status)
	lines := res.body["lines"].([]any)
	require.Len(t, lines, 3)
	assert.Equal(t, "h1", lines[0].(map[string]any)["type"])

	res = do(t, h, http.MethodGet, "/api/v1/notes/"+id+"/preview?format=html", tok, nil)
	assert.Contains(t, res.body["html"], "<h1")

	res = do(t, h, http.MethodGet, "/api/v1/notes?q=wash", tok, nil)
	assert.Len(t, res.body["notes"], 1)
	res = do(t, h, http.MethodGet, "/api/v1/notes?q=nothing", tok, nil)
	assert.Len(t, res.body["notes"], 0)

	other := register(t, h, "bob@example.com")
	res = do(t, h, http.MethodGet, "/api/v1/notes/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = do(t, h, http.MethodDelete, "/api/v1/notes/"+id, tok, nil)
	assert.Equal(t, http.StatusOK, res.status)
	res = do(t, h, http.MethodGet, "/api/v1/notes/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestInsertAtTrackedCaret(t *testing.T) {
	h := newTestServer(t)
	tok := register(t, h, "ada@example.com")

	res := do(t, h, http.MethodPost, "/api/v1/notes", tok, map[string]string{"content": "ab"})
	id := field(t, res.body, "note")["id"].(string)
	res = do(t, h, http.MethodPost, "/api/v1/blueprints", tok, map[string]string{"content": "X"})
	bp := field(t, res.body, "blueprint")["id"].(string)

	// no caret observed yet: offset 0
	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/insert", tok, map[string]any{"blueprint_id": bp})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Xab", field(t, res.body, "note")["content"])

	// the insert left the caret after the block
	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/insert", tok, map[string]any{"blueprint_id": bp})
	assert.Equal(t, "XXab", field(t, res.body, "note")["content"])

	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/caret", tok, map[string]int{"caret": 4})
	require.Equal(t, http.StatusOK, res.status)
	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/insert", tok, map[string]any{"blueprint_id": bp})
	assert.Equal(t, "XXabX", field(t, res.body, "note")["content"])

	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/caret", tok, map[string]int{"caret": -1})
	assert.Equal(t, http.StatusBadRequest, res.status)
	res = do(t, h, http.MethodPost, "/api/v1/notes/"+id+"/caret", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.status)
	res = do(t, h, http.MethodPost, "/api/v1/notes/missing/caret", tok, map[string]int{"caret": 0})
	assert.Equal(t, http.StatusNotFound, res.status)

	// a caret inside a multi-byte character is rejected
	res = do(t, h, http.MethodPost, "/api/v1/notes", tok, map[string]string{"content": "é"})
	require.Equal(t, http.StatusCreated, res.status)
	accented := field(t, res.body, "note")["id"].(string)
	res = do(t, h, http.MethodPost, "/api/v1/notes/"+accented+"/caret", tok, map[string]int{"caret": 1})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestBadInput(t *testing.T) {
	h := newTestServer(t)
	tok := register(t, h, "ada@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res := do(t, h, http.MethodGet, "/api/v1/notes?limit=x", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = do(t, h, http.MethodGet, "/api/v1/notes?since=soon", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.body["error"], "invalid since value")
	assert.NotContains(t, res.body["error"], "--")

	res = do(t, h, http.MethodPost, "/api/v1/notes/x/toggle", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestThemeRoutes(t *testing.T) {
	h := newTestServer(t)
	tok := register(t, h, "ada@example.com")

	res := do(t, h, http.MethodGet, "/api/v1/settings/theme", tok, nil)
	assert.Equal(t, "light", res.body["theme"])
	res = do(t, h, http.MethodPut, "/api/v1/settings/theme", tok, map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, res.status)
	res = do(t, h, http.MethodGet, "/api/v1/settings/theme", tok, nil)
	assert.Equal(t, true, res.body["dark"])
	res = do(t, h, http.MethodPut, "/api/v1/settings/theme", tok, map[string]string{"theme": "blue"})
	assert.Equal(t, http.StatusBadRequest, res.status)
}
