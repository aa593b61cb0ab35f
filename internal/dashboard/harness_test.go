package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/testyard/internal/alias"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/dbtest"
	"github.com/zulandar/testyard/internal/kv"
	"github.com/zulandar/testyard/internal/status"
	"github.com/zulandar/testyard/internal/worker"
)

const repoCSV = "epic,feature_filename,feature_name,feature_description,feature_tags,scenario_id,scenario_name,scenario_tags,scenario_description,scenario_is_outline,scenario_steps\n" +
	"E1,,,,,,,,,,\n" +
	"E1,f1.feature,F1,,,,,,,,\n" +
	"E1,f1.feature,F1,,,S1,one,,,,Given one\n" +
	"E1,f1.feature,F1,,,S2,two,,,,Given two\n" +
	"E1,f1.feature,F1,,,S3,three,,,,Given three\n"

const resultsCSV = "epic_id,feature_name,scenario_id,status\n" +
	"E1,F1,S1,passed\n" +
	"E1,F1,S2,skipped\n" +
	"E1,F1,S3,failed\n"

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t      *testing.T
	srv    *Server
	router *gin.Engine
	admin  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := dbtest.Open(t)

	store, err := kv.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	keys, err := auth.NewKeyMaterial()
	require.NoError(t, err)
	_, err = auth.SeedAdmin(db, "admin", "secret")
	require.NoError(t, err)

	pool := worker.New(1, 8, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})

	srv := &Server{
		DB:         db,
		Projects:   alias.NewRegistry(),
		Auth:       auth.NewService(db, store, keys, time.Hour),
		Board:      status.NewBoard(store, time.Hour),
		Pool:       pool,
		Logger:     logger,
		StatusPoll: 10 * time.Millisecond,
	}
	router, err := srv.Router()
	require.NoError(t, err)

	h := &harness{t: t, srv: srv, router: router}
	h.admin = h.login("admin", "secret")
	return h
}

func (h *harness) login(username, password string) string {
	h.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(h.t, "bearer", body.TokenType)
	return body.AccessToken
}

// do sends body (JSON-encoded unless nil) with token.
func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// upload posts a multipart form with a "file" part.
func (h *harness) upload(path, token string, fields map[string]string, file string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(h.t, mw.WriteField(k, v))
	}
	if file != "" {
		fw, err := mw.CreateFormFile("file", "upload.csv")
		require.NoError(h.t, err)
		_, err = io.WriteString(fw, file)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// waitDone polls the status board until the import behind key finishes.
func (h *harness) waitDone(key string) status.Entry {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := h.do(http.MethodGet, "/api/v1/status?status_key="+url.QueryEscape(key), h.admin, nil)
		require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
		var e status.Entry
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &e))
		if e.Status != status.StatusImporting {
			return e
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.t.Fatalf("import %s did not finish", key)
	return status.Entry{}
}

func (h *harness) mustOK(w *httptest.ResponseRecorder) {
	h.t.Helper()
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
}

// seedProject registers name with one version per versions entry.
func (h *harness) seedProject(name string, versions ...string) {
	h.t.Helper()
	h.mustOK(h.do(http.MethodPost, "/api/v1/settings/projects", h.admin, map[string]string{"name": name}))
	for _, v := range versions {
		h.mustOK(h.do(http.MethodPost, "/api/v1/projects/"+name+"/versions", h.admin, map[string]string{"version": v}))
	}
}

// importRepository uploads repoCSV into project and waits for it.
func (h *harness) importRepository(project string) {
	h.t.Helper()
	w := h.upload("/api/v1/projects/"+project+"/repository", h.admin, nil, repoCSV)
	require.Equal(h.t, http.StatusNoContent, w.Code, w.Body.String())
	e := h.waitDone(w.Header().Get(statusKeyHeader))
	require.Empty(h.t, e.Error)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
