package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jvidalg/albasort/internal/config"
	"github.com/jvidalg/albasort/internal/extract"
	"github.com/jvidalg/albasort/internal/pipeline"
	"github.com/jvidalg/albasort/internal/rules"
)

func newTestServer(t *testing.T) (*Server, *rules.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()

	rs := rules.NewStore(filepath.Join(root, "rules.json"), log)
	ext := extract.NewExtractor(extract.Config{}, log)
	worker := pipeline.NewWorker(rs, ext, log, filepath.Join(root, "out"), root, nil)
	orch := pipeline.NewOrchestrator(pipeline.NewJobStore(time.Hour), worker, log, 4, nil)

	cfg := config.Config{
		APIKey:         "test-key",
		InputDir:       filepath.Join(root, "input"),
		MaxUploadBytes: 1 << 20,
	}
	return NewServer(orch, rs, ext, log, cfg), rs
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/rules", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/rules", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", w.Code)
	}
}

func TestRuleLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, "PUT", "/api/rules/ACME", `{"signatures":["acme corp"],"extraction_pattern":"Order:\\s*(\\S+)"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body)
	}

	w = do(t, s, "GET", "/api/rules/ACME", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var got rules.Provider
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Key != "ACME" || len(got.Signatures) != 1 {
		t.Errorf("got %+v", got)
	}

	w = do(t, s, "GET", "/api/rules", "")
	if !strings.Contains(w.Body.String(), `"providers"`) {
		t.Errorf("list body: %s", w.Body)
	}

	w = do(t, s, "DELETE", "/api/rules/ACME", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: %d", w.Code)
	}
	if w = do(t, s, "GET", "/api/rules/ACME", ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", w.Code)
	}
}

func TestPutRuleWarnsOnBadPattern(t *testing.T) {
	s, rs := newTestServer(t)

	w := do(t, s, "PUT", "/api/rules/CBM", `{"signatures":["cbm"],"extraction_pattern":"(unclosed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "warning") {
		t.Errorf("expected a warning, got %s", w.Body)
	}
	// Stored regardless: the pattern degrades, it does not block.
	if _, ok := rs.Load().Lookup("CBM"); !ok {
		t.Error("rule was not stored")
	}
}

func TestCreateBatchValidation(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, "POST", "/api/batches", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path: %d", w.Code)
	}

	w = do(t, s, "POST", "/api/batches", `{"path":"/nope/batch.exe"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsupported type: %d", w.Code)
	}

	w = do(t, s, "POST", "/api/batches", `{"path":"/nope/batch.pdf"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("absent file: %d", w.Code)
	}
}

func TestBatchStatusNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(t, s, "GET", "/api/batches/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("got %d", w.Code)
	}
}

func TestOCRStats(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, "GET", "/api/stats/ocr", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "queue_depth") {
		t.Errorf("body: %s", w.Body)
	}
}
