package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"garbageapi/internal/config"
	"garbageapi/internal/dto"
	"garbageapi/internal/logger"
	"garbageapi/internal/service/ai"
)

// seedUploads classifies one upload per name through the upload handler.
func seedUploads(t *testing.T, env *testEnv, names ...string) {
	t.Helper()
	h := ClassifyUploadHandler(env.manager, env.cfg, logger.NewNop())
	for _, name := range names {
		rec := httptest.NewRecorder()
		h(rec, multipartRequest(t, "file", name, encodeJPEG(t, 8, 8)))
		if rec.Code != http.StatusOK {
			t.Fatalf("Seeding %s failed: %d %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestUploadsHandler_List(t *testing.T) {
	model := ai.NewMockModel()
	model.SetBoxes([]ai.Box{{ClassID: 0, Confidence: 0.9, X2: 1, Y2: 1}})
	env := newTestEnv(t, model)
	seedUploads(t, env, "a.jpg", "b.jpg", "c.jpg")

	rec := httptest.NewRecorder()
	UploadsHandler(env.manager, env.cfg, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/uploads?page=1&limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var data dto.UploadsData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}

	if len(data.Uploads) != 2 {
		t.Errorf("Expected 2 uploads on the page, got %d", len(data.Uploads))
	}
	if data.Length != 3 || data.TotalPages != 2 {
		t.Errorf("Expected 3 uploads over 2 pages, got %d over %d", data.Length, data.TotalPages)
	}
	if data.Size <= 0 {
		t.Errorf("Expected a positive directory size, got %d", data.Size)
	}
	for _, u := range data.Uploads {
		if len(u.Labels) != 1 || u.Labels[0] != "bottle" || u.TotalObjects != 1 || !u.Stored {
			t.Errorf("Unexpected upload entry: %+v", u)
		}
	}
}

func TestUploadsHandler_ListRemovedUploads(t *testing.T) {
	env := newTestEnv(t, ai.NewMockModel(), func(cfg *config.Config) {
		cfg.UploadRetention = config.RetentionDelete
	})
	seedUploads(t, env, "gone.jpg")

	rec := httptest.NewRecorder()
	UploadsHandler(env.manager, env.cfg, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/uploads", nil))

	var data dto.UploadsData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(data.Uploads) != 1 || data.Uploads[0].Stored {
		t.Errorf("Expected one upload marked as not stored, got %+v", data.Uploads)
	}
	if data.Size != 0 {
		t.Errorf("Removed uploads should not count towards the directory size, got %d", data.Size)
	}

	rec = httptest.NewRecorder()
	ViewUploadHandler(env.manager)(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/view?name=gone.jpg", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a removed upload, got %d", rec.Code)
	}
}

func TestUploadsHandler_LabelFilter(t *testing.T) {
	model := ai.NewMockModel()
	env := newTestEnv(t, model)
	seedUploads(t, env, "empty.jpg")
	model.SetBoxes([]ai.Box{{ClassID: 1, Confidence: 0.8, X2: 1, Y2: 1}})
	seedUploads(t, env, "can.jpg")

	rec := httptest.NewRecorder()
	UploadsHandler(env.manager, env.cfg, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/api/uploads?label=can", nil))

	var data dto.UploadsData
	if err := json.NewDecoder(rec.Body).Decode(&data); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(data.Uploads) != 1 || data.Uploads[0].Name != "can.jpg" {
		t.Errorf("Expected only can.jpg, got %+v", data.Uploads)
	}
}

func TestUploadsHandler_Delete(t *testing.T) {
	env := newTestEnv(t, ai.NewMockModel())
	seedUploads(t, env, "bin.png")
	h := UploadsHandler(env.manager, env.cfg, logger.NewNop())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodDelete, "/api/uploads?name=bin.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(env.cfg.UploadDirectory, "bin.png")); !os.IsNotExist(err) {
		t.Error("Upload should be removed from disk")
	}
	if upload, _ := env.uploadRepo.GetByFilename("bin.png"); upload != nil {
		t.Error("Upload should be removed from the ledger")
	}

	for _, name := range []string{"", "..%2Fsecret.png"} {
		rec = httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodDelete, "/api/uploads?name="+name, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Delete %q: expected 400, got %d", name, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPut, "/api/uploads", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestViewUploadHandler(t *testing.T) {
	env := newTestEnv(t, ai.NewMockModel())
	seedUploads(t, env, "view.jpg")
	h := ViewUploadHandler(env.manager)

	tests := []struct {
		query      string
		wantStatus int
	}{
		{query: "name=view.jpg", wantStatus: http.StatusOK},
		{query: "name=missing.jpg", wantStatus: http.StatusNotFound},
		{query: "name=..%2F..%2Fetc%2Fpasswd", wantStatus: http.StatusBadRequest},
		{query: "", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/view?"+tt.query, nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("%q: expected %d, got %d", tt.query, tt.wantStatus, rec.Code)
		}
	}
}

func TestClearUploadsHandler(t *testing.T) {
	env := newTestEnv(t, ai.NewMockModel())
	seedUploads(t, env, "a.jpg", "b.jpg")

	rec := httptest.NewRecorder()
	ClearUploadsHandler(env.manager, logger.NewNop())(rec, httptest.NewRequest(http.MethodPost, "/api/uploads/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	entries, _ := os.ReadDir(env.cfg.UploadDirectory)
	if len(entries) != 0 {
		t.Errorf("Expected empty upload directory, got %d entries", len(entries))
	}
	count, err := env.uploadRepo.GetTotalCount(&dto.UploadFilters{})
	if err != nil || count != 0 {
		t.Errorf("Expected empty ledger, got %d (%v)", count, err)
	}
}

// ========================================
// Logs and Pages Tests
// ========================================

func TestLogFileHandler(t *testing.T) {
	cfg := newTestConfig(t)
	log := logger.NewLogger(cfg)
	log.Info("hello from the test")
	log.Sync()

	rec := httptest.NewRecorder()
	LogFileHandler(log, logger.InfoFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hello from the test") {
		t.Errorf("Expected log line in body, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ClearLogFileHandler(log, logger.WarningFile)(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	LogFileHandler(log, "missing.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestPageHandler(t *testing.T) {
	cfg := newTestConfig(t)
	templates := filepath.Join(cfg.StaticDirectory, "templates")
	if err := os.MkdirAll(templates, 0755); err != nil {
		t.Fatalf("Failed to create templates dir: %v", err)
	}
	for name, body := range map[string]string{"login.html": "login page", "index.html": "dashboard page"} {
		if err := os.WriteFile(filepath.Join(templates, name), []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/", wantStatus: http.StatusOK, wantBody: "login page"},
		{path: "/login", wantStatus: http.StatusOK, wantBody: "login page"},
		{path: "/dashboard", wantStatus: http.StatusOK, wantBody: "dashboard page"},
		{path: "/camera", wantStatus: http.StatusNotFound},
		{path: "/nope", wantStatus: http.StatusNotFound},
	}

	h := PageHandler(cfg)
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.wantStatus, rec.Code)
		}
		if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.wantBody, rec.Body.String())
		}
	}
}
