package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"garbageapi/internal/config"
	"garbageapi/internal/logger"
	"garbageapi/internal/repository/sqlite"
	"garbageapi/internal/service"
	"garbageapi/internal/service/ai"
	"garbageapi/internal/service/storage"
	"garbageapi/internal/service/websocket"

	"gocv.io/x/gocv"
)

// onePixelPNG is a valid 1x1 PNG.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type testEnv struct {
	cfg        *config.Config
	model      *ai.MockModel
	manager    *service.Manager
	uploadRepo *sqlite.UploadRepository
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		UploadDirectory:   filepath.Join(dir, "uploads"),
		MaxContentLength:  16 * 1024 * 1024,
		AllowedExtensions: []string{"png", "jpg", "jpeg"},
		UploadRetention:   config.RetentionKeep,
		LogDirectory:      filepath.Join(dir, "logs"),
		StaticDirectory:   filepath.Join(dir, "static"),
	}
}

// newTestEnv wires a Manager around a MockModel. A nil model leaves the classifier unloaded.
func newTestEnv(t *testing.T, model *ai.MockModel, opts ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := newTestConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}
	log := logger.NewNop()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	uploadRepo := sqlite.NewUploadRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	var predictor ai.Predictor
	if model != nil {
		pool, err := ai.NewPool(func() (ai.Model, error) { return model, nil }, 1, 8, log)
		if err != nil {
			t.Fatalf("Failed to create pool: %v", err)
		}
		t.Cleanup(func() { pool.Close() })
		predictor = pool
	}
	classifier := ai.NewClassifier(predictor, ai.Labels{"bottle", "can", "paper"}, 0)

	hub := websocket.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	store := storage.NewUploadStore(cfg, log, uploadRepo, detectionRepo)
	manager := service.NewManager(classifier, store, hub, uploadRepo, detectionRepo, ai.DeviceCPU)

	return &testEnv{cfg: cfg, model: model, manager: manager, uploadRepo: uploadRepo}
}

// multipartRequest builds a POST with one part named field carrying filename and content.
func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/classify-upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}
