package service

import (
	"garbageapi/internal/repository"
	"garbageapi/internal/service/ai"
	"garbageapi/internal/service/storage"
	"garbageapi/internal/service/websocket"
)

// Manager bundles the services shared by every handler. It is built once at startup
// and never mutated afterwards.
type Manager struct {
	classifier       *ai.Classifier
	uploadStore      *storage.UploadStore
	websocketService *websocket.HubService
	uploadRepo       repository.UploadRepository
	detectionRepo    repository.DetectionRepository
	device           string
}

// NewManager creates a Manager. The repositories may be nil when the ledger is disabled.
func NewManager(classifier *ai.Classifier, uploadStore *storage.UploadStore, websocketService *websocket.HubService, uploadRepo repository.UploadRepository, detectionRepo repository.DetectionRepository, device string) *Manager {
	return &Manager{
		classifier:       classifier,
		uploadStore:      uploadStore,
		websocketService: websocketService,
		uploadRepo:       uploadRepo,
		detectionRepo:    detectionRepo,
		device:           device,
	}
}

func (m *Manager) GetClassifier() *ai.Classifier {
	return m.classifier
}

func (m *Manager) GetUploadStore() *storage.UploadStore {
	return m.uploadStore
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetUploadRepository() repository.UploadRepository {
	return m.uploadRepo
}

func (m *Manager) GetDetectionRepository() repository.DetectionRepository {
	return m.detectionRepo
}

// Device returns the compute device chosen at startup.
func (m *Manager) Device() string {
	return m.device
}

// ModelLoaded reports whether the detection model was constructed at startup.
func (m *Manager) ModelLoaded() bool {
	return m.classifier != nil && m.classifier.Loaded()
}
