package repository

import (
	"garbageapi/internal/dto"
	"garbageapi/internal/model"
)

// UploadRepository defines the interface for upload ledger operations.
type UploadRepository interface {
	// Create operations
	Save(upload *model.Upload) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Upload, error)
	GetAll(filter *dto.UploadFilters) ([]model.Upload, error)
	GetTotalCount(filter *dto.UploadFilters) (int, error)
	GetDirectorySize() (int64, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetByUploadID(uploadID int64) ([]model.Detection, error)
	GetLabelsByUploadID(uploadID int64) ([]string, error)
	GetAllLabels() ([]string, error)
}
