package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"garbageapi/internal/config"
	"garbageapi/internal/dto"
	"garbageapi/internal/logger"
	"garbageapi/internal/service"
	"garbageapi/internal/service/storage"
)

const defaultPageSize = 24

// UploadsHandler serves GET (paginated listing) and DELETE (single upload) on /api/uploads.
func UploadsHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	list := listUploads(manager, cfg, logger)
	remove := deleteUpload(manager, logger)

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list(w, r)
		case http.MethodDelete:
			remove(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func listUploads(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		data := dto.UploadsData{
			Uploads:     []dto.UploadInfo{},
			UploadDir:   cfg.UploadDirectory,
			MaxSize:     cfg.MaxUploadDirSize,
			CurrentPage: page,
			Limit:       limit,
		}

		uploadRepo := manager.GetUploadRepository()
		if uploadRepo == nil {
			respondJSON(w, http.StatusOK, data)
			return
		}

		filter := &dto.UploadFilters{
			Label:  q.Get("label"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		uploads, err := uploadRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying uploads from database: %v", err)
			respondError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalSize, err := uploadRepo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting upload directory size: %v", err)
		}

		totalCount, err := uploadRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting uploads: %v", err)
			totalCount = len(uploads)
		}

		detectionRepo := manager.GetDetectionRepository()
		for _, u := range uploads {
			labels := []string{}
			if detectionRepo != nil {
				if labels, err = detectionRepo.GetLabelsByUploadID(u.ID); err != nil {
					logger.Error("Error getting labels for upload %d: %v", u.ID, err)
					labels = []string{}
				}
			}

			data.Uploads = append(data.Uploads, dto.UploadInfo{
				Name:         u.Filename,
				Size:         u.FileSize,
				TotalObjects: u.TotalObjects,
				Labels:       labels,
				Stored:       u.FilePath != "",
				UploadedAt:   u.Timestamp,
			})
		}

		data.Size = totalSize
		data.Length = totalCount
		data.TotalPages = (totalCount + limit - 1) / limit
		respondJSON(w, http.StatusOK, data)
	}
}

func deleteUpload(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if err := manager.GetUploadStore().Delete(name); err != nil {
			if errors.Is(err, storage.ErrEmptyName) || errors.Is(err, storage.ErrInvalidName) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("Failed to delete upload %s: %v", name, err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.Info("Deleted upload: %s", name)
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
	}
}

// ViewUploadHandler serves a single stored upload named by the "name" query parameter.
func ViewUploadHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		path, err := manager.GetUploadStore().Path(r.URL.Query().Get("name"))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "Upload not found")
			return
		}
		http.ServeFile(w, r, path)
	}
}

// ClearUploadsHandler deletes every stored upload and clears the ledger.
func ClearUploadsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		removed, err := manager.GetUploadStore().Clear()
		if err != nil {
			logger.Error("Error clearing uploads: %v", err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.Info("Cleared %d upload(s) from %s", removed, manager.GetUploadStore().Dir())
		w.WriteHeader(http.StatusNoContent)
	}
}

// atoiDefault converts s to int or returns def when conversion fails or the value is <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
