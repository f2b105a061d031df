package handler

import (
	"errors"
	"net/http"

	"garbageapi/internal/config"
	"garbageapi/internal/logger"
	"garbageapi/internal/service"
	"garbageapi/internal/service/imageio"
	"garbageapi/internal/service/storage"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// ClassifyUploadHandler handles POST /api/classify-upload: it validates the "file" part,
// stores it in the upload directory, decodes it from disk and returns the detections.
func ClassifyUploadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			respondError(w, http.StatusBadRequest, "No file part")
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			// a part sent with an empty filename is parsed as a plain value
			if _, ok := r.MultipartForm.Value["file"]; ok {
				respondError(w, http.StatusBadRequest, "No selected file")
				return
			}
			respondError(w, http.StatusBadRequest, "No file part")
			return
		}

		header := files[0]
		if header.Filename == "" {
			respondError(w, http.StatusBadRequest, "No selected file")
			return
		}
		if !cfg.IsAllowedExtension(storage.Extension(header.Filename)) {
			respondError(w, http.StatusBadRequest, "File type not allowed")
			return
		}

		src, err := header.Open()
		if err != nil {
			logger.Error("Error opening uploaded file %s: %v", header.Filename, err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer src.Close()

		store := manager.GetUploadStore()
		saved, err := store.Save(header.Filename, src)
		if err != nil {
			logger.Error("Error saving upload %s: %v", header.Filename, err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		img, err := imageio.ReadFile(saved.Path)
		store.Release(saved)
		if err != nil {
			logger.Warning("Could not read uploaded image %s: %v", saved.Name, err)
			respondError(w, http.StatusBadRequest, "Could not read image")
			return
		}
		defer img.Close()

		result, err := manager.GetClassifier().Classify(r.Context(), img)
		if err != nil {
			logger.Error("Classification of %s failed: %v", saved.Name, err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		store.Record(saved, result)
		logger.Info("Classified %s: %d object(s)", saved.Name, result.TotalObjects)
		respondJSON(w, http.StatusOK, result)
	}
}
