package handler

import (
	"net/http"
	"time"

	"garbageapi/internal/dto"
	"garbageapi/internal/service"
)

// HealthHandler reports liveness, model availability and the compute device.
func HealthHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		respondJSON(w, http.StatusOK, dto.HealthStatus{
			Status:      "healthy",
			ModelLoaded: manager.ModelLoaded(),
			Device:      manager.Device(),
			Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		})
	}
}
