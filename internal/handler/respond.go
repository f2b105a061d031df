package handler

import (
	"encoding/json"
	"net/http"

	"garbageapi/internal/dto"
)

// respondJSON writes v as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError writes {"error": message} with the given status.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, dto.ErrorPayload{Error: message})
}
