package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}

// writeJSON writes body with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// parseLimit reads ?limit=N. Missing or non-positive values return 0 so the store
// applies its own default.
func parseLimit(r *http.Request) int {
	lim, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || lim < 0 {
		return 0
	}
	return lim
}
