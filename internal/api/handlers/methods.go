package handlers

import (
	"net/http"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
)

// MethodsHandler serves the method listing and the health check, both backed by the
// registry.
type MethodsHandler struct {
	registry *defacer.Registry
}

func NewMethodsHandler(registry *defacer.Registry) *MethodsHandler {
	return &MethodsHandler{registry: registry}
}

type methodResponse struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type methodsResponse struct {
	Methods []methodResponse `json:"methods"`
	Total   int              `json:"total"`
}

type healthResponse struct {
	Status           string   `json:"status"`
	Message          string   `json:"message"`
	SupportedMethods []string `json:"supported_methods"`
}

// ListMethods returns the methods whose probes pass right now.
func (h *MethodsHandler) ListMethods(w http.ResponseWriter, _ *http.Request) {
	available := h.registry.Available()
	out := make([]methodResponse, 0, len(available))
	for _, d := range available {
		out = append(out, methodResponse{Value: d.ID, Label: d.Label, Description: d.Description})
	}
	writeJSON(w, http.StatusOK, methodsResponse{Methods: out, Total: len(out)})
}

// Health reports liveness and every registered method, installed or not.
func (h *MethodsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		Message:          "API is running",
		SupportedMethods: h.registry.IDs(),
	})
}
