package handler

import "net/http"

// HealthResponse reports whether the relay can deliver mail.
// Only variable names are listed, never their values.
type HealthResponse struct {
	Status    string   `json:"status"`
	Transport string   `json:"transport"`
	Missing   []string `json:"missing,omitempty"`
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	transport string
	missing   []string
}

// NewHealthHandler creates a health handler for the given transport and
// list of unset configuration variables.
func NewHealthHandler(transport string, missing []string) *HealthHandler {
	return &HealthHandler{
		transport: transport,
		missing:   append([]string(nil), missing...),
	}
}

// Check always answers 200 so the process stays in rotation; a "degraded"
// status means every submission will fail with a configuration error.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Transport: h.transport}
	if len(h.missing) > 0 {
		resp.Status = "degraded"
		resp.Missing = h.missing
	}
	writeJSON(w, http.StatusOK, resp)
}
