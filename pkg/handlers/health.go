package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/config"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Provider    string `json:"provider"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	prober llm.Prober
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. prober may be nil, which disables
// the AI connectivity check.
func NewHealthHandler(cfg *config.Config, prober llm.Prober, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, prober: prober, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /health/ai", h.AIHealth)
}

// Health handles GET /health requests.
// Returns a simple "ok" status for liveness checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "agrovision-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Provider:    h.cfg.LLM.Provider,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// AIHealth handles GET /health/ai requests.
// Sends a minimal request to the configured provider and reports the outcome.
func (h *HealthHandler) AIHealth(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "not_configured", "AI health check is not configured"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result := h.prober.Probe(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusServiceUnavailable
		h.logger.Warn("AI provider health check failed",
			zap.String("provider", result.Provider),
			zap.String("error_type", string(result.ErrorType)))
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to encode AI health response", zap.Error(err))
	}
}
