package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/config"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Datasource  string                      `json:"datasource,omitempty"`
	Error       string                      `json:"error,omitempty"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	connMgr *datasource.ConnectionManager
	tester  datasource.ConnectionTester
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. connMgr and tester are
// optional; without them /health only reports that the process is up.
func NewHealthHandler(cfg *config.Config, connMgr *datasource.ConnectionManager, tester datasource.ConnectionTester, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{cfg: cfg, connMgr: connMgr, tester: tester, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Reports 503 when the configured datasource does not answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.connMgr != nil {
		stats := h.connMgr.GetStats()
		response.Connections = &stats
	}

	if h.tester != nil {
		if err := h.tester.TestConnection(r.Context()); err != nil {
			h.logger.Warn("Datasource health check failed", zap.String("error", logging.SanitizeError(err)))
			response.Status = "degraded"
			response.Datasource = "unreachable"
			response.Error = logging.SanitizeError(err)
			status = http.StatusServiceUnavailable
		} else {
			response.Datasource = "ok"
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
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
		Service:     "ekaya-sql-connector",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
