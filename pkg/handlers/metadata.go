package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/audit"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/services"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/sql"
)

// maxRequestBytes bounds request bodies; a statement is never this large.
const maxRequestBytes = 1 << 20

// MetadataRequest for POST /api/sql/metadata body.
type MetadataRequest struct {
	SQL       string         `json:"sql"`
	IsBatch   bool           `json:"is_batch"`
	Pattern   string         `json:"pattern,omitempty"`
	Procedure string         `json:"procedure,omitempty"`
	Samples   map[string]any `json:"samples,omitempty"`
}

// ProceduresRequest for POST /api/sql/procedures body.
type ProceduresRequest struct {
	Pattern string `json:"pattern"`
}

// RewriteRequest for POST /api/sql/rewrite body.
type RewriteRequest struct {
	SQL              string `json:"sql"`
	IsBatch          bool   `json:"is_batch"`
	PlaceholderStyle string `json:"placeholder_style,omitempty"`
}

// MetadataHandler handles statement metadata requests.
type MetadataHandler struct {
	metadataService services.MetadataService
	defaultStyle    sql.PlaceholderStyle
	auditor         *audit.SecurityAuditor
	logger          *zap.Logger
}

// NewMetadataHandler creates a new metadata handler. defaultStyle is used by
// rewrite requests that do not name a style.
func NewMetadataHandler(metadataService services.MetadataService, defaultStyle sql.PlaceholderStyle, logger *zap.Logger) *MetadataHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataHandler{
		metadataService: metadataService,
		defaultStyle:    defaultStyle,
		auditor:         audit.NewSecurityAuditor(logger),
		logger:          logger,
	}
}

// RegisterRoutes registers the metadata handler's routes on the given mux.
func (h *MetadataHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sql/metadata", h.Metadata)
	mux.HandleFunc("POST /api/sql/procedures", h.Procedures)
	mux.HandleFunc("POST /api/sql/rewrite", h.Rewrite)
}

// Metadata handles POST /api/sql/metadata
func (h *MetadataHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if !h.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.SQL) == "" && req.Procedure == "" && req.Pattern == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_sql", "SQL statement is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	meta, err := h.metadataService.Describe(r.Context(), services.DescribeRequest{
		SQL:       req.SQL,
		IsBatch:   req.IsBatch,
		Pattern:   req.Pattern,
		Procedure: req.Procedure,
		Samples:   req.Samples,
	})
	if err != nil {
		h.auditFailure(r, req.SQL, err)
		writeServiceError(w, err, h.logger)
		return
	}

	response := ApiResponse{Success: true, Data: meta}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Procedures handles POST /api/sql/procedures
func (h *MetadataHandler) Procedures(w http.ResponseWriter, r *http.Request) {
	var req ProceduresRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	meta, err := h.metadataService.DiscoverProcedures(r.Context(), req.Pattern)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	response := ApiResponse{Success: true, Data: meta}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rewrite handles POST /api/sql/rewrite
func (h *MetadataHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if !h.decode(w, r, &req) {
		return
	}

	style := h.defaultStyle
	if req.PlaceholderStyle != "" {
		parsed, err := sql.ParsePlaceholderStyle(req.PlaceholderStyle)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_placeholder_style", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		style = parsed
	}

	meta, err := h.metadataService.Rewrite(services.DescribeRequest{SQL: req.SQL, IsBatch: req.IsBatch}, style)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	response := ApiResponse{Success: true, Data: meta}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *MetadataHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// auditFailure records client-caused failures as security events. Flagged
// sample values are critical; rejected statements are warnings.
func (h *MetadataHandler) auditFailure(r *http.Request, statement string, err error) {
	var injected *sql.InjectionCheckResult
	if errors.As(err, &injected) {
		h.auditor.LogInjectionAttempt(r.Context(), audit.SQLInjectionDetails{
			ParamName:   injected.ParamName,
			ParamValue:  audit.ValueString(injected.Value),
			Fingerprint: injected.Fingerprint,
			Statement:   statement,
		}, r.RemoteAddr)
		return
	}

	status, code := statusForError(err)
	if status == http.StatusInternalServerError || status == http.StatusNotFound {
		return
	}
	h.auditor.LogStatementRejected(r.Context(), audit.StatementRejectedDetails{
		Reason:    code,
		Message:   err.Error(),
		Statement: statement,
	}, r.RemoteAddr)
}
