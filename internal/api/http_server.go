package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"airsupport/internal/config"
	"airsupport/internal/database"
	"airsupport/internal/models"
	"airsupport/internal/retriever"
	"airsupport/internal/service"
	"airsupport/internal/tools"

	"github.com/rs/zerolog"
)

const (
	toolsPath       = "/api/v1/tools"
	toolsPrefix     = "/api/v1/tools/"
	approvalsPrefix = "/api/v1/approvals/"
	exportPrefix    = "/api/v1/export/"
	exportPath      = "/api/v1/export/reservations.xlsx"

	maxBodyBytes = 1 << 20
)

// ToolGateway is the tool surface served over HTTP.
type ToolGateway interface {
	Descriptors() []models.ToolDescriptor
	Invoke(ctx context.Context, name string, raw json.RawMessage) (*tools.Outcome, error)
	Approve(ctx context.Context, id string) (*tools.Outcome, error)
	Deny(ctx context.Context, id string) (*tools.Outcome, error)
	Pending(ctx context.Context, id string) (*models.PendingApproval, error)
}

// Exporter produces the reservation tables for the spreadsheet export.
type Exporter interface {
	Export(ctx context.Context) ([]*models.Table, error)
}

// ReadinessChecker reports whether the working database can serve tools.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HTTPServer exposes the tool registry, the approval queue and the
// reservation export to the orchestrator.
type HTTPServer struct {
	cfg      config.APIConfig
	db       ReadinessChecker
	gateway  ToolGateway
	exporter Exporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, db ReadinessChecker, gateway ToolGateway, exporter Exporter, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, db: db, gateway: gateway, exporter: exporter, logger: logger}
	srv.auth = NewHTTPAuth(&srv.cfg)

	api := http.NewServeMux()
	api.HandleFunc(toolsPath, srv.handleTools)
	api.HandleFunc(toolsPrefix, srv.handleInvoke)
	api.HandleFunc(approvalsPrefix, srv.handleApproval)
	api.HandleFunc(exportPath, srv.handleExport)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/readyz", srv.handleReady)
	mux.Handle("/api/", srv.auth.Wrap(api))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ready(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.gateway.Descriptors()})
}

func (s *HTTPServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, toolsPrefix))
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if len(strings.TrimSpace(string(raw))) > 0 && !json.Valid(raw) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out, err := s.gateway.Invoke(r.Context(), name, raw)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOutcome(w, out)
}

func (s *HTTPServer) handleApproval(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, approvalsPrefix), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		approval, err := s.gateway.Pending(r.Context(), id)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, approval)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		out *tools.Outcome
		err error
	)
	switch parts[1] {
	case "approve":
		out, err = s.gateway.Approve(r.Context(), id)
	case "deny":
		out, err = s.gateway.Deny(r.Context(), id)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOutcome(w, out)
}

func writeOutcome(w http.ResponseWriter, out *tools.Outcome) {
	statusCode := http.StatusOK
	if out.Status == tools.StatusPending {
		statusCode = http.StatusAccepted
	}
	writeJSON(w, statusCode, out)
}

// writeFailure maps domain errors onto status codes. Anything unrecognised
// is logged and reported as an internal error.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tools.ErrUnknownTool), errors.Is(err, service.ErrApprovalNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tools.ErrInvalidArgument),
		errors.Is(err, database.ErrInvalidArgument),
		errors.Is(err, database.ErrUnknownColumn):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, retriever.ErrQuotaExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
