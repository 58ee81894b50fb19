package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
	"github.com/Zalgo-Dev/WeaRisk/internal/store"
)

const defaultRiskLimit = 100

// RiskReader is the read surface of the risk store the API serves.
type RiskReader interface {
	ListRisks(ctx context.Context, nameFilter string, limit int) ([]domain.RiskRecord, error)
	Departments(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, riskType, timestamp string) (store.Snapshot, error)
	Count(ctx context.Context) (int, error)
}

// Server exposes the query API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	reader     RiskReader
	logger     *slog.Logger
}

// NewServer creates the HTTP server and wires every route. Route registration
// happens here and nowhere else; a failure to build the handler set would be
// a startup bug, not a runtime condition.
func NewServer(addr string, reader RiskReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reader: reader,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/risks", s.handleRisks)
	mux.HandleFunc("GET /api/departments", s.handleDepartments)
	mux.HandleFunc("GET /api/map-data", s.handleMapData)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the store holds at least one record, so the
// service is not put behind a load balancer with an empty map.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	n, err := s.reader.Count(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "no risk data collected yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRisks(w http.ResponseWriter, r *http.Request) {
	records, err := s.reader.ListRisks(r.Context(),
		r.URL.Query().Get("department"),
		parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.logger.Error("list risks failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if records == nil {
		records = []domain.RiskRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.reader.Departments(r.Context())
	if err != nil {
		s.logger.Error("list departments failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, departments)
}

func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reader.Snapshot(r.Context(),
		r.URL.Query().Get("risk_type"),
		r.URL.Query().Get("timestamp"))
	if err != nil {
		s.logger.Error("snapshot failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// parseLimit tolerates malformed input: a limit the client got wrong falls
// back to the default instead of failing the request.
func parseLimit(raw string) int {
	if raw == "" {
		return defaultRiskLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultRiskLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
