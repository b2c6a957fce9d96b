// Package chi exposes the HTTP API: query, ingestion, health, metrics,
// and the read-only debug surface for the security pipeline.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
	healthuc "github.com/kailas-cloud/guardrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/guardrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/guardrag/internal/usecase/query"
)

// QueryService answers questions against the labeled corpus.
type QueryService interface {
	Answer(ctx context.Context, q string, role domain.Role, explicitIdx []int) (queryuc.Result, error)
}

// IngestService adds documents to the corpus.
type IngestService interface {
	Ingest(ctx context.Context, docID, source, text string) (ingestuc.Result, error)
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// CorpusReader exposes the chunk metadata for the debug surface.
type CorpusReader interface {
	Snapshot() []domain.Chunk
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP API handlers.
type Server struct {
	queries       QueryService
	ingestion     IngestService
	health        HealthService
	corpus        CorpusReader
	recorder      *queryuc.Recorder
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	queries QueryService,
	ingestion IngestService,
	health HealthService,
	corpus CorpusReader,
	recorder *queryuc.Recorder,
	logger *zap.Logger,
) *Server {
	s := &Server{
		queries:   queries,
		ingestion: ingestion,
		health:    health,
		corpus:    corpus,
		recorder:  recorder,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeInvalidDocument),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationProviderError, http.StatusBadGateway, codeGenerationProvider),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query", s.HandleQuery)
	r.Post("/documents", s.HandleIngest)
	r.Get("/debug/metadata", s.HandleMetadata)
	r.Get("/debug/trace", s.HandleTrace)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// HandleQuery handles POST /query.
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query text is required")
		return
	}

	role := domain.ParseRole(req.Role)

	result, err := s.queries.Answer(r.Context(), req.Query, role, req.ChunkIndices)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if result.Sources == nil {
		result.Sources = []string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:  result.Answer,
		Sources: result.Sources,
		Status:  result.Status,
	})
}

// HandleIngest handles POST /documents.
func (s *Server) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Document text is required")
		return
	}

	result, err := s.ingestion.Ingest(r.Context(), req.DocID, req.Source, req.Text)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		DocID:       result.DocID,
		ChunksAdded: result.ChunksAdded,
		AdminChunks: result.AdminChunks,
	})
}

// HandleMetadata handles GET /debug/metadata.
func (s *Server) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metadataFromChunks(s.corpus.Snapshot()))
}

// HandleTrace handles GET /debug/trace.
func (s *Server) HandleTrace(w http.ResponseWriter, r *http.Request) {
	tr, ok := s.recorder.Last()
	if !ok {
		writeError(w, http.StatusNotFound, codeTraceNotFound, "no query has been processed yet")
		return
	}
	writeJSON(w, http.StatusOK, traceToResponse(tr))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
		Chunks: report.Chunks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidDocument,
		domain.ErrCorpusCorrupted,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
