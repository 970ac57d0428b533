package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
	logpkg "github.com/kailas-cloud/cinedex/internal/logger"
	healthuc "github.com/kailas-cloud/cinedex/internal/usecase/health"
	"github.com/kailas-cloud/cinedex/internal/usecase/intent"
	searchuc "github.com/kailas-cloud/cinedex/internal/usecase/search"
)

const maxBodyBytes = 64 << 10

// Error codes returned in JSON error responses.
const (
	codeBadRequest          = "bad_request"
	codeInvalidQuery        = "invalid_query"
	codeUnknownBackend      = "unknown_backend"
	codeProviderUnavailable = "provider_unavailable"
	codeEmbeddingFailed     = "embedding_failed"
	codeBackendUnavailable  = "backend_unavailable"
	codeRecordNotFound      = "record_not_found"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Searcher runs a structured discovery query and serves record lookups.
type Searcher interface {
	Search(ctx context.Context, q *domain.QuerySpec) (*searchuc.Response, error)
	Get(ctx context.Context, backend, id string) (domain.Record, error)
}

// IntentExtractor maps free text to a structured query.
type IntentExtractor interface {
	Extract(ctx context.Context, text string) *domain.QuerySpec
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// BackendLister exposes the configured backend names.
type BackendLister interface {
	Names() []string
}

// Server is the HTTP API surface.
type Server struct {
	search        Searcher
	intent        IntentExtractor
	health        HealthChecker
	backends      BackendLister
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. intent can be nil when no chat
// provider is configured; /v1/ask then degrades to a plain semantic search.
func NewServer(
	search Searcher,
	extractor IntentExtractor,
	health HealthChecker,
	backends BackendLister,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		intent:   extractor,
		health:   health,
		backends: backends,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrUnknownBackend, http.StatusBadRequest, codeUnknownBackend),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusServiceUnavailable, codeProviderUnavailable),
		sentinelHandler(domain.ErrEmbeddingFailed, http.StatusBadGateway, codeEmbeddingFailed),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, codeBackendUnavailable),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, codeRecordNotFound),
	}
	return s
}

// Routes registers all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.Search)
	r.Post("/v1/ask", s.Ask)
	r.Get("/v1/records/{id}", s.GetRecord)
	r.Get("/v1/backends", s.Backends)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search: a structured query.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var q domain.QuerySpec
	if err := decodeBody(w, r, &q); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), &q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type askRequest struct {
	Text    string `json:"text"`
	Backend string `json:"backend,omitempty"`
	TopK    int    `json:"top_k,omitempty"`
}

type askResponse struct {
	Query *domain.QuerySpec `json:"query"`
	*searchuc.Response
}

// Ask handles POST /v1/ask: free-form natural language. The extracted
// structured query is echoed back so clients can see what was searched.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "text is required")
		return
	}

	var q *domain.QuerySpec
	if s.intent != nil {
		q = s.intent.Extract(r.Context(), req.Text)
	} else {
		q = intent.Fallback(req.Text)
	}
	if req.Backend != "" {
		q.Backend = req.Backend
	}
	if req.TopK > 0 {
		q.TopK = req.TopK
	}

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Query: q, Response: resp})
}

// GetRecord handles GET /v1/records/{id}. The backend query parameter
// selects the corpus; empty means the default backend.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	backend := r.URL.Query().Get("backend")

	rec, err := s.search.Get(r.Context(), backend, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Backends handles GET /v1/backends.
func (s *Server) Backends(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"backends": s.backends.Names()})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrUnknownBackend,
		domain.ErrProviderUnavailable,
		domain.ErrEmbeddingFailed,
		domain.ErrBackendUnavailable,
		domain.ErrRecordNotFound,
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

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// Prefer the request-scoped logger so the request_id rides along.
	log := logpkg.FromContext(r.Context(), s.logger)

	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
