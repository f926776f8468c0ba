package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
	"github.com/kailas-cloud/autorag/internal/logger"
	"github.com/kailas-cloud/autorag/internal/transport/images"
	healthuc "github.com/kailas-cloud/autorag/internal/usecase/health"
	"github.com/kailas-cloud/autorag/internal/usecase/rag"
)

// maxBodyBytes bounds a RAG request body, conversation history included.
const maxBodyBytes = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Answerer runs the RAG pipeline in both delivery modes.
type Answerer interface {
	Answer(ctx context.Context, q domain.Query) (*rag.Response, error)
	Stream(ctx context.Context, q domain.Query, sink rag.Sink) error
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// ImageResolver finds the display image of a car.
type ImageResolver interface {
	Resolve(ctx context.Context, id inventory.ID) (images.Result, error)
}

// Server serves the RAG API.
type Server struct {
	rag           Answerer
	health        HealthChecker
	images        ImageResolver
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. images may be nil, in which case the image route reports
// IMAGE_BASE_URL as missing.
func NewServer(rag Answerer, health HealthChecker, images ImageResolver, logger *zap.Logger) *Server {
	s := &Server{
		rag:    rag,
		health: health,
		images: images,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		configurationHandler,
		sentinelHandler(domain.ErrCompletionFailed, http.StatusBadGateway),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound),
	}
	return s
}

// ragRequest is the body accepted by both RAG endpoints.
type ragRequest struct {
	Query    string           `json:"query"`
	Messages []domain.Message `json:"messages"`
}

// errorResponse is the body of every JSON error.
type errorResponse struct {
	Error string `json:"error"`
	Stack string `json:"stack,omitempty"`
}

// Ask handles POST /api/rag.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.rag.Answer(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AskStream handles POST /api/rag/stream.
func (s *Server) AskStream(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuery(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sink := newSSESink(r.Context(), w)
	if err := s.rag.Stream(r.Context(), q, sink); err != nil {
		// Stream only returns before the first frame, so the response is still unwritten.
		s.handleDomainError(w, r, err)
	}
}

// CarImage handles GET /api/cars/{id}/image.
func (s *Server) CarImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		s.handleDomainError(w, r, domain.NewConfigurationError("IMAGE_BASE_URL"))
		return
	}

	res, err := s.images.Resolve(r.Context(), inventory.StringID(chi.URLParam(r, "id")))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
		s.logger.Warn("Health check not ok", zap.String("status", string(report.Status)), zap.Any("checks", report.Checks))
	}

	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeQuery reads the request body. A body that is not JSON is treated as empty,
// so it fails the same way as a request without a query.
func decodeQuery(w http.ResponseWriter, r *http.Request) (domain.Query, error) {
	var req ragRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.FromContext(r.Context()).Debug("Undecodable request body", zap.Error(err))
		req = ragRequest{}
	}
	return domain.NewQuery(req.Query, req.Messages)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// validationHandler reports the rejected field's reason as-is.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeError(w, http.StatusBadRequest, ve.Reason)
	return true
}

// configurationHandler names the missing key, e.g. "OPENAI_API_KEY missing".
func configurationHandler(w http.ResponseWriter, err error) bool {
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) {
		return false
	}
	writeError(w, http.StatusInternalServerError, ce.Error())
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
