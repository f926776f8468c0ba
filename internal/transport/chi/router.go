package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/metrics"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	// ServiceName names the server span. Empty disables tracing.
	ServiceName string
	// ExposeStack adds the panic stack to 500 responses.
	ExposeStack bool
	CORSOrigin  string
	// RateLimit is the /api request budget per second; RateBurst the bucket size.
	RateLimit float64
	RateBurst int
}

// NewRouter mounts the server routes behind the middleware stack.
func NewRouter(s *Server, logger *zap.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(logger, opts.ExposeStack))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(logger))
	r.Use(CORS(opts.CORSOrigin))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(opts.RateLimit, opts.RateBurst))
		r.Post("/rag", s.Ask)
		r.Post("/rag/stream", s.AskStream)
		r.Get("/cars/{id}/image", s.CarImage)
	})

	if opts.ServiceName == "" {
		return r
	}
	return Tracing(opts.ServiceName)(r)
}
