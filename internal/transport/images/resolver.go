// Package images resolves the display image of an inventory record against the image bucket.
package images

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// Extensions are probed in this order; the first existing object wins.
var Extensions = []string{"jpg", "png", "jpeg"}

const defaultTimeout = 5 * time.Second

// Result is the outcome of one resolution.
type Result struct {
	CarID     inventory.ID `json:"carId"`
	URL       string       `json:"url"`
	Extension string       `json:"extension"`
	Found     bool         `json:"found"`
}

// Resolver probes the bucket with HEAD requests.
type Resolver struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

// New creates a Resolver. client may be nil, in which case a traced client with a short timeout is used.
func New(base string, client *http.Client, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{base: inventory.ImageBase(base), client: client, logger: logger}
}

// Resolve returns the first extension that answers HEAD with 2xx.
// When none does, the .jpg URL is returned with Found=false.
func (r *Resolver) Resolve(ctx context.Context, id inventory.ID) (Result, error) {
	if r.base == "" {
		return Result{}, domain.NewConfigurationError("IMAGE_BASE_URL")
	}
	if id.IsZero() {
		return Result{}, &domain.ValidationError{Field: "id", Reason: "Missing car id"}
	}

	for _, ext := range Extensions {
		u := inventory.ImageURL(r.base, id, ext)
		if r.exists(ctx, *u) {
			return Result{CarID: id, URL: *u, Extension: ext, Found: true}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	}
	return Result{CarID: id, URL: *inventory.ImageURL(r.base, id, Extensions[0]), Extension: Extensions[0]}, nil
}

func (r *Resolver) exists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("Image probe failed", zap.String("url", url), zap.Error(err))
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
