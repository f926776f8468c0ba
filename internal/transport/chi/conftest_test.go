package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
	"github.com/kailas-cloud/autorag/internal/transport/images"
	healthuc "github.com/kailas-cloud/autorag/internal/usecase/health"
	"github.com/kailas-cloud/autorag/internal/usecase/rag"
)

// --- Mocks ---

type mockAnswerer struct {
	answerFn func(ctx context.Context, q domain.Query) (*rag.Response, error)
	streamFn func(ctx context.Context, q domain.Query, sink rag.Sink) error
	calls    int
	lastQ    domain.Query
}

func (m *mockAnswerer) Answer(ctx context.Context, q domain.Query) (*rag.Response, error) {
	m.calls++
	m.lastQ = q
	if m.answerFn != nil {
		return m.answerFn(ctx, q)
	}
	return &rag.Response{Answer: "ok", ContextChunks: []rag.Match{}, CarIDs: []inventory.ID{}, Cars: []inventory.Record{}}, nil
}

func (m *mockAnswerer) Stream(ctx context.Context, q domain.Query, sink rag.Sink) error {
	m.calls++
	m.lastQ = q
	if m.streamFn != nil {
		return m.streamFn(ctx, q, sink)
	}
	defer func() { _ = sink.Close() }()
	return sink.Text("ok")
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type mockImages struct {
	res images.Result
	err error
}

func (m *mockImages) Resolve(_ context.Context, id inventory.ID) (images.Result, error) {
	if m.err != nil {
		return images.Result{}, m.err
	}
	r := m.res
	r.CarID = id
	return r, nil
}

// --- Helpers ---

func newTestRouter(a Answerer, imgs ImageResolver, opts RouterOptions) http.Handler {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentVector: healthuc.CheckOK},
	}}
	return NewRouter(NewServer(a, h, imgs, zap.NewNop()), zap.NewNop(), opts)
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func record(id int64, brand, model string) inventory.Record {
	return inventory.Record{Row: inventory.Row{ID: inventory.NumericID(id), Brand: brand, Model: model}}
}
