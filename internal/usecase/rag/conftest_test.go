package rag

import (
	"context"
	"io"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// --- Mocks ---

type mockRetriever struct {
	hits      []domain.RetrievalHit
	err       error
	calls     int
	lastTopK  int
	lastNS    string
	lastQuery string
}

func (m *mockRetriever) Search(_ context.Context, query string, topK int, namespace string) ([]domain.RetrievalHit, error) {
	m.calls++
	m.lastQuery = query
	m.lastTopK = topK
	m.lastNS = namespace
	return m.hits, m.err
}

type mockStore struct {
	records []inventory.Record
	err     error
	calls   int
	lastIDs []inventory.ID
}

func (m *mockStore) FetchByIDs(_ context.Context, ids []inventory.ID) ([]inventory.Record, error) {
	m.calls++
	m.lastIDs = ids
	return m.records, m.err
}

type completeCall struct {
	instruction string
	msgs        []domain.Message
}

type mockCompleter struct {
	// replies are returned by successive Complete calls; the last one repeats.
	replies   []string
	errs      []error
	fragments []string
	streamErr error
	recvErr   error

	calls       []completeCall
	streamCalls []completeCall
	closed      int
}

func (m *mockCompleter) Complete(_ context.Context, instruction string, msgs []domain.Message) (Completion, error) {
	i := len(m.calls)
	m.calls = append(m.calls, completeCall{instruction: instruction, msgs: msgs})
	if i < len(m.errs) && m.errs[i] != nil {
		return Completion{}, m.errs[i]
	}
	if len(m.replies) == 0 {
		return Completion{}, nil
	}
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return Completion{Text: m.replies[i], Model: "test-model"}, nil
}

func (m *mockCompleter) Stream(_ context.Context, instruction string, msgs []domain.Message) (TextStream, error) {
	m.streamCalls = append(m.streamCalls, completeCall{instruction: instruction, msgs: msgs})
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return &sliceStream{fragments: m.fragments, err: m.recvErr, onClose: func() { m.closed++ }}, nil
}

type sliceStream struct {
	fragments []string
	err       error
	pos       int
	onClose   func()
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error {
	s.onClose()
	return nil
}

type frame struct {
	kind string // text / cars / error / done
	text string
	cars []inventory.Record
}

type recordingSink struct {
	frames   []frame
	closes   int
	textErr  error
	writeErr error
}

func (s *recordingSink) Text(fragment string) error {
	if s.textErr != nil {
		return s.textErr
	}
	s.frames = append(s.frames, frame{kind: "text", text: fragment})
	return nil
}

func (s *recordingSink) Cars(records []inventory.Record) error {
	s.frames = append(s.frames, frame{kind: "cars", cars: records})
	return s.writeErr
}

func (s *recordingSink) Fail(message string) error {
	s.frames = append(s.frames, frame{kind: "error", text: message})
	return nil
}

func (s *recordingSink) Close() error {
	s.closes++
	s.frames = append(s.frames, frame{kind: "done"})
	return nil
}

func (s *recordingSink) kinds() []string {
	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.kind
	}
	return out
}

// --- Fixtures ---

func mustQuery(t interface{ Fatalf(string, ...any) }, text string, history ...domain.Message) domain.Query {
	q, err := domain.NewQuery(text, history)
	if err != nil {
		t.Fatalf("NewQuery(%q): %v", text, err)
	}
	return q
}

func sedanHits() []domain.RetrievalHit {
	return []domain.RetrievalHit{
		{ID: "car_7", Score: 0.91, Fields: map[string]any{"chunk_text": "Honda City, petrol", "Brand": "Honda", "Model": "City", "Price": 6.5}},
		{ID: "rec-2", Score: 0.87, Fields: map[string]any{"chunk_text": "Maruti Ciaz", "Brand": "Maruti", "Model": "Ciaz", "ID": float64(12)}},
		{ID: "rec-3", Score: 0.80, Fields: map[string]any{"chunk_text": "Honda City again", "ID": float64(7)}},
	}
}

func record(id int64, brand, model string) inventory.Record {
	return inventory.NewRecord(inventory.Row{ID: inventory.NumericID(id), Brand: brand, Model: model}, "https://img.example.com")
}
