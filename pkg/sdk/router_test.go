package autorag

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
	chiTransport "github.com/kailas-cloud/autorag/internal/transport/chi"
	"github.com/kailas-cloud/autorag/internal/transport/images"
	healthuc "github.com/kailas-cloud/autorag/internal/usecase/health"
	"github.com/kailas-cloud/autorag/internal/usecase/rag"
)

// Round trips through the real router keep the client and the server wire format in sync.

type stubAnswerer struct{}

func (stubAnswerer) Answer(_ context.Context, q domain.Query) (*rag.Response, error) {
	id := inventory.NumericID(3)
	return &rag.Response{
		Answer:        "Echo: " + q.Text(),
		ContextChunks: []rag.Match{{ID: "car_3", Score: 0.8, ChunkText: "Tata Nexon", CarID: id}},
		CarIDs:        []inventory.ID{id},
		Cars:          []inventory.Record{{Row: inventory.Row{ID: id, Brand: "Tata", Model: "Nexon"}}},
	}, nil
}

func (stubAnswerer) Stream(_ context.Context, q domain.Query, sink rag.Sink) error {
	defer func() { _ = sink.Close() }()
	if err := sink.Text("history=" + string(rune('0'+len(q.History())))); err != nil {
		return err
	}
	return sink.Cars([]inventory.Record{{Row: inventory.Row{ID: inventory.StringID("x9"), Brand: "Kia"}}})
}

type stubHealth struct{}

func (stubHealth) Check(context.Context) healthuc.Report {
	return healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"vector": healthuc.CheckOK}}
}

type stubImages struct{}

func (stubImages) Resolve(_ context.Context, id inventory.ID) (images.Result, error) {
	return images.Result{CarID: id, URL: "https://img/" + id.String() + ".jpg", Extension: "jpg", Found: true}, nil
}

func newRouterClient(t *testing.T) *Client {
	t.Helper()
	s := chiTransport.NewServer(stubAnswerer{}, stubHealth{}, stubImages{}, zap.NewNop())
	srv := httptest.NewServer(chiTransport.NewRouter(s, zap.NewNop(), chiTransport.RouterOptions{}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRouter_Ask(t *testing.T) {
	c := newRouterClient(t)

	ans, err := c.Ask(context.Background(), "compact SUV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != "Echo: compact SUV" {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Cars) != 1 || ans.Cars[0].ID != "3" || ans.Cars[0].Brand != "Tata" {
		t.Errorf("cars = %+v", ans.Cars)
	}
	if len(ans.ContextChunks) != 1 || ans.ContextChunks[0].CarID != "3" {
		t.Errorf("chunks = %+v", ans.ContextChunks)
	}
}

func TestRouter_AskValidation(t *testing.T) {
	c := newRouterClient(t)

	_, err := c.Ask(context.Background(), "   ")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}

	_, err = c.Ask(context.Background(), "q", Message{Role: "narrator", Content: "x"})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for unknown role, got %v", err)
	}
}

func TestRouter_Stream(t *testing.T) {
	c := newRouterClient(t)

	var events []Event
	history := []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}
	err := c.Stream(context.Background(), "more", history, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Text != "history=2" {
		t.Fatalf("events = %+v", events)
	}
	if events[1].Kind != EventCars || events[1].Cars[0].ID != "x9" {
		t.Errorf("cars = %+v", events[1])
	}
}

func TestRouter_ImageAndHealth(t *testing.T) {
	c := newRouterClient(t)

	img, err := c.CarImage(context.Background(), "17")
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if img.CarID != "17" || img.URL != "https://img/17.jpg" {
		t.Errorf("image = %+v", img)
	}

	rep, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !rep.Healthy() {
		t.Errorf("report = %+v", rep)
	}
}
