package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

func TestStream_CheapSedanScenario(t *testing.T) {
	store := &mockStore{records: []inventory.Record{record(7, "Honda", "City"), record(12, "Maruti", "Ciaz")}}
	completer := &mockCompleter{fragments: []string{"Try ", "the ", "City."}}
	svc := newTestService(&mockRetriever{hits: sedanHits()}, store, completer)
	sink := &recordingSink{}

	if err := svc.Stream(context.Background(), mustQuery(t, "find me a cheap sedan"), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"text", "text", "text", "cars", "done"}
	if !reflect.DeepEqual(sink.kinds(), want) {
		t.Fatalf("frames = %v, want %v", sink.kinds(), want)
	}
	if sink.frames[0].text != "Try " || sink.frames[2].text != "City." {
		t.Errorf("fragments out of order: %+v", sink.frames)
	}
	if len(sink.frames[3].cars) != 2 {
		t.Errorf("expected 2 cars, got %d", len(sink.frames[3].cars))
	}
	if sink.closes != 1 {
		t.Errorf("expected exactly one close, got %d", sink.closes)
	}
	if completer.closed != 1 {
		t.Errorf("expected upstream stream to be closed, got %d", completer.closed)
	}
	if len(completer.calls) != 0 {
		t.Errorf("streaming mode must not issue a decision completion, got %d", len(completer.calls))
	}
	last := completer.streamCalls[0].msgs[len(completer.streamCalls[0].msgs)-1]
	if want := "Year: N/A"; !strings.Contains(last.Content, want) {
		t.Errorf("streaming context must render hydrated records, got %q", last.Content)
	}
}

func TestStream_NoIntentStreamsDirectAnswer(t *testing.T) {
	retriever := &mockRetriever{}
	completer := &mockCompleter{fragments: []string{"Hello!"}}
	svc := newTestService(retriever, &mockStore{}, completer)
	sink := &recordingSink{}

	if err := svc.Stream(context.Background(), mustQuery(t, "hello"), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.calls != 0 {
		t.Error("retrieval must be skipped")
	}
	if !reflect.DeepEqual(sink.kinds(), []string{"text", "done"}) {
		t.Errorf("unexpected frames %v", sink.kinds())
	}
	if completer.streamCalls[0].instruction != directInstruction {
		t.Errorf("expected direct instruction")
	}
}

func TestStream_NoContextEmitsApology(t *testing.T) {
	completer := &mockCompleter{}
	svc := newTestService(&mockRetriever{err: errors.New("down")}, &mockStore{}, completer)
	sink := &recordingSink{}

	if err := svc.Stream(context.Background(), mustQuery(t, "find a suv"), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(sink.kinds(), []string{"text", "done"}) {
		t.Fatalf("unexpected frames %v", sink.kinds())
	}
	if sink.frames[0].text != noContextAnswer {
		t.Errorf("unexpected text %q", sink.frames[0].text)
	}
	if len(completer.streamCalls) != 0 {
		t.Error("completion must be skipped without context")
	}
}

func TestStream_NoRecordsNoCarsFrame(t *testing.T) {
	completer := &mockCompleter{fragments: []string{"ok"}}
	svc := newTestService(&mockRetriever{hits: sedanHits()}, &mockStore{}, completer)
	sink := &recordingSink{}

	_ = svc.Stream(context.Background(), mustQuery(t, "find a sedan"), sink)
	if !reflect.DeepEqual(sink.kinds(), []string{"text", "done"}) {
		t.Errorf("unexpected frames %v", sink.kinds())
	}
}

func TestStream_OpenFailureEmitsErrorFrame(t *testing.T) {
	completer := &mockCompleter{streamErr: errors.New("401")}
	svc := newTestService(&mockRetriever{}, &mockStore{}, completer)
	sink := &recordingSink{}

	if err := svc.Stream(context.Background(), mustQuery(t, "hello"), sink); err != nil {
		t.Fatalf("in-stream failures are reported as frames, got %v", err)
	}
	if !reflect.DeepEqual(sink.kinds(), []string{"error", "done"}) {
		t.Fatalf("unexpected frames %v", sink.kinds())
	}
	if sink.frames[0].text != "language model request failed" {
		t.Errorf("unexpected error text %q", sink.frames[0].text)
	}
}

func TestStream_MidStreamFailure(t *testing.T) {
	completer := &mockCompleter{fragments: []string{"partial"}, recvErr: errors.New("reset")}
	svc := newTestService(&mockRetriever{hits: sedanHits()}, &mockStore{records: []inventory.Record{record(7, "Honda", "City")}}, completer)
	sink := &recordingSink{}

	_ = svc.Stream(context.Background(), mustQuery(t, "find a sedan"), sink)
	if !reflect.DeepEqual(sink.kinds(), []string{"text", "error", "done"}) {
		t.Fatalf("unexpected frames %v", sink.kinds())
	}
	if sink.closes != 1 || completer.closed != 1 {
		t.Errorf("expected single close on both ends, got sink=%d upstream=%d", sink.closes, completer.closed)
	}
}

func TestStream_EmptyGenerationFallsBack(t *testing.T) {
	completer := &mockCompleter{fragments: []string{"", ""}}
	svc := newTestService(&mockRetriever{}, &mockStore{}, completer)
	sink := &recordingSink{}

	_ = svc.Stream(context.Background(), mustQuery(t, "hello"), sink)
	if len(sink.frames) != 2 || sink.frames[0].text != emptyModelAnswer {
		t.Errorf("unexpected frames %+v", sink.frames)
	}
}

func TestStream_ValidationDoesNotTouchSink(t *testing.T) {
	svc := newTestService(&mockRetriever{}, &mockStore{}, &mockCompleter{})
	sink := &recordingSink{}

	err := svc.Stream(context.Background(), domain.Query{}, sink)
	if !errors.Is(err, domain.ErrMissingQuery) {
		t.Fatalf("expected ErrMissingQuery, got %v", err)
	}
	if len(sink.frames) != 0 || sink.closes != 0 {
		t.Errorf("sink must stay untouched, got %v", sink.kinds())
	}
}

func TestStream_PreflightDoesNotTouchSink(t *testing.T) {
	opts := DefaultOptions()
	opts.Preflight = func() error { return domain.NewConfigurationError("VECTOR_ENDPOINT") }
	svc := New(&mockRetriever{}, &mockStore{}, &mockCompleter{}, opts)
	sink := &recordingSink{}

	err := svc.Stream(context.Background(), mustQuery(t, "find"), sink)
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if sink.closes != 0 {
		t.Error("sink must not be closed")
	}
}

func TestStream_ClientGoneStopsUpstream(t *testing.T) {
	completer := &mockCompleter{fragments: []string{"a", "b", "c"}}
	svc := newTestService(&mockRetriever{}, &mockStore{}, completer)
	sink := &recordingSink{textErr: errors.New("broken pipe")}

	_ = svc.Stream(context.Background(), mustQuery(t, "hello"), sink)
	if completer.closed != 1 {
		t.Errorf("upstream stream must be closed, got %d", completer.closed)
	}
	if sink.closes != 1 {
		t.Errorf("expected one close, got %d", sink.closes)
	}
	if got := sink.kinds(); !reflect.DeepEqual(got, []string{"error", "done"}) {
		t.Errorf("unexpected frames %v", got)
	}
	if sink.frames[0].text != "internal error" {
		t.Errorf("unexpected error text %q", sink.frames[0].text)
	}
}

