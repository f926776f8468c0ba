package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// doneSentinel terminates every event stream.
const doneSentinel = "[DONE]"

var errSinkClosed = errors.New("sse: sink closed")

type textFrame struct {
	Text string `json:"text"`
}

type carsFrame struct {
	Cars []inventory.Record `json:"cars"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// sseSink writes rag frames as server-sent events: "data: <json>\n\n".
// Headers go out with the first frame, so a handler can still answer with a plain
// JSON error if the pipeline fails before streaming starts.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
}

func newSSESink(ctx context.Context, w http.ResponseWriter) *sseSink {
	f, _ := w.(http.Flusher)
	return &sseSink{ctx: ctx, w: w, flusher: f}
}

func (s *sseSink) Text(fragment string) error {
	return s.frame(textFrame{Text: fragment})
}

func (s *sseSink) Cars(records []inventory.Record) error {
	return s.frame(carsFrame{Cars: records})
}

func (s *sseSink) Fail(message string) error {
	return s.frame(errorFrame{Error: message})
}

// Close writes the end-of-stream sentinel. Subsequent calls are no-ops.
func (s *sseSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.start()
	return s.write(doneSentinel)
}

func (s *sseSink) frame(v any) error {
	if s.closed {
		return errSinkClosed
	}
	// Клиент отключился: дальше писать бессмысленно.
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("sse: client gone: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal frame: %w", err)
	}
	s.start()
	return s.write(string(data))
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseSink) write(payload string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("sse: write frame: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
