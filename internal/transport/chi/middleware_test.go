package chi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS("https://cars.example")(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/rag", http.NoBody))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://cars.example" {
		t.Errorf("unexpected origin %q", got)
	}
}

func TestCORS_EmptyOriginPassThrough(t *testing.T) {
	h := CORS("")(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/rag", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("no CORS headers expected")
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(0.001, 2)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/rag", http.NoBody))
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests && rr.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After on 429")
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: expected %d, got %d", i, want[i], codes[i])
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0, 0)(okHandler())
	for range 10 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/rag", http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	}
}

func TestWideEvent_InjectsRequestLogger(t *testing.T) {
	var got *zap.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	h := WideEvent(zap.NewNop())(inner)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if got == nil {
		t.Fatal("expected a request logger in context")
	}
	if rr.Code != http.StatusTeapot {
		t.Errorf("status not propagated: %d", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantCode    int
		wantCT      string
		wantSuffix  string
		wantJSONErr bool
	}{
		{
			name:        "before response",
			handler:     func(http.ResponseWriter, *http.Request) { panic("boom") },
			wantCode:    http.StatusInternalServerError,
			wantCT:      "application/json",
			wantSuffix:  "}\n",
			wantJSONErr: true,
		},
		{
			name: "after stream finished",
			handler: func(w http.ResponseWriter, r *http.Request) {
				sink := newSSESink(r.Context(), w)
				_ = sink.Text("Consider the Swift.")
				_ = sink.Close()
				panic("boom")
			},
			wantCode:   http.StatusOK,
			wantCT:     "text/event-stream",
			wantSuffix: "data: [DONE]\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := JSONRecoverer(zap.NewNop(), false)(tt.handler)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/rag/stream", http.NoBody))

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantCT) {
				t.Errorf("content type = %q", ct)
			}
			body := rr.Body.String()
			if !strings.HasSuffix(body, tt.wantSuffix) {
				t.Errorf("body = %q", body)
			}
			if got := strings.Contains(body, `"error":"internal error"`); got != tt.wantJSONErr {
				t.Errorf("json error body = %v, body %q", got, body)
			}
		})
	}
}

func TestJSONRecoverer_KeepsFlusher(t *testing.T) {
	h := JSONRecoverer(zap.NewNop(), false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sink := newSSESink(r.Context(), w)
		_ = sink.Close()
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/rag/stream", http.NoBody))

	if !rr.Flushed {
		t.Error("SSE frames must still be flushed through the recoverer")
	}
}
