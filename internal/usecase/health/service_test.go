package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockProviderChecker struct {
	err error
}

func (m *mockProviderChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockProviderChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentVector, ComponentRecords, ComponentCompletion} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
}

func TestCheck_PartialFailure(t *testing.T) {
	tests := []struct {
		name   string
		svc    *Service
		failed string
	}{
		{
			name:   "vector down",
			svc:    New(&mockPinger{err: errors.New("conn refused")}, &mockPinger{}, &mockProviderChecker{}),
			failed: ComponentVector,
		},
		{
			name:   "records down",
			svc:    New(&mockPinger{}, &mockPinger{err: errors.New("DATABASE_URL missing")}, &mockProviderChecker{}),
			failed: ComponentRecords,
		},
		{
			name:   "completion down",
			svc:    New(&mockPinger{}, &mockPinger{}, &mockProviderChecker{err: errors.New("timeout")}),
			failed: ComponentCompletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.svc.Check(context.Background())
			if r.Status != Degraded {
				t.Errorf("expected %q, got %q", Degraded, r.Status)
			}
			for c, v := range r.Checks {
				want := CheckOK
				if c == tt.failed {
					want = CheckError
				}
				if v != want {
					t.Errorf("%s: expected %q, got %q", c, want, v)
				}
			}
		})
	}
}

func TestCheck_AllFail(t *testing.T) {
	svc := New(
		&mockPinger{err: errors.New("vector down")},
		&mockPinger{err: errors.New("db down")},
		&mockProviderChecker{err: errors.New("llm down")},
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NilComponentsAreSkipped(t *testing.T) {
	svc := New(&mockPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 1 {
		t.Errorf("expected only the vector check, got %v", r.Checks)
	}
	if _, ok := r.Checks[ComponentRecords]; ok {
		t.Error("records check should be absent when records is nil")
	}
}

func TestCheck_NoComponents(t *testing.T) {
	r := New(nil, nil, nil).Check(context.Background())
	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
}
