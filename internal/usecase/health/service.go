package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentVector     = "vector"
	ComponentRecords    = "records"
	ComponentCompletion = "completion"
)

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	vector     Pinger
	records    Pinger
	completion ProviderChecker
}

// New creates a Service. Any component may be nil; nil components are not reported.
func New(vector, records Pinger, completion ProviderChecker) *Service {
	return &Service{vector: vector, records: records, completion: completion}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.vector != nil {
		checks[ComponentVector] = run(ctx, ComponentVector, s.vector.Ping)
	}
	if s.records != nil {
		checks[ComponentRecords] = run(ctx, ComponentRecords, s.records.Ping)
	}
	if s.completion != nil {
		checks[ComponentCompletion] = run(ctx, ComponentCompletion, s.completion.HealthCheck)
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func run(ctx context.Context, name string, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		logger.FromContext(ctx).Warn("Health check failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
