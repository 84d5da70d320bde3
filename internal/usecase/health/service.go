package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional dependency is failing; recommendations
	// still work, possibly slower or without caching.
	Degraded Status = "degraded"
	// Unhealthy indicates the indices are unusable and ranking cannot run.
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

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	index     IndexChecker
	cache     CachePinger
	embedding EmbeddingChecker
}

// New creates a Service. cache and embedding can be nil when those
// dependencies are not configured.
func New(index IndexChecker, cache CachePinger, embedding EmbeddingChecker) *Service {
	return &Service{index: index, cache: cache, embedding: embedding}
}

// Check runs health checks against all components. A failing index check
// makes the whole service unhealthy; cache or embedding failures only
// degrade it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.index.Ready() {
		checks["index"] = CheckOK
	} else {
		checks["index"] = CheckError
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["index"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
