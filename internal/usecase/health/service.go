package health

import (
	"context"
	"fmt"
	"os"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
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
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	store      StorePinger
	baseFolder string
}

// New creates a Service.
func New(store StorePinger, baseFolder string) *Service {
	return &Service{store: store, baseFolder: baseFolder}
}

// Check runs the store and documents folder checks.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 2)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	if err := checkFolder(s.baseFolder); err != nil {
		checks["documents"] = CheckError
	} else {
		checks["documents"] = CheckOK
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func checkFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat documents folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("documents folder %q is not a directory", path)
	}
	return nil
}
