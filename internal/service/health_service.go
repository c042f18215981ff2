package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-orchestrator/internal/core/ports"

	"github.com/rs/zerolog"
)

// HealthServiceImpl implements ports.HealthService.
type HealthServiceImpl struct {
	checkers []ports.HealthChecker
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewHealthService creates a new HealthServiceImpl. Each checker is probed
// with its own timeout.
func NewHealthService(timeout time.Duration, log zerolog.Logger, checkers ...ports.HealthChecker) *HealthServiceImpl {
	return &HealthServiceImpl{
		checkers: checkers,
		timeout:  timeout,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Check probes every dependency concurrently. The report is healthy only if
// every probe succeeded within the timeout.
func (s *HealthServiceImpl) Check(ctx context.Context) ports.HealthReport {
	results := make([]ports.DependencyStatus, len(s.checkers))

	var wg sync.WaitGroup
	for i, c := range s.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.probe(ctx, c)
		}()
	}
	wg.Wait()

	report := ports.HealthReport{
		Status:       ports.HealthStatusHealthy,
		Dependencies: make(map[string]ports.DependencyStatus, len(s.checkers)),
		CheckedAt:    s.now(),
	}
	for i, c := range s.checkers {
		report.Dependencies[c.Name()] = results[i]
		if results[i].Status != ports.HealthStatusHealthy {
			report.Status = ports.HealthStatusDegraded
		}
	}

	if !report.Healthy() {
		s.log.Warn().Interface("dependencies", report.Dependencies).Msg("health check degraded")
	}
	return report
}

// probe runs one Ping and gives up at the timeout even if the checker
// ignores its context.
func (s *HealthServiceImpl) probe(ctx context.Context, c ports.HealthChecker) ports.DependencyStatus {
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- c.Ping(pctx)
	}()

	select {
	case err := <-done:
		status := ports.DependencyStatus{Latency: time.Since(start)}
		if err != nil {
			status.Status = ports.HealthStatusUnhealthy
			status.Error = err.Error()
			return status
		}
		status.Status = ports.HealthStatusHealthy
		return status
	case <-pctx.Done():
		return ports.DependencyStatus{
			Status:  ports.HealthStatusUnhealthy,
			Error:   fmt.Sprintf("timeout after %s", s.timeout),
			Latency: time.Since(start),
		}
	}
}
