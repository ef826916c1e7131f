package printing

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/pkg/circuitbreaker"
)

// CircuitBreakerSpooler guards submissions against a dead spooler so the
// orchestrator falls back to the command-line path quickly instead of
// burning the whole cycle on connection timeouts. Read-side operations
// bypass the breaker: a job-not-found answer during polling is a legitimate
// completion signal, not a spooler failure.
type CircuitBreakerSpooler struct {
	spooler Spooler
	cb      *circuitbreaker.Wrapper
}

func NewCircuitBreakerSpooler(spooler Spooler, cfg config.CircuitBreakerConfig) *CircuitBreakerSpooler {
	if !cfg.Enabled {
		return &CircuitBreakerSpooler{
			spooler: spooler,
			cb:      nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("ipp-spooler")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerSpooler{
		spooler: spooler,
		cb:      circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerSpooler) Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) (int, error) {
	if s.cb == nil {
		return s.spooler.Submit(ctx, printer, filePath, title, opts)
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.spooler.Submit(ctx, printer, filePath, title, opts)
	})

	s.cb.RecordRequest(err == nil)

	if err != nil {
		if s.cb.IsOpen() {
			return 0, fmt.Errorf("circuit breaker is open for ipp-spooler: %w", err)
		}
		return 0, err
	}

	jobID, ok := result.(int)
	if !ok {
		return 0, fmt.Errorf("spooler returned invalid result type")
	}

	return jobID, nil
}

func (s *CircuitBreakerSpooler) JobState(ctx context.Context, jobID int) (JobState, error) {
	return s.spooler.JobState(ctx, jobID)
}

func (s *CircuitBreakerSpooler) Jobs(ctx context.Context) (map[int]JobState, error) {
	return s.spooler.Jobs(ctx)
}

func (s *CircuitBreakerSpooler) Cancel(ctx context.Context, jobID int) error {
	return s.spooler.Cancel(ctx, jobID)
}

func (s *CircuitBreakerSpooler) Printers(ctx context.Context) ([]string, error) {
	return s.spooler.Printers(ctx)
}

func (s *CircuitBreakerSpooler) DefaultPrinter(ctx context.Context) (string, error) {
	return s.spooler.DefaultPrinter(ctx)
}

func (s *CircuitBreakerSpooler) Ping(ctx context.Context) error {
	return s.spooler.Ping(ctx)
}

func (s *CircuitBreakerSpooler) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerSpooler) IsOpen() bool {
	if s.cb == nil {
		return false
	}
	return s.cb.IsOpen()
}
