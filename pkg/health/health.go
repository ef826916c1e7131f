package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

// Pinger is the connectivity probe implemented by the mailbox client and
// the print spooler client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
	group    singleflight.Group
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

// Check collapses concurrent callers into one probe run. The checks NOOP
// a live IMAP session and query the spooler, so they must not multiply
// under request load.
func (r *CheckerRegistry) Check(ctx context.Context) Health {
	v, _, _ := r.group.Do("health", func() (interface{}, error) {
		return r.check(ctx), nil
	})
	return v.(Health)
}

func (r *CheckerRegistry) check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	allHealthy := true

	for _, checker := range r.checkers {
		err := checker.Check(ctx)
		result := CheckResult{
			Timestamp: time.Now(),
		}

		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		} else {
			result.Status = StatusHealthy
		}

		results[checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

type MailboxChecker struct {
	pinger Pinger
}

func NewMailboxChecker(pinger Pinger) *MailboxChecker {
	return &MailboxChecker{pinger: pinger}
}

func (c *MailboxChecker) Name() string {
	return "mailbox"
}

func (c *MailboxChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("mailbox ping failed: %w", err)
	}
	return nil
}

type SpoolerChecker struct {
	pinger Pinger
}

func NewSpoolerChecker(pinger Pinger) *SpoolerChecker {
	return &SpoolerChecker{pinger: pinger}
}

func (c *SpoolerChecker) Name() string {
	return "spooler"
}

func (c *SpoolerChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("spooler ping failed: %w", err)
	}
	return nil
}
