package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/pkg/health"
	"github.com/adaoss/Mail2printer/pkg/retry"
)

// Prober verifies upstream connectivity at startup so a misconfigured
// mailbox or spooler surfaces immediately instead of on the first poll
// cycle.
type Prober struct {
	Config *config.Config
	Logger logger.Logger
}

func NewProber(cfg *config.Config, log logger.Logger) *Prober {
	return &Prober{
		Config: cfg,
		Logger: log,
	}
}

func (p *Prober) policy() retry.Policy {
	policy := retry.DefaultPolicy()
	if p.Config.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = p.Config.Retry.MaxAttempts
	}
	if p.Config.Retry.InitialInterval > 0 {
		policy.InitialInterval = p.Config.Retry.InitialInterval
	}
	if p.Config.Retry.MaxInterval > 0 {
		policy.MaxInterval = p.Config.Retry.MaxInterval
	}
	if p.Config.Retry.Multiplier > 0 {
		policy.Multiplier = p.Config.Retry.Multiplier
	}
	if p.Config.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = p.Config.Retry.MaxElapsedTime
	}
	return policy
}

// Connector establishes a session with an upstream dependency.
type Connector interface {
	Connect(ctx context.Context) error
}

// ProbeMailbox connects to the IMAP server with backoff. A failure after
// the retry budget is fatal: the service exists to drain that mailbox.
func (p *Prober) ProbeMailbox(ctx context.Context, conn Connector) error {
	err := retry.RetryWithCallback(ctx, p.policy(), func() error {
		return conn.Connect(ctx)
	}, func(attempt int, err error, nextDelay time.Duration) {
		p.Logger.Warnw("Mailbox not reachable yet, retrying",
			"attempt", attempt,
			"error", err,
			"next_delay", nextDelay,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to reach mailbox: %w", err)
	}

	p.Logger.Info("Mailbox connected successfully")
	return nil
}

// ProbeSpooler pings the print spooler once. Callers treat a failure as
// non-fatal because the orchestrator falls back to lp when IPP is down.
func (p *Prober) ProbeSpooler(ctx context.Context, pinger health.Pinger) error {
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach spooler: %w", err)
	}

	p.Logger.Info("Spooler connected successfully")
	return nil
}
