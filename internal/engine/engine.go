package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailbox"
	"github.com/adaoss/Mail2printer/internal/mailparse"
	"github.com/adaoss/Mail2printer/internal/printing"
	apperrors "github.com/adaoss/Mail2printer/pkg/errors"
	"github.com/adaoss/Mail2printer/pkg/logging"
	"github.com/adaoss/Mail2printer/pkg/metrics"
	"github.com/adaoss/Mail2printer/pkg/tracing"
)

// BatchPrinter receives one cycle's accepted messages as a unit.
// Satisfied by printing.Orchestrator.
type BatchPrinter interface {
	PrintBatch(ctx context.Context, messages []*mailparse.EmailMessage) printing.BatchResult
}

// Engine runs the periodic poll cycle: search unread mail, fetch, parse,
// deduplicate, filter, mark read, then hand the accepted batch to the
// printer. The mailbox connection and the seen cache are owned
// exclusively by this loop.
type Engine struct {
	cfg     *config.Config
	mailbox mailbox.Client
	parser  *mailparse.Parser
	printer BatchPrinter
	filters *FilterChain
	cache   *SeenCache
	stats   *Stats
	log     logger.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg *config.Config, client mailbox.Client, parser *mailparse.Parser, printer BatchPrinter, filters *FilterChain, log logger.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		mailbox: client,
		parser:  parser,
		printer: printer,
		filters: filters,
		cache:   NewSeenCache(constants.SeenCacheHighWater, constants.SeenCacheLowWater),
		stats:   NewStats(),
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Run executes poll cycles until the context is canceled or Stop is
// called. A failing cycle never terminates the loop; it forces a
// disconnect so the next cycle starts from a clean connection.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.Email.CheckInterval()
	if interval < constants.MinCheckInterval {
		interval = constants.DefaultCheckInterval
	}
	e.running.Store(true)
	defer e.running.Store(false)
	defer func() { _ = e.mailbox.Disconnect() }()
	defer e.logSummary()

	e.log.Infow("Mail polling engine started",
		"folder", e.cfg.Email.Folder,
		"interval", interval.String(),
	)

	for {
		e.runCycle(ctx)

		select {
		case <-ctx.Done():
			e.log.Infow("Mail polling engine stopping")
			return nil
		case <-e.stop:
			e.log.Infow("Mail polling engine stopped by request")
			return nil
		case <-time.After(interval):
		}
	}
}

// Stop requests a graceful exit. The current cycle, including any
// in-flight print attempt, finishes first; the loop checks the flag
// between cycles only.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.running.Store(false)
		close(e.stop)
	})
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) Stats() *Stats {
	return e.stats
}

func (e *Engine) CheckInterval() time.Duration {
	return e.cfg.Email.CheckInterval()
}

// RunCycleNow executes a single poll cycle synchronously, outside the
// periodic loop.
func (e *Engine) RunCycleNow(ctx context.Context) {
	e.runCycle(ctx)
}

// logSummary writes the lifetime counters once, when the loop exits.
func (e *Engine) logSummary() {
	snap := e.stats.Snapshot()
	e.log.Infow("Service statistics",
		"uptime", snap.Uptime,
		"emails_processed", snap.EmailsProcessed,
		"emails_printed", snap.EmailsPrinted,
		"print_jobs_failed", snap.PrintJobsFailed,
		"success_rate_percent", snap.SuccessRate,
	)
}

func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()
	err := e.cycle(ctx)
	duration := time.Since(start)

	if err != nil {
		metrics.IncPollCycle("error")
		metrics.ObserveCycleDuration(duration, "error")
		e.log.Errorw("Poll cycle failed",
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		// Drop the connection so the next cycle reconnects cleanly.
		if dErr := e.mailbox.Disconnect(); dErr != nil {
			e.log.Debugw("Disconnect after failed cycle", "error", dErr)
		}
		return
	}

	e.stats.IncCycle()
	metrics.IncPollCycle("success")
	metrics.ObserveCycleDuration(duration, "success")
}

func (e *Engine) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()

	ctx, span := tracing.GetTracer("polling-engine").Start(ctx, "engine.poll_cycle")
	defer span.End()

	if !e.mailbox.Connected() {
		metrics.IncMailboxReconnect()
	}
	if err := e.mailbox.Connect(ctx); err != nil {
		return fmt.Errorf("mailbox connect: %w", err)
	}

	uids, err := e.mailbox.SearchUnseen(ctx)
	if err != nil {
		return fmt.Errorf("mailbox search: %w", err)
	}
	if len(uids) == 0 {
		e.log.Debugw("No unread messages")
		return nil
	}
	e.log.Infow("Found unread messages", "count", len(uids))

	batch := make([]*mailparse.EmailMessage, 0, len(uids))
	flagged := 0
	for _, uid := range uids {
		msg, deleted, ok := e.collectMessage(ctx, uid)
		if !ok {
			continue
		}
		if deleted {
			flagged++
		}
		batch = append(batch, msg)
	}

	// One expunge per cycle, after every message is flagged, so the
	// search result indexes stay stable during iteration.
	if e.cfg.Email.DeleteAfterPrint && flagged > 0 {
		if err := e.mailbox.Expunge(ctx); err != nil {
			e.log.Warnw("Expunge failed", "error", err)
		}
	}

	e.cache.Enforce()
	metrics.SetSeenCacheSize(e.cache.Len())

	if len(batch) == 0 {
		return nil
	}

	result := e.printer.PrintBatch(ctx, batch)
	e.stats.AddProcessed(len(batch))
	e.stats.AddPrinted(result.Printed)
	e.stats.AddSkipped(result.Skipped)
	// Failed jobs are counted per file, so a refused attachment shows up
	// even when a sibling kept the email in the printed column.
	e.stats.AddFailed(result.FailedFiles)
	metrics.AddEmailsProcessed("printed", result.Printed)
	metrics.AddEmailsProcessed("skipped", result.Skipped)
	metrics.AddEmailsProcessed("failed", result.Failed)

	e.log.Infow("Cycle complete",
		"accepted", len(batch),
		"printed", result.Printed,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return nil
}

// collectMessage runs one message through fetch, parse, dedup and the
// filter chain, then marks it read before it ever reaches the printer.
// Returns the parsed message, whether it was flagged for deletion, and
// whether it was accepted.
func (e *Engine) collectMessage(ctx context.Context, uid uint32) (*mailparse.EmailMessage, bool, bool) {
	raw, err := e.mailbox.Fetch(ctx, uid)
	if err != nil {
		e.log.Warnw("Failed to fetch message, skipping", "uid", uid, "error", err)
		return nil, false, false
	}

	msg, err := e.parser.Parse(raw)
	if err != nil {
		e.log.Warnw("Failed to parse message, skipping", "uid", uid, "error", err)
		return nil, false, false
	}
	ctx = logging.WithMessageID(ctx, msg.MessageID)

	if e.cache.Contains(msg.MessageID) {
		e.log.DebugwCtx(ctx, "Skipping duplicate message", "subject", msg.Subject)
		e.stats.IncDuplicate()
		metrics.IncEmailProcessed("duplicate")
		return nil, false, false
	}

	if accepted, filter := e.filters.Accept(ctx, msg); !accepted {
		e.log.InfowCtx(ctx, "Message rejected by filter",
			"filter", filter,
			"sender", msg.Sender,
			"subject", msg.Subject,
		)
		e.stats.IncFiltered()
		metrics.IncEmailProcessed("filtered")
		return nil, false, false
	}

	// Mark read before printing. If the process dies mid-print the
	// message stays out of the next search; a lost printout beats a
	// storm of duplicates.
	if err := e.mailbox.MarkSeen(ctx, uid); err != nil {
		e.log.WarnwCtx(ctx, "Failed to mark message read", "uid", uid, "error", err)
	}

	deleted := false
	if e.cfg.Email.DeleteAfterPrint {
		if err := e.mailbox.MarkDeleted(ctx, uid); err != nil {
			e.log.WarnwCtx(ctx, "Failed to flag message for deletion", "uid", uid, "error", err)
		} else {
			deleted = true
		}
	}

	e.cache.Add(msg.MessageID)
	return msg, deleted, true
}
