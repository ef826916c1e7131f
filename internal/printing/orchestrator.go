package printing

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailparse"
	"github.com/adaoss/Mail2printer/internal/render"
	apperrors "github.com/adaoss/Mail2printer/pkg/errors"
	"github.com/adaoss/Mail2printer/pkg/metrics"
)

// Outcome classifies what happened to a single email inside the print
// pipeline. Skipped covers content that was rejected before submission
// (nothing printable, unsupported format, page cap), Failed covers
// submission attempts that could not be delivered on either path.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomePrinted
	OutcomeFailed
)

// BatchResult aggregates per-email outcomes for one poll cycle.
// FailedFiles counts individual print submissions that were refused on
// both paths, including files whose email still printed because a
// sibling attachment went through.
type BatchResult struct {
	Printed     int
	Failed      int
	Skipped     int
	FailedFiles int
}

// BodyRenderer turns an HTML document into a PDF. Satisfied by
// render.HTMLRenderer.
type BodyRenderer interface {
	Render(html, title string) ([]byte, error)
}

// FallbackSubmitter is the second-chance print path used when the
// spooler rejects a submission. Satisfied by LPCommand.
type FallbackSubmitter interface {
	Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) error
}

// Orchestrator drives the per-email print decision and the file print
// path: content selection, conversion, page estimation, submission and
// completion tracking. Emails are processed strictly sequentially; a
// failure inside one email never propagates to the next.
type Orchestrator struct {
	cfg      config.PrintingConfig
	spooler  Spooler
	fallback FallbackSubmitter
	renderer BodyRenderer
	registry *JobRegistry
	log      logger.Logger

	mu            sync.RWMutex
	activePrinter string
}

func NewOrchestrator(cfg config.PrintingConfig, spooler Spooler, fallback FallbackSubmitter, renderer BodyRenderer, registry *JobRegistry, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		spooler:  spooler,
		fallback: fallback,
		renderer: renderer,
		registry: registry,
		log:      log,
	}
}

// PrintBatch processes the cycle's messages one at a time and returns
// the outcome tally. It never returns an error: per-email failures are
// logged, counted and contained.
func (o *Orchestrator) PrintBatch(ctx context.Context, messages []*mailparse.EmailMessage) BatchResult {
	var result BatchResult
	for _, msg := range messages {
		outcome, failedFiles := o.printMessage(ctx, msg)
		result.FailedFiles += failedFiles
		switch outcome {
		case OutcomePrinted:
			result.Printed++
		case OutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}
	return result
}

// PrintMessage applies the content decision rule: when the email
// carries attachments and attachment printing is enabled, only the
// attachments are printed and the body is ignored entirely. Otherwise
// the body is printed, HTML preferred over plain text.
func (o *Orchestrator) PrintMessage(ctx context.Context, msg *mailparse.EmailMessage) Outcome {
	outcome, _ := o.printMessage(ctx, msg)
	return outcome
}

// printMessage additionally reports how many individual files failed on
// both submission paths, so the failed-jobs counter tracks every refused
// file even when the email as a whole still printed.
func (o *Orchestrator) printMessage(ctx context.Context, msg *mailparse.EmailMessage) (Outcome, int) {
	if msg.HasAttachments() && o.cfg.PrintAttachments {
		o.log.InfowCtx(ctx, "Printing attachments",
			"subject", msg.Subject,
			"count", len(msg.Attachments),
		)
		return o.printAttachments(ctx, msg)
	}

	if (msg.HasText() && o.cfg.PrintBody) || (msg.HasHTML() && o.cfg.PrintHTML) {
		o.log.InfowCtx(ctx, "Printing message body", "subject", msg.Subject)
		return o.printBody(ctx, msg)
	}

	o.log.InfowCtx(ctx, "Nothing printable in message", "subject", msg.Subject)
	return OutcomeSkipped, 0
}

// ActivePrinter reports the destination used by the most recent
// submission, for the status endpoint.
func (o *Orchestrator) ActivePrinter() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activePrinter
}

// Jobs lists tracked print jobs in submission order.
func (o *Orchestrator) Jobs() []PrintJob {
	return o.registry.List()
}

// Job looks up a tracked print job by spooler id.
func (o *Orchestrator) Job(id int) (PrintJob, bool) {
	return o.registry.Get(id)
}

// CancelJob asks the spooler to cancel a job and reflects the new
// state in the registry.
func (o *Orchestrator) CancelJob(ctx context.Context, id int) error {
	if _, ok := o.registry.Get(id); !ok {
		return apperrors.ErrNotFound.WithDetail("job_id", id)
	}
	if err := o.spooler.Cancel(ctx, id); err != nil {
		return err
	}
	o.registry.SetState(id, JobStateCanceled)
	return nil
}

func (o *Orchestrator) printAttachments(ctx context.Context, msg *mailparse.EmailMessage) (Outcome, int) {
	tempDir, err := os.MkdirTemp("", "mail2printer-*")
	if err != nil {
		o.log.ErrorwCtx(ctx, "Failed to create temp directory", "error", err)
		return OutcomeFailed, 1
	}
	defer os.RemoveAll(tempDir)

	var submitted, untracked, rejected, failed int
	for i, att := range msg.Attachments {
		filePath, contentType, opts, err := o.materializeAttachment(tempDir, i, att)
		if err != nil {
			if apperrors.IsValidation(err) {
				rejected++
				o.log.WarnwCtx(ctx, "Rejecting attachment",
					"filename", att.Filename,
					"content_type", att.ContentType,
					"error", err,
				)
			} else {
				failed++
				o.log.ErrorwCtx(ctx, "Failed to stage attachment",
					"filename", att.Filename,
					"error", err,
				)
			}
			continue
		}

		tracked, err := o.submitFile(ctx, filePath, att.Filename, contentType, opts)
		if err != nil {
			if apperrors.IsValidation(err) {
				rejected++
				o.log.WarnwCtx(ctx, "Rejecting attachment",
					"filename", att.Filename,
					"error", err,
				)
			} else {
				failed++
				o.log.ErrorwCtx(ctx, "Failed to print attachment",
					"filename", att.Filename,
					"error", err,
				)
			}
			continue
		}

		submitted++
		if !tracked {
			untracked++
		}
	}

	// The temp directory must outlive the spooler's read of the files.
	// Submissions with a job id were already polled to completion;
	// blind submissions get a fixed grace period scaled by batch size.
	if untracked > 0 {
		o.waitForBatch(ctx, submitted)
	}

	switch {
	case submitted > 0:
		return OutcomePrinted, failed
	case failed > 0:
		return OutcomeFailed, failed
	default:
		return OutcomeSkipped, 0
	}
}

// materializeAttachment writes one attachment into the temp directory
// in a printable form and returns the file path, the content type used
// for page estimation and the job options for submission.
func (o *Orchestrator) materializeAttachment(dir string, index int, att mailparse.Attachment) (string, string, JobOptions, error) {
	opts := OptionsFromConfig(o.cfg.Options, o.cfg.Copies)

	contentType := strings.ToLower(strings.TrimSpace(att.ContentType))
	if contentType == "" {
		contentType = strings.ToLower(mime.TypeByExtension(filepath.Ext(att.Filename)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	base := fmt.Sprintf("%02d-%s", index+1, mailparse.SanitizeFilename(att.Filename, index))

	switch {
	case contentType == "application/pdf":
		filePath := filepath.Join(dir, base)
		if err := os.WriteFile(filePath, att.Data, 0o600); err != nil {
			return "", "", opts, err
		}
		return filePath, contentType, opts.ForcePortrait(), nil

	case contentType == "image/png" || contentType == "image/jpeg" || contentType == "image/jpg":
		pdfData, err := render.ImageToPDF(att.Data)
		if err != nil {
			metrics.IncRender("image", "failure")
			return "", "", opts, err
		}
		metrics.IncRender("image", "success")
		filePath := filepath.Join(dir, base+".pdf")
		if err := os.WriteFile(filePath, pdfData, 0o600); err != nil {
			return "", "", opts, err
		}
		return filePath, "application/pdf", opts.ForceA4().ForcePortrait(), nil

	case strings.HasPrefix(contentType, "image/"):
		return "", "", opts, apperrors.ErrValidation.
			WithDetail("content_type", contentType).
			WithCause(fmt.Errorf("unsupported image format %q", contentType))

	default:
		filePath := filepath.Join(dir, base)
		if err := os.WriteFile(filePath, att.Data, 0o600); err != nil {
			return "", "", opts, err
		}
		return filePath, contentType, opts, nil
	}
}

func (o *Orchestrator) printBody(ctx context.Context, msg *mailparse.EmailMessage) (Outcome, int) {
	header := render.HeaderBlock{
		From:    msg.Sender,
		To:      msg.Recipient,
		Subject: msg.Subject,
		Date:    msg.Date,
	}
	title := "Email: " + msg.Subject

	tempDir, err := os.MkdirTemp("", "mail2printer-*")
	if err != nil {
		o.log.ErrorwCtx(ctx, "Failed to create temp directory", "error", err)
		return OutcomeFailed, 1
	}
	defer os.RemoveAll(tempDir)

	if msg.HasHTML() && o.cfg.PrintHTML {
		pdfData, err := o.renderer.Render(header.WrapHTML(msg.HTMLBody), title)
		if err == nil {
			metrics.IncRender("html", "success")
			filePath := filepath.Join(tempDir, "body.pdf")
			if writeErr := os.WriteFile(filePath, pdfData, 0o600); writeErr != nil {
				o.log.ErrorwCtx(ctx, "Failed to stage rendered body", "error", writeErr)
				return OutcomeFailed, 1
			}
			opts := OptionsFromConfig(o.cfg.Options, o.cfg.Copies).ForcePortrait()
			return o.submitBody(ctx, filePath, title, "application/pdf", opts)
		}

		metrics.IncRender("html", "failure")
		o.log.WarnwCtx(ctx, "HTML rendering failed, falling back to plain text",
			"subject", msg.Subject,
			"error", err,
		)
	}

	if msg.HasText() && o.cfg.PrintBody {
		filePath := filepath.Join(tempDir, "body.txt")
		content := header.Text() + msg.TextBody
		if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
			o.log.ErrorwCtx(ctx, "Failed to stage text body", "error", err)
			return OutcomeFailed, 1
		}
		opts := OptionsFromConfig(o.cfg.Options, o.cfg.Copies)
		return o.submitBody(ctx, filePath, title, "text/plain", opts)
	}

	o.log.WarnwCtx(ctx, "No printable body remains", "subject", msg.Subject)
	return OutcomeFailed, 1
}

func (o *Orchestrator) submitBody(ctx context.Context, filePath, title, contentType string, opts JobOptions) (Outcome, int) {
	tracked, err := o.submitFile(ctx, filePath, title, contentType, opts)
	if err != nil {
		if apperrors.IsValidation(err) {
			o.log.WarnwCtx(ctx, "Rejecting message body", "title", title, "error", err)
			return OutcomeSkipped, 0
		}
		o.log.ErrorwCtx(ctx, "Failed to print message body", "title", title, "error", err)
		return OutcomeFailed, 1
	}
	if !tracked {
		o.waitForBatch(ctx, 1)
	}
	return OutcomePrinted, 0
}

// submitFile runs one file through page estimation, spooler submission
// with command fallback and, when a job id is available, completion
// polling. The returned bool reports whether completion was observed;
// false means the caller must hold the source file for the fixed wait.
func (o *Orchestrator) submitFile(ctx context.Context, filePath, title, contentType string, opts JobOptions) (bool, error) {
	pages := EstimatePages(filePath, contentType)
	metrics.ObservePagesEstimated(pages)
	if o.cfg.MaxPagesPerDocument > 0 && pages > o.cfg.MaxPagesPerDocument {
		return false, apperrors.ErrValidation.
			WithDetail("pages", pages).
			WithDetail("max_pages", o.cfg.MaxPagesPerDocument).
			WithCause(fmt.Errorf("document has %d pages, limit is %d", pages, o.cfg.MaxPagesPerDocument))
	}

	printer := o.resolvePrinter(ctx)

	jobID, err := o.spooler.Submit(ctx, printer, filePath, title, opts)
	if err == nil {
		metrics.IncPrintSubmission("ipp", "success")
		o.log.InfowCtx(ctx, "Submitted print job",
			"printer", printer,
			"title", title,
			"job_id", jobID,
			"pages", pages,
		)
		if jobID > 0 {
			o.registry.Add(PrintJob{
				ID:          jobID,
				Title:       title,
				SourceFile:  filepath.Base(filePath),
				Printer:     printer,
				SubmittedAt: time.Now().UTC(),
				State:       JobStateSubmitted,
			})
			o.waitForJob(ctx, jobID)
			return true, nil
		}
		return false, nil
	}

	metrics.IncPrintSubmission("ipp", "failure")
	o.log.WarnwCtx(ctx, "Spooler submission failed, trying lp fallback",
		"printer", printer,
		"title", title,
		"error", err,
	)

	if fbErr := o.fallback.Submit(ctx, printer, filePath, title, opts); fbErr != nil {
		metrics.IncPrintSubmission("lp", "failure")
		return false, fmt.Errorf("print failed: spooler: %v, lp: %w", err, fbErr)
	}
	metrics.IncPrintSubmission("lp", "success")
	return false, nil
}

// waitForJob polls the spooler until the job reaches a terminal state,
// disappears from the queue, or the timeout elapses. A timeout is not
// a failure: slow printers finish on their own schedule.
func (o *Orchestrator) waitForJob(ctx context.Context, jobID int) JobState {
	start := time.Now()
	timeout := time.Duration(o.cfg.Wait.JobTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = constants.DefaultJobWaitTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(constants.JobPollInterval)
	defer ticker.Stop()

	state := JobStateSubmitted
	for {
		select {
		case <-ctx.Done():
			metrics.ObserveJobWaitDuration(time.Since(start), "interrupted")
			return state
		case <-deadline.C:
			o.log.DebugwCtx(ctx, "Job wait timed out", "job_id", jobID, "last_state", state)
			metrics.ObserveJobWaitDuration(time.Since(start), "timeout")
			return state
		case <-ticker.C:
			current, err := o.spooler.JobState(ctx, jobID)
			if err != nil {
				// Completed jobs age out of the queue quickly; a lookup
				// failure after submission means the job is gone.
				o.registry.SetState(jobID, JobStateCompleted)
				metrics.ObserveJobWaitDuration(time.Since(start), "gone")
				return JobStateCompleted
			}
			state = current
			o.registry.SetState(jobID, state)
			if state.Terminal() {
				o.log.InfowCtx(ctx, "Print job finished",
					"job_id", jobID,
					"state", state,
					"elapsed", time.Since(start).Round(time.Millisecond).String(),
				)
				metrics.ObserveJobWaitDuration(time.Since(start), string(state))
				return state
			}
		}
	}
}

// waitForBatch sleeps for the fixed post-submission grace period:
// min(base + n*per_attachment, max). Used only when at least one
// submission returned no job id to poll.
func (o *Orchestrator) waitForBatch(ctx context.Context, count int) {
	base := secondsOrDefault(o.cfg.Wait.BaseSeconds, constants.BaseWaitTime)
	per := secondsOrDefault(o.cfg.Wait.PerAttachmentSeconds, constants.WaitPerAttachment)
	max := secondsOrDefault(o.cfg.Wait.MaxSeconds, constants.MaxWaitTime)

	wait := base + time.Duration(count)*per
	if wait > max {
		wait = max
	}

	o.log.DebugwCtx(ctx, "Waiting for spooler to drain", "submissions", count, "wait", wait.String())
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// resolvePrinter picks the destination: the configured name when set,
// otherwise the spooler's default queue, otherwise the first printer it
// reports. An empty result lets the lp fallback use the system default
// destination.
func (o *Orchestrator) resolvePrinter(ctx context.Context) string {
	name := strings.TrimSpace(o.cfg.PrinterName)
	if name != "" && !strings.EqualFold(name, "default") {
		o.setActivePrinter(name)
		return name
	}

	if name, err := o.spooler.DefaultPrinter(ctx); err == nil && name != "" {
		o.setActivePrinter(name)
		return name
	}

	names, err := o.spooler.Printers(ctx)
	if err != nil || len(names) == 0 {
		o.log.DebugwCtx(ctx, "No printer discovered, deferring to system default", "error", err)
		return ""
	}
	o.setActivePrinter(names[0])
	return names[0]
}

func (o *Orchestrator) setActivePrinter(name string) {
	o.mu.Lock()
	o.activePrinter = name
	o.mu.Unlock()
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
