package printing

import (
	"context"
	"fmt"
	"sort"

	ipp "github.com/phin1x/go-ipp"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/logger"
)

// Spooler is the print-queue surface the orchestrator depends on. Submit
// returns the spooler-assigned job id, which some transports cannot
// provide; zero means "no id, do not poll".
type Spooler interface {
	Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) (int, error)
	JobState(ctx context.Context, jobID int) (JobState, error)
	Jobs(ctx context.Context) (map[int]JobState, error)
	Cancel(ctx context.Context, jobID int) error
	Printers(ctx context.Context) ([]string, error)
	DefaultPrinter(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
}

// IPPSpooler talks to a CUPS-compatible spooler over IPP.
type IPPSpooler struct {
	client *ipp.CUPSClient
	log    logger.Logger
}

func NewIPPSpooler(cfg config.SpoolerConfig, log logger.Logger) *IPPSpooler {
	return &IPPSpooler{
		client: ipp.NewCUPSClient(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.UseTLS),
		log:    log,
	}
}

func (s *IPPSpooler) Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	attrs := opts.IPPAttributes()
	attrs["job-name"] = title

	jobID, err := s.client.PrintFile(filePath, printer, attrs)
	if err != nil {
		return 0, fmt.Errorf("ipp submission failed: %w", err)
	}

	s.log.Infow("Print job submitted",
		"job_id", jobID,
		"printer", printer,
		"title", title)
	return jobID, nil
}

func (s *IPPSpooler) JobState(ctx context.Context, jobID int) (JobState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	attrs, err := s.client.GetJobAttributes(jobID, []string{"job-state"})
	if err != nil {
		return "", fmt.Errorf("failed to get job %d state: %w", jobID, err)
	}

	states, ok := attrs["job-state"]
	if !ok || len(states) == 0 {
		return JobStateProcessing, nil
	}
	code, ok := intAttributeValue(states[0].Value)
	if !ok {
		return JobStateProcessing, nil
	}
	return jobStateFromCode(code), nil
}

// Jobs returns the active queue as job id to state.
func (s *IPPSpooler) Jobs(ctx context.Context) (map[int]JobState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jobAttrs, err := s.client.GetJobs("", "", "not-completed", false, 0, 0, []string{"job-state"})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	states := make(map[int]JobState, len(jobAttrs))
	for id, attrs := range jobAttrs {
		state := JobStateProcessing
		if values, ok := attrs["job-state"]; ok && len(values) > 0 {
			if code, ok := intAttributeValue(values[0].Value); ok {
				state = jobStateFromCode(code)
			}
		}
		states[id] = state
	}
	return states, nil
}

func (s *IPPSpooler) Cancel(ctx context.Context, jobID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.CancelJob(jobID, false); err != nil {
		return fmt.Errorf("failed to cancel job %d: %w", jobID, err)
	}
	return nil
}

func (s *IPPSpooler) Printers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	printerAttrs, err := s.client.GetPrinters([]string{"printer-name"})
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}

	names := make([]string, 0, len(printerAttrs))
	for name := range printerAttrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// cupsPrinterDefault is the printer-type bit the spooler sets on the
// server default queue.
const cupsPrinterDefault = 0x20000

// DefaultPrinter reports the spooler's default queue, or empty when the
// server has none configured.
func (s *IPPSpooler) DefaultPrinter(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	printerAttrs, err := s.client.GetPrinters([]string{"printer-name", "printer-type"})
	if err != nil {
		return "", fmt.Errorf("failed to query default printer: %w", err)
	}

	for name, attrs := range printerAttrs {
		values, ok := attrs["printer-type"]
		if !ok || len(values) == 0 {
			continue
		}
		if kind, ok := intAttributeValue(values[0].Value); ok && kind&cupsPrinterDefault != 0 {
			return name, nil
		}
	}
	return "", nil
}

func (s *IPPSpooler) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.TestConnection(); err != nil {
		return fmt.Errorf("spooler unreachable: %w", err)
	}
	return nil
}

// intAttributeValue normalizes the integer widths the protocol decoder may
// hand back for enum attributes.
func intAttributeValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	}
	return 0, false
}
