package printing

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/adaoss/Mail2printer/internal/logger"
)

// LPCommand submits files through lp(1) when the spooler protocol path is
// unavailable. It cannot report a job id, so submissions through it rely on
// the fixed-wait heuristic instead of job polling.
type LPCommand struct {
	log logger.Logger
}

func NewLPCommand(log logger.Logger) *LPCommand {
	return &LPCommand{log: log}
}

// Submit runs lp with the equivalent option set encoded as -o key=value
// pairs. An empty printer name lets lp pick the system default destination.
func (l *LPCommand) Submit(ctx context.Context, printer, filePath, title string, opts JobOptions) error {
	args := make([]string, 0, 16)
	if printer != "" {
		args = append(args, "-d", printer)
	}
	args = append(args, "-t", title)
	args = append(args, opts.LPArguments()...)
	args = append(args, filePath)

	cmd := exec.CommandContext(ctx, "lp", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("lp command failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	l.log.Infow("Print job submitted via lp",
		"printer", printer,
		"title", title,
		"output", strings.TrimSpace(string(output)))
	return nil
}
