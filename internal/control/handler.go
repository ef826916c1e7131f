package control

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/engine"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/printing"
	"github.com/adaoss/Mail2printer/pkg/errors"
)

// EngineController is the read-mostly view of the polling engine the
// control surface needs. Satisfied by engine.Engine.
type EngineController interface {
	Running() bool
	Stats() *engine.Stats
	CheckInterval() time.Duration
	Stop()
}

// JobController exposes the orchestrator's job registry and cancel
// path. Satisfied by printing.Orchestrator.
type JobController interface {
	ActivePrinter() string
	Jobs() []printing.PrintJob
	Job(id int) (printing.PrintJob, bool)
	CancelJob(ctx context.Context, id int) error
}

// Lifecycle carries the process-level controls the stop and restart
// endpoints trigger. Either func may be nil when the surrounding process
// does not support the action.
type Lifecycle struct {
	// Shutdown takes the whole process down gracefully after the stop
	// response is written; the engine handle alone only stops polling.
	Shutdown func()
	// Reload asks for a fresh process. Restart semantics rely on the
	// process supervisor bringing the service back up.
	Reload func() error
}

type Handler struct {
	Engine    EngineController
	Jobs      JobController
	Spooler   printing.Spooler
	Config    *config.Config
	Logger    logger.Logger
	lifecycle Lifecycle
}

// NewHandler wires the control surface.
func NewHandler(eng EngineController, jobs JobController, spooler printing.Spooler, cfg *config.Config, log logger.Logger, lc Lifecycle) *Handler {
	return &Handler{
		Engine:    eng,
		Jobs:      jobs,
		Spooler:   spooler,
		Config:    cfg,
		Logger:    log,
		lifecycle: lc,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// RegisterRoutes mounts the control API under /api/v1. Middleware passed
// here guards the API group only, leaving /health and /metrics open.
func (h *Handler) RegisterRoutes(router *gin.Engine, auth ...gin.HandlerFunc) {
	v1 := router.Group("/api/v1", auth...)
	{
		v1.GET("/status", h.GetStatus)
		v1.GET("/stats", h.GetStats)

		printer := v1.Group("/printer")
		{
			printer.GET("/status", h.GetPrinterStatus)
			printer.GET("/jobs", h.ListJobs)
			printer.GET("/jobs/:id", h.GetJob)
			printer.POST("/jobs/:id/cancel", h.CancelJob)
		}

		service := v1.Group("/service")
		{
			service.POST("/stop", h.StopService)
			service.POST("/restart", h.RestartService)
		}
	}
}

// StatusResponse is the aggregate service view: the loop state, the
// counters, and the effective mail/print configuration.
type StatusResponse struct {
	Running bool            `json:"running"`
	Stats   engine.Snapshot `json:"stats"`
	Config  StatusConfig    `json:"config"`
}

type StatusConfig struct {
	EmailServer   string `json:"email_server"`
	Folder        string `json:"folder"`
	Printer       string `json:"printer"`
	CheckInterval string `json:"check_interval"`
}

// PrinterStatusResponse reports spooler reachability, the printers it
// advertises and the depth of its active queue.
type PrinterStatusResponse struct {
	Connected      bool     `json:"connected"`
	ActivePrinter  string   `json:"active_printer,omitempty"`
	DefaultPrinter string   `json:"default_printer,omitempty"`
	Printers       []string `json:"printers,omitempty"`
	QueuedJobs     int      `json:"queued_jobs"`
	Error          string   `json:"error,omitempty"`
}

// GetStatus returns the running flag, counters and effective config.
func (h *Handler) GetStatus(c *gin.Context) {
	printer := h.Jobs.ActivePrinter()
	if printer == "" {
		printer = h.Config.Printing.PrinterName
	}

	c.JSON(http.StatusOK, StatusResponse{
		Running: h.Engine.Running(),
		Stats:   h.Engine.Stats().Snapshot(),
		Config: StatusConfig{
			EmailServer:   h.Config.Email.Server,
			Folder:        h.Config.Email.Folder,
			Printer:       printer,
			CheckInterval: h.Engine.CheckInterval().String(),
		},
	})
}

// GetStats returns the pipeline counters and uptime.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Stats().Snapshot())
}

// GetPrinterStatus pings the spooler and lists its printers. A failed
// ping is reported in the payload, not as an HTTP error: the control
// surface stays reachable when the spooler is not.
func (h *Handler) GetPrinterStatus(c *gin.Context) {
	resp := PrinterStatusResponse{ActivePrinter: h.Jobs.ActivePrinter()}

	if err := h.Spooler.Ping(c.Request.Context()); err != nil {
		resp.Error = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.Connected = true

	printers, err := h.Spooler.Printers(c.Request.Context())
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Printers = printers
	}
	if name, err := h.Spooler.DefaultPrinter(c.Request.Context()); err == nil {
		resp.DefaultPrinter = name
	}
	if jobs, err := h.Spooler.Jobs(c.Request.Context()); err == nil {
		resp.QueuedJobs = len(jobs)
	}
	c.JSON(http.StatusOK, resp)
}

// ListJobs returns tracked print jobs in submission order. Job history
// is ephemeral; a restart clears it.
func (h *Handler) ListJobs(c *gin.Context) {
	jobs := h.Jobs.Jobs()
	if jobs == nil {
		jobs = []printing.PrintJob{}
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob returns one tracked job by spooler id.
func (h *Handler) GetJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	job, ok := h.Jobs.Job(id)
	if !ok {
		h.HandleError(c, errors.ErrNotFound.WithDetail("job_id", id))
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob asks the spooler to cancel a tracked job.
func (h *Handler) CancelJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := h.Jobs.CancelJob(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Logger.InfowCtx(c.Request.Context(), "Print job canceled via API", "job_id", id)
	c.JSON(http.StatusOK, gin.H{"job_id": id, "state": printing.JobStateCanceled})
}

// StopService stops the polling loop and then shuts the process down.
// The in-flight cycle, including any running print attempt, finishes
// first.
func (h *Handler) StopService(c *gin.Context) {
	h.Logger.InfowCtx(c.Request.Context(), "Stop requested via API")
	h.Engine.Stop()

	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})

	if h.lifecycle.Shutdown != nil {
		go h.lifecycle.Shutdown()
	}
}

// RestartService asks for a graceful reload. The process exits the same
// way a termination signal takes it down; a supervisor (systemd or
// similar) is expected to start a fresh one.
func (h *Handler) RestartService(c *gin.Context) {
	if h.lifecycle.Reload == nil {
		h.HandleError(c, errors.ErrServiceUnavailable.WithDetail("reason", "restart not supported in this process"))
		return
	}

	h.Logger.InfowCtx(c.Request.Context(), "Restart requested via API")
	if err := h.lifecycle.Reload(); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "restarting"})
}
