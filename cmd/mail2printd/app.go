package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
	"github.com/adaoss/Mail2printer/internal/control"
	"github.com/adaoss/Mail2printer/internal/engine"
	"github.com/adaoss/Mail2printer/internal/logger"
	"github.com/adaoss/Mail2printer/internal/mailbox"
	"github.com/adaoss/Mail2printer/internal/mailparse"
	"github.com/adaoss/Mail2printer/internal/printing"
	"github.com/adaoss/Mail2printer/internal/render"
	"github.com/adaoss/Mail2printer/pkg/bootstrap"
	"github.com/adaoss/Mail2printer/pkg/health"
	"github.com/adaoss/Mail2printer/pkg/metrics"
	"github.com/adaoss/Mail2printer/pkg/middleware"
	"github.com/adaoss/Mail2printer/pkg/ratelimit"
	"github.com/adaoss/Mail2printer/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	prober         *bootstrap.Prober
	mailbox        mailbox.Client
	spooler        printing.Spooler
	orchestrator   *printing.Orchestrator
	engine         *engine.Engine
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		prober: bootstrap.NewProber(cfg, log),
		stopCh: make(chan struct{}),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initPipeline(ctx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "mail2printd")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	a.mailbox = mailbox.NewClient(a.Config.Email, a.Logger)
	if err := a.prober.ProbeMailbox(ctx, a.mailbox); err != nil {
		return err
	}

	ipp := printing.NewIPPSpooler(a.Config.Printing.Spooler, a.Logger)
	if a.Config.CircuitBreaker.Enabled {
		a.spooler = printing.NewCircuitBreakerSpooler(ipp, a.Config.CircuitBreaker)
	} else {
		a.spooler = ipp
	}

	// Spooler outages are survivable: the orchestrator falls back to lp
	// and the breaker reopens the IPP path once the spooler recovers.
	if err := a.prober.ProbeSpooler(ctx, a.spooler); err != nil {
		a.Logger.WarnwCtx(ctx, "Spooler not reachable at startup, continuing with lp fallback", "error", err)
	}

	renderer := render.NewHTMLRenderer(a.Config.Printing.Options, a.Logger)
	registry := printing.NewJobRegistry(constants.JobRegistryCapacity)
	fallback := printing.NewLPCommand(a.Logger)
	a.orchestrator = printing.NewOrchestrator(a.Config.Printing, a.spooler, fallback, renderer, registry, a.Logger)

	filters, err := engine.NewFilterChain(a.Config.Filters, a.Logger)
	if err != nil {
		return err
	}
	parser := mailparse.NewParser(a.Config.Filters.MaxAttachmentSize, a.Logger)

	a.engine = engine.New(a.Config, a.mailbox, parser, a.orchestrator, filters, a.Logger)
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("mail2printd"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.Server.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Server.RateLimit.RPS,
			Burst:           a.Config.Server.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Server.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Server.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := control.NewHandler(a.engine, a.orchestrator, a.spooler, a.Config, a.Logger, control.Lifecycle{
		Shutdown: a.requestStop,
		Reload:   a.requestReload,
	})
	handler.RegisterRoutes(router, middleware.APIKeyMiddleware(a.Config.Server.APIKey))

	metrics.RegisterEngineMetrics()
	metrics.RegisterPrintingMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterAPIMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMailboxChecker(a.mailbox))
	healthRegistry.Register(health.NewSpoolerChecker(a.spooler))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSeconds) * time.Second,
	}
	return nil
}

// requestStop is handed to the control API so POST /service/stop can take
// the whole process down after its response is written.
func (a *App) requestStop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// requestReload signals the process itself. serve treats SIGHUP like a
// termination signal, so the supervisor gets a clean exit to restart.
func (a *App) requestReload() error {
	return syscall.Kill(os.Getpid(), syscall.SIGHUP)
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		a.Logger.InfowCtx(ctx, "Control API listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	go func() {
		if err := a.engine.Run(ctx); err != nil {
			errChan <- fmt.Errorf("engine error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case <-a.stopCh:
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	a.engine.Stop()

	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		if a.mailbox != nil {
			if err := a.mailbox.Disconnect(); err != nil {
				errs = append(errs, fmt.Errorf("mailbox disconnect error: %w", err))
			}
		}

		return errs
	})
}
