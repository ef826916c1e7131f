package config

import (
	"fmt"
	"strings"

	"github.com/adaoss/Mail2printer/pkg/rules"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks everything that must hold before the service starts.
// Missing mail credentials are the only configuration failure users hit in
// practice, so those messages name the env var alternative.
func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateEmail(cfg.Email); err != nil {
		errors = append(errors, err)
	}

	if err := validateFilters(cfg.Filters); err != nil {
		errors = append(errors, err)
	}

	if err := validatePrinting(cfg.Printing); err != nil {
		errors = append(errors, err)
	}

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateRetry(cfg.Retry); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateEmail(cfg EmailConfig) error {
	if cfg.Server == "" {
		return &ValidationError{
			Field:   "email.server",
			Message: "mail server host is required (or set EMAIL_SERVER)",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "email.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.Username == "" {
		return &ValidationError{
			Field:   "email.username",
			Message: "mailbox username is required (or set EMAIL_USERNAME)",
		}
	}

	if cfg.Password == "" {
		return &ValidationError{
			Field:   "email.password",
			Message: "mailbox password is required (or set EMAIL_PASSWORD)",
		}
	}

	if cfg.Folder == "" {
		return &ValidationError{
			Field:   "email.folder",
			Message: "mailbox folder is required",
		}
	}

	if cfg.CheckIntervalSeconds < 5 {
		return &ValidationError{
			Field:   "email.check_interval_seconds",
			Message: fmt.Sprintf("check interval must be at least 5 seconds, got %d", cfg.CheckIntervalSeconds),
		}
	}

	return nil
}

func validateFilters(cfg FilterConfig) error {
	if cfg.MaxAttachmentSize < 0 {
		return &ValidationError{
			Field:   "filters.max_attachment_size",
			Message: "max attachment size must be non-negative",
		}
	}

	for i, ext := range cfg.AllowedAttachmentTypes {
		if ext == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("filters.allowed_attachment_types[%d]", i),
				Message: "attachment type cannot be empty",
			}
		}
	}

	validOnError := map[string]bool{
		"allow": true, "deny": true,
	}
	if cfg.Fallback.OnError != "" && !validOnError[strings.ToLower(cfg.Fallback.OnError)] {
		return &ValidationError{
			Field:   "filters.fallback.on_error",
			Message: fmt.Sprintf("invalid on_error value: %s (valid: allow, deny)", cfg.Fallback.OnError),
		}
	}

	if strings.TrimSpace(cfg.Rule) != "" {
		evaluator, err := rules.NewEvaluator()
		if err != nil {
			return &ValidationError{
				Field:   "filters.rule",
				Message: fmt.Sprintf("rule evaluator unavailable: %v", err),
			}
		}
		if err := evaluator.ValidateFilterExpression(cfg.Rule); err != nil {
			return &ValidationError{
				Field:   "filters.rule",
				Message: err.Error(),
			}
		}
	}

	return nil
}

func validatePrinting(cfg PrintingConfig) error {
	if cfg.MaxPagesPerDocument < 1 {
		return &ValidationError{
			Field:   "printing.max_pages_per_document",
			Message: fmt.Sprintf("max pages must be at least 1, got %d", cfg.MaxPagesPerDocument),
		}
	}

	if cfg.Copies < 1 || cfg.Copies > 100 {
		return &ValidationError{
			Field:   "printing.copies",
			Message: fmt.Sprintf("copies must be between 1 and 100, got %d", cfg.Copies),
		}
	}

	validPaperSizes := map[string]bool{
		"a4": true, "letter": true, "legal": true,
	}
	if cfg.Options.PaperSize != "" && !validPaperSizes[strings.ToLower(cfg.Options.PaperSize)] {
		return &ValidationError{
			Field:   "printing.options.paper_size",
			Message: fmt.Sprintf("invalid paper size: %s (valid: a4, letter, legal)", cfg.Options.PaperSize),
		}
	}

	validOrientations := map[string]bool{
		"portrait": true, "landscape": true,
	}
	if cfg.Options.Orientation != "" && !validOrientations[strings.ToLower(cfg.Options.Orientation)] {
		return &ValidationError{
			Field:   "printing.options.orientation",
			Message: fmt.Sprintf("invalid orientation: %s (valid: portrait, landscape)", cfg.Options.Orientation),
		}
	}

	validQualities := map[string]bool{
		"draft": true, "normal": true, "high": true,
	}
	if cfg.Options.Quality != "" && !validQualities[strings.ToLower(cfg.Options.Quality)] {
		return &ValidationError{
			Field:   "printing.options.quality",
			Message: fmt.Sprintf("invalid quality: %s (valid: draft, normal, high)", cfg.Options.Quality),
		}
	}

	validDuplex := map[string]bool{
		"one-sided": true, "two-sided-long-edge": true, "two-sided-short-edge": true,
	}
	if cfg.Options.Duplex != "" && !validDuplex[strings.ToLower(cfg.Options.Duplex)] {
		return &ValidationError{
			Field:   "printing.options.duplex",
			Message: fmt.Sprintf("invalid duplex mode: %s (valid: one-sided, two-sided-long-edge, two-sided-short-edge)", cfg.Options.Duplex),
		}
	}

	validColorModes := map[string]bool{
		"color": true, "monochrome": true,
	}
	if cfg.Options.ColorMode != "" && !validColorModes[strings.ToLower(cfg.Options.ColorMode)] {
		return &ValidationError{
			Field:   "printing.options.color_mode",
			Message: fmt.Sprintf("invalid color mode: %s (valid: color, monochrome)", cfg.Options.ColorMode),
		}
	}

	if cfg.Spooler.Port < 1 || cfg.Spooler.Port > 65535 {
		return &ValidationError{
			Field:   "printing.spooler.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Spooler.Port),
		}
	}

	if cfg.Wait.BaseSeconds < 0 || cfg.Wait.PerAttachmentSeconds < 0 {
		return &ValidationError{
			Field:   "printing.wait",
			Message: "wait times must be non-negative",
		}
	}

	if cfg.Wait.MaxSeconds < cfg.Wait.BaseSeconds {
		return &ValidationError{
			Field:   "printing.wait.max_seconds",
			Message: "max wait must be greater than or equal to base wait",
		}
	}

	if cfg.Wait.JobTimeoutSeconds < 1 {
		return &ValidationError{
			Field:   "printing.wait.job_timeout_seconds",
			Message: "job timeout must be at least 1 second",
		}
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			return &ValidationError{
				Field:   "server.rate_limit.rps",
				Message: "rps must be positive when rate limiting is enabled",
			}
		}
		if cfg.RateLimit.Burst < 1 {
			return &ValidationError{
				Field:   "server.rate_limit.burst",
				Message: "burst must be at least 1 when rate limiting is enabled",
			}
		}
	}

	return nil
}

func validateRetry(cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   "retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   "retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}
