package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults mirrors the documented default configuration tree. The file
// only needs to state what differs; credentials are the usual exception.
func setDefaults() {
	viper.SetDefault("email.port", 993)
	viper.SetDefault("email.use_ssl", true)
	viper.SetDefault("email.folder", "INBOX")
	viper.SetDefault("email.check_interval_seconds", 60)
	viper.SetDefault("email.delete_after_print", false)

	viper.SetDefault("filters.max_attachment_size", 10*1024*1024)
	viper.SetDefault("filters.allowed_attachment_types",
		[]string{"pdf", "doc", "docx", "txt", "jpg", "jpeg", "png"})
	viper.SetDefault("filters.fallback.on_error", "deny")

	viper.SetDefault("printing.print_attachments", true)
	viper.SetDefault("printing.print_body", true)
	viper.SetDefault("printing.print_html", true)
	viper.SetDefault("printing.max_pages_per_document", 50)
	viper.SetDefault("printing.copies", 1)
	viper.SetDefault("printing.options.paper_size", "a4")
	viper.SetDefault("printing.options.orientation", "portrait")
	viper.SetDefault("printing.options.quality", "normal")
	viper.SetDefault("printing.options.duplex", "one-sided")
	viper.SetDefault("printing.options.color_mode", "monochrome")
	viper.SetDefault("printing.spooler.host", "localhost")
	viper.SetDefault("printing.spooler.port", 631)
	viper.SetDefault("printing.wait.base_seconds", 5)
	viper.SetDefault("printing.wait.per_attachment_seconds", 2)
	viper.SetDefault("printing.wait.max_seconds", 30)
	viper.SetDefault("printing.wait.job_timeout_seconds", 30)

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 10)
	viper.SetDefault("server.write_timeout_seconds", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_interval", "1s")
	viper.SetDefault("retry.max_interval", "10s")
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.max_elapsed_time", "30s")
}

func bindEnvVariables() {
	viper.BindEnv("email.server", "EMAIL_SERVER")
	viper.BindEnv("email.port", "EMAIL_PORT")
	viper.BindEnv("email.username", "EMAIL_USERNAME")
	viper.BindEnv("email.password", "EMAIL_PASSWORD")
	viper.BindEnv("email.folder", "EMAIL_FOLDER")
	viper.BindEnv("email.check_interval_seconds", "EMAIL_CHECK_INTERVAL_SECONDS")

	viper.BindEnv("printing.printer_name", "PRINTING_PRINTER_NAME")
	viper.BindEnv("printing.spooler.host", "PRINTING_SPOOLER_HOST")
	viper.BindEnv("printing.spooler.port", "PRINTING_SPOOLER_PORT")
	viper.BindEnv("printing.spooler.username", "PRINTING_SPOOLER_USERNAME")
	viper.BindEnv("printing.spooler.password", "PRINTING_SPOOLER_PASSWORD")

	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.api_key", "SERVER_API_KEY")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if senders := viper.GetString("EMAIL_ALLOWED_SENDERS"); senders != "" {
		cfg.Email.AllowedSenders = splitCommaList(senders)
	}

	if senders := viper.GetString("EMAIL_BLOCKED_SENDERS"); senders != "" {
		cfg.Email.BlockedSenders = splitCommaList(senders)
	}

	if keywords := viper.GetString("FILTERS_SUBJECT_KEYWORDS"); keywords != "" {
		cfg.Filters.SubjectKeywords = splitCommaList(keywords)
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
