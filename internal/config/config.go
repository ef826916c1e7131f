package config

import (
	"time"
)

type Config struct {
	Email          EmailConfig
	Filters        FilterConfig
	Printing       PrintingConfig
	Server         ServerConfig
	Logging        LoggingConfig
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type EmailConfig struct {
	Server               string   `mapstructure:"server"`
	Port                 int      `mapstructure:"port"`
	Username             string   `mapstructure:"username"`
	Password             string   `mapstructure:"password"`
	UseSSL               bool     `mapstructure:"use_ssl"`
	Folder               string   `mapstructure:"folder"`
	CheckIntervalSeconds int      `mapstructure:"check_interval_seconds"`
	DeleteAfterPrint     bool     `mapstructure:"delete_after_print"`
	AllowedSenders       []string `mapstructure:"allowed_senders"`
	BlockedSenders       []string `mapstructure:"blocked_senders"`
}

func (c EmailConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

type FilterConfig struct {
	SubjectKeywords        []string       `mapstructure:"subject_keywords"`
	MaxAttachmentSize      int64          `mapstructure:"max_attachment_size"`
	AllowedAttachmentTypes []string       `mapstructure:"allowed_attachment_types"`
	Rule                   string         `mapstructure:"rule"`
	Fallback               FallbackConfig `mapstructure:"fallback"`
}

type FallbackConfig struct {
	OnError string `mapstructure:"on_error"` // "allow" or "deny" (default: "deny")
}

type PrintingConfig struct {
	PrinterName         string             `mapstructure:"printer_name"`
	PrintAttachments    bool               `mapstructure:"print_attachments"`
	PrintBody           bool               `mapstructure:"print_body"`
	PrintHTML           bool               `mapstructure:"print_html"`
	MaxPagesPerDocument int                `mapstructure:"max_pages_per_document"`
	Copies              int                `mapstructure:"copies"`
	Options             PrintOptionsConfig `mapstructure:"options"`
	Spooler             SpoolerConfig      `mapstructure:"spooler"`
	Wait                WaitConfig         `mapstructure:"wait"`
}

type PrintOptionsConfig struct {
	PaperSize   string `mapstructure:"paper_size"`
	Orientation string `mapstructure:"orientation"`
	Quality     string `mapstructure:"quality"`
	Duplex      string `mapstructure:"duplex"`
	ColorMode   string `mapstructure:"color_mode"`
}

type SpoolerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type WaitConfig struct {
	BaseSeconds          int `mapstructure:"base_seconds"`
	PerAttachmentSeconds int `mapstructure:"per_attachment_seconds"`
	MaxSeconds           int `mapstructure:"max_seconds"`
	JobTimeoutSeconds    int `mapstructure:"job_timeout_seconds"`
}

type ServerConfig struct {
	Host                string          `mapstructure:"host"`
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  int             `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int             `mapstructure:"write_timeout_seconds"`
	APIKey              string          `mapstructure:"api_key"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
