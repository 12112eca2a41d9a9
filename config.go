package bugsnag_notifier

import (
	"os"
	"time"

	"github.com/roadrunner-server/errors"
)

const (
	// DefaultNotifyEndpoint is the collector used when endpoints.notify is not set
	DefaultNotifyEndpoint = "https://notify.bugsnag.com"

	// DefaultMaxPayloadSize is the largest serialized body sent in one flush
	DefaultMaxPayloadSize = 1000000
)

// Config represents the plugin configuration
type Config struct {
	// Enable/disable the plugin
	Enabled bool `mapstructure:"enabled"`

	// Project API key sent with every payload
	APIKey string `mapstructure:"api_key"`

	// Collector endpoints
	Endpoints EndpointsConfig `mapstructure:"endpoints"`

	// Release stage of the running application
	ReleaseStage string `mapstructure:"release_stage"`
	// Stages allowed to notify, empty means every stage
	NotifyReleaseStages []string `mapstructure:"notify_release_stages"`

	// Application details attached to each report
	AppVersion string `mapstructure:"app_version"`
	AppType    string `mapstructure:"app_type"`
	Hostname   string `mapstructure:"hostname"`

	// Error kinds reported by the error handler, empty means all kinds
	ErrorReportingLevel []string `mapstructure:"error_reporting_level"`

	// Call the previously installed handlers after reporting
	ChainPrevious bool `mapstructure:"chain_previous"`

	// Maximum serialized payload size in bytes
	MaxPayloadSize int `mapstructure:"max_payload_size"`

	// HTTP transport settings
	Transport TransportConfig `mapstructure:"transport"`
}

// EndpointsConfig contains the collector URLs
type EndpointsConfig struct {
	Notify string `mapstructure:"notify"`
}

// TransportConfig contains HTTP transport settings
type TransportConfig struct {
	// Request timeout, the only timeout applied to a flush
	Timeout time.Duration `mapstructure:"timeout"`
	// SSL verification
	SSLVerify *bool `mapstructure:"ssl_verify"`
	// Proxy URL
	Proxy string `mapstructure:"proxy"`
}

// InitDefaults initializes default configuration values
func (cfg *Config) InitDefaults() {
	if cfg.Endpoints.Notify == "" {
		cfg.Endpoints.Notify = DefaultNotifyEndpoint
	}
	if cfg.ReleaseStage == "" {
		cfg.ReleaseStage = "production"
	}
	if cfg.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Hostname = host
		}
	}
	if cfg.MaxPayloadSize == 0 {
		cfg.MaxPayloadSize = DefaultMaxPayloadSize
	}

	if cfg.Transport.Timeout == 0 {
		cfg.Transport.Timeout = 10 * time.Second
	}
	if cfg.Transport.SSLVerify == nil {
		verify := true
		cfg.Transport.SSLVerify = &verify
	}
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	const op = errors.Op("bugsnag_config_validate")

	if cfg.APIKey == "" {
		return errors.E(op, errors.Str("api_key is required"))
	}

	if cfg.MaxPayloadSize < 0 {
		return errors.E(op, errors.Str("max_payload_size must not be negative"))
	}

	if _, err := ParseEndpoint(cfg.Endpoints.Notify); err != nil {
		return errors.E(op, err)
	}

	if _, err := ParseErrorKinds(cfg.ErrorReportingLevel); err != nil {
		return errors.E(op, err)
	}

	return nil
}

// ReportingLevel returns the configured error reporting threshold
func (cfg *Config) ReportingLevel() ErrorKind {
	level, err := ParseErrorKinds(cfg.ErrorReportingLevel)
	if err != nil {
		return KindAll
	}
	return level
}

// ShouldNotifyStage reports whether the release stage may send reports
func (cfg *Config) ShouldNotifyStage() bool {
	if len(cfg.NotifyReleaseStages) == 0 {
		return true
	}
	for _, stage := range cfg.NotifyReleaseStages {
		if stage == cfg.ReleaseStage {
			return true
		}
	}
	return false
}
