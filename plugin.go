package bugsnag_notifier

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/roadrunner-server/endure/v2/dep"
	"github.com/roadrunner-server/errors"
	"go.uber.org/zap"
)

const PluginName = "bugsnag"

// Plugin represents the main plugin structure
type Plugin struct {
	config    *Config
	logger    *zap.Logger
	metrics   *metricsCollector
	transport *HTTPTransport
	builder   *DefaultBuilder
	notifier  *syncNotifier
	handler   *Handler

	// Runtime the handlers are installed into, the process runtime when nil
	runtime Runtime
}

// Configurer interface for config plugin
type Configurer interface {
	UnmarshalKey(name string, out interface{}) error
	Has(name string) bool
}

// Logger interface for logger plugin
type Logger interface {
	NamedLogger(name string) *zap.Logger
}

// Reporter is provided to other plugins
type Reporter interface {
	NotifyError(err error, opts ...func(*Report)) string
	Flush()
}

// Init initializes the plugin
func (p *Plugin) Init(cfg Configurer, log Logger) error {
	const op = errors.Op("bugsnag_plugin_init")

	if !cfg.Has(PluginName) {
		return errors.E(op, errors.Disabled)
	}

	config := &Config{}
	if err := cfg.UnmarshalKey(PluginName, config); err != nil {
		return errors.E(op, err)
	}

	if !config.Enabled {
		return errors.E(op, errors.Disabled)
	}

	config.InitDefaults()
	if err := config.Validate(); err != nil {
		return errors.E(op, err)
	}

	p.config = config
	p.logger = log.NamedLogger(PluginName)
	p.metrics = newMetricsCollector()

	transport, err := NewHTTPTransport(&config.Transport, p.logger)
	if err != nil {
		return errors.E(op, err)
	}
	p.transport = transport

	queue := NewReportQueue(config, transport, p.logger, p.metrics)
	p.builder = NewDefaultBuilder(config)
	p.notifier = &syncNotifier{client: NewClient(config, queue, p.builder, p.logger)}

	if p.runtime == nil {
		p.runtime = Process()
	}
	if config.ChainPrevious {
		p.handler = RegisterChained(p.notifier, p.runtime, p.logger)
	} else {
		p.handler = RegisterExclusive(p.notifier, p.runtime, p.logger)
	}

	p.logger.Info("Bugsnag notifier plugin initialized",
		zap.String("endpoint", config.Endpoints.Notify),
		zap.String("release_stage", config.ReleaseStage),
		zap.Stringer("error_reporting_level", p.notifier.ErrorReportingLevel()),
		zap.Bool("chain_previous", config.ChainPrevious),
		zap.Int("max_payload_size", config.MaxPayloadSize))

	return nil
}

// Serve starts the plugin
func (p *Plugin) Serve() chan error {
	errCh := make(chan error, 1)

	if p.config == nil {
		errCh <- errors.E(errors.Op("bugsnag_plugin_serve"), errors.Str("plugin not initialized"))
	}

	return errCh
}

// Stop runs the shutdown handler so queued reports are delivered
func (p *Plugin) Stop(ctx context.Context) error {
	if p.handler == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.handler.OnShutdown()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("Plugin stop timed out, delivery continues in background")
		return ctx.Err()
	}

	if err := p.transport.Close(); err != nil {
		p.logger.Error("Error closing transport", zap.Error(err))
	}

	p.logger.Info("Bugsnag notifier plugin stopped")
	return nil
}

// Name returns the plugin name
func (p *Plugin) Name() string {
	return PluginName
}

// RPC returns the RPC interface
func (p *Plugin) RPC() interface{} {
	return NewRPC(p, p.logger)
}

// Provides returns the dependencies this plugin provides
func (p *Plugin) Provides() []*dep.Out {
	return []*dep.Out{
		dep.Bind((*Reporter)(nil), p.Reporter),
	}
}

// Reporter returns the reporter interface
func (p *Plugin) Reporter() Reporter {
	return p.notifier
}

// MetricsCollector exposes the delivery metrics
func (p *Plugin) MetricsCollector() []prometheus.Collector {
	return []prometheus.Collector{p.metrics}
}

// syncNotifier serializes access to the client for the plugin's concurrent
// callers (RPC, other plugins, goroutines of the process runtime)
type syncNotifier struct {
	mu     sync.Mutex
	client *Client
}

func (s *syncNotifier) ReportBuilder() ReportBuilder {
	return s.client.ReportBuilder()
}

func (s *syncNotifier) ErrorReportingLevel() ErrorKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.ErrorReportingLevel()
}

func (s *syncNotifier) Notify(report *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Notify(report)
}

func (s *syncNotifier) NotifyError(err error, opts ...func(*Report)) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.NotifyError(err, opts...)
}

func (s *syncNotifier) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Flush()
}
