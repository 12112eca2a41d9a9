package bugsnag_notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	rrerrors "github.com/roadrunner-server/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConfigurer struct {
	section *Config
}

func (c *fakeConfigurer) UnmarshalKey(name string, out interface{}) error {
	if name != PluginName {
		return errors.New("unknown section")
	}
	*out.(*Config) = *c.section
	return nil
}

func (c *fakeConfigurer) Has(name string) bool {
	return c.section != nil && name == PluginName
}

type fakeLogger struct{}

func (fakeLogger) NamedLogger(string) *zap.Logger {
	return zap.NewNop()
}

type collector struct {
	bodies [][]byte
}

func (c *collector) serve(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		c.bodies = append(c.bodies, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPluginDisabled(t *testing.T) {
	p := &Plugin{runtime: newFakeRuntime()}

	err := p.Init(&fakeConfigurer{}, fakeLogger{})
	assert.True(t, rrerrors.Is(rrerrors.Disabled, err))

	err = p.Init(&fakeConfigurer{section: &Config{APIKey: testAPIKey}}, fakeLogger{})
	assert.True(t, rrerrors.Is(rrerrors.Disabled, err))
}

func TestPluginInvalidConfig(t *testing.T) {
	p := &Plugin{runtime: newFakeRuntime()}

	err := p.Init(&fakeConfigurer{section: &Config{Enabled: true}}, fakeLogger{})
	require.Error(t, err)
	assert.False(t, rrerrors.Is(rrerrors.Disabled, err))
}

func TestPluginLifecycle(t *testing.T) {
	c := &collector{}
	server := c.serve(t)

	rt := newFakeRuntime()
	var previous []error
	rt.exceptionHandler = func(err error) { previous = append(previous, err) }

	p := &Plugin{runtime: rt}
	require.NoError(t, p.Init(&fakeConfigurer{section: &Config{
		Enabled:       true,
		APIKey:        testAPIKey,
		Endpoints:     EndpointsConfig{Notify: server.URL},
		ChainPrevious: true,
	}}, fakeLogger{}))

	assert.Equal(t, PluginName, p.Name())
	assert.Len(t, p.Provides(), 1)
	assert.Len(t, p.MetricsCollector(), 1)

	errCh := p.Serve()
	select {
	case err := <-errCh:
		t.Fatalf("unexpected serve error: %v", err)
	default:
	}

	require.NotNil(t, rt.exceptionHandler)
	rt.exceptionHandler(errors.New("Something broke"))
	assert.Len(t, previous, 1)

	p.Reporter().NotifyError(errors.New("handled"))
	assert.Empty(t, c.bodies)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	require.Len(t, c.bodies, 1)
	payload := sendCall{body: c.bodies[0]}.payload(t)
	assert.Len(t, payload.Events, 2)
}

func TestPluginMetricsRegister(t *testing.T) {
	p := &Plugin{runtime: newFakeRuntime()}
	require.NoError(t, p.Init(&fakeConfigurer{section: &Config{Enabled: true, APIKey: testAPIKey}}, fakeLogger{}))

	registry := prometheus.NewRegistry()
	for _, c := range p.MetricsCollector() {
		require.NoError(t, registry.Register(c))
	}

	p.notifier.Notify(namedReport("Name"))
	families, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, family := range families {
		if family.GetName() == "rr_bugsnag_queued_reports_total" {
			found = true
			assert.Equal(t, float64(1), family.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestRPC(t *testing.T) {
	c := &collector{}
	server := c.serve(t)

	p := &Plugin{runtime: newFakeRuntime()}
	require.NoError(t, p.Init(&fakeConfigurer{section: &Config{
		Enabled:   true,
		APIKey:    testAPIKey,
		Endpoints: EndpointsConfig{Notify: server.URL},
	}}, fakeLogger{}))

	rpc := p.RPC().(*RPC)

	var result NotifyResult
	require.NoError(t, rpc.Notify(&RPCReport{
		ErrorClass: "RuntimeException",
		Message:    "Something broke",
		Severity:   "warning",
		User:       map[string]any{"id": "42"},
	}, &result))
	assert.True(t, result.Queued)
	assert.NotEmpty(t, result.ReportID)

	require.NoError(t, rpc.Notify(&RPCReport{}, &result))
	assert.False(t, result.Queued)
	assert.NotEmpty(t, result.Error)

	var ok bool
	require.NoError(t, rpc.Flush(true, &ok))
	assert.True(t, ok)

	require.Len(t, c.bodies, 1)
	payload := sendCall{body: c.bodies[0]}.payload(t)
	require.Len(t, payload.Events, 1)
	assert.Equal(t, "warning", payload.Events[0]["severity"])
	assert.Equal(t, map[string]any{"type": reasonUserSpecified}, payload.Events[0]["severityReason"])
	assert.Equal(t, map[string]any{"id": "42"}, payload.Events[0]["user"])
}

func TestRPCNotInitialized(t *testing.T) {
	rpc := NewRPC(&Plugin{}, zap.NewNop())

	var result NotifyResult
	assert.Error(t, rpc.Notify(&RPCReport{Message: "x"}, &result))
	var ok bool
	assert.Error(t, rpc.Flush(true, &ok))
}
