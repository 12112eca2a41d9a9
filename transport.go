package bugsnag_notifier

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/roadrunner-server/errors"
	"go.uber.org/zap"
)

// maxResponseBody bounds how much of an error response is kept for the warning
const maxResponseBody = 1024

// HTTPTransport handles HTTP communication with the collector
type HTTPTransport struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(config *TransportConfig, logger *zap.Logger) (*HTTPTransport, error) {
	const op = errors.Op("bugsnag_transport_init")

	sslVerify := config.SSLVerify == nil || *config.SSLVerify

	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !sslVerify, //nolint:gosec
		},
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, errors.E(op, errors.Errorf("invalid proxy URL: %v", err))
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: logger,
	}, nil
}

// Send implements Transport. Any non-2xx response is returned as *StatusError.
func (t *HTTPTransport) Send(method, endpoint string, headers map[string]string, body []byte) (*Status, error) {
	req, err := http.NewRequest(method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", notifierInfo.Name+"/"+notifierInfo.Version)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)

		t.logger.Debug("Payload delivered",
			zap.String("url", endpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.Int("payload_size", len(body)))
		return &Status{Code: resp.StatusCode}, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
}

// Close closes the transport
func (t *HTTPTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	return nil
}
