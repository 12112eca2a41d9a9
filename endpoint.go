package bugsnag_notifier

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint represents a parsed collector URL
type Endpoint struct {
	String string
	Scheme string
	Host   string
	Port   int
	Path   string
}

// ParseEndpoint parses and validates a collector URL
func ParseEndpoint(raw string) (*Endpoint, error) {
	if raw == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("the \"%s\" endpoint is invalid: %w", raw, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("the scheme of the \"%s\" endpoint must be either \"http\" or \"https\"", raw)
	}
	if parsedURL.Hostname() == "" {
		return nil, fmt.Errorf("the \"%s\" endpoint must contain a host", raw)
	}
	if parsedURL.User != nil {
		return nil, fmt.Errorf("the \"%s\" endpoint must not contain credentials", raw)
	}

	port := 80
	if parsedURL.Scheme == "https" {
		port = 443
	}
	if parsedURL.Port() != "" {
		portNum, err := strconv.Atoi(parsedURL.Port())
		if err != nil || portNum <= 0 || portNum > 65535 {
			return nil, fmt.Errorf("the \"%s\" endpoint has an invalid port", raw)
		}
		port = portNum
	}

	return &Endpoint{
		String: raw,
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Hostname(),
		Port:   port,
		Path:   parsedURL.Path,
	}, nil
}

// URL returns the normalized endpoint URL
func (e *Endpoint) URL() string {
	u := fmt.Sprintf("%s://%s", e.Scheme, e.Host)

	// Add port if non-standard
	if (e.Scheme == "http" && e.Port != 80) || (e.Scheme == "https" && e.Port != 443) {
		u += fmt.Sprintf(":%d", e.Port)
	}

	if e.Path != "" && e.Path != "/" {
		u += strings.TrimSuffix(e.Path, "/")
	}

	return u
}
