package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// Doer executes HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client with the given timeout. An empty proxyURL
// uses HTTP_PROXY/HTTPS_PROXY from the environment.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// Send performs r and returns the status and body. Transport failures,
// including context cancellation, are returned as *NetworkError.
func Send(ctx context.Context, client Doer, providerID string, r *Request) (int, []byte, error) {
	req, err := r.HTTPRequest(ctx)
	if err != nil {
		return 0, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Provider: providerID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Provider: providerID, Err: fmt.Errorf("reading response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

// Translate performs one single-text round trip through a.
func Translate(ctx context.Context, client Doer, a Adapter, text string, cfg Config) (string, error) {
	r, err := a.BuildRequest(text, cfg)
	if err != nil {
		return "", err
	}
	status, body, err := Send(ctx, client, a.ID(), r)
	if err != nil {
		return "", err
	}
	return a.ParseResponse(status, body)
}

// TranslateBatch performs one fan-out round trip through a native batch
// adapter. Sequential adapters fail with ErrBatchUnsupported.
func TranslateBatch(ctx context.Context, client Doer, a Adapter, texts []string, cfg Config) (map[string]string, error) {
	if a.BatchMode() != BatchNative {
		return nil, ErrBatchUnsupported
	}
	r, err := a.BuildBatchRequest(texts, cfg)
	if err != nil {
		return nil, err
	}
	status, body, err := Send(ctx, client, a.ID(), r)
	if err != nil {
		return nil, err
	}
	return a.ParseBatchResponse(status, body, texts)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
