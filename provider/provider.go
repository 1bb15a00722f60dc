// Package provider implements adapters for the machine translation services
// tskit can talk to: Google Translate, Baidu Translate, DeepL and Youdao.
//
// An Adapter only describes requests and decodes responses. It never
// performs I/O itself; Send and the translate package do the round trips.
// This keeps every adapter testable against canned bodies and lets the
// batch orchestrator decide pacing and cancellation.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	Google = "google"
	Baidu  = "baidu"
	DeepL  = "deepl"
	Youdao = "youdao"
)

// BatchMode tells the orchestrator how a provider translates many texts.
type BatchMode int

const (
	// BatchSequential providers have no batch endpoint; texts are sent one
	// request at a time with a pacing delay in between.
	BatchSequential BatchMode = iota
	// BatchNative providers accept all texts in one fan-out request.
	BatchNative
)

func (m BatchMode) String() string {
	if m == BatchNative {
		return "native"
	}
	return "sequential"
}

// Config is the per-provider configuration used to build requests.
type Config struct {
	// Credential is the API key, or "<id>:<secret>" for signing providers.
	Credential string `json:"credential,omitempty"`
	// SourceLang is the internal source tag ("en", "zh-CN", "auto").
	SourceLang string `json:"sourceLang,omitempty"`
	// TargetLang is the internal target tag.
	TargetLang string `json:"targetLang,omitempty"`
}

// Request is a fully formed outbound request description.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// HTTPRequest converts r into an *http.Request bound to ctx.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Adapter is the capability set every provider implements.
type Adapter interface {
	// ID is the stable identifier used in settings ("google", "baidu", ...).
	ID() string
	// Name is the display name.
	Name() string
	// BatchMode reports whether BuildBatchRequest is supported.
	BatchMode() BatchMode
	// PacingDelay is the fixed delay before each sequential batch item.
	PacingDelay() time.Duration

	// BuildRequest describes a single-text translation request.
	BuildRequest(text string, cfg Config) (*Request, error)
	// ParseResponse decodes the response to a BuildRequest request.
	ParseResponse(status int, body []byte) (string, error)

	// BuildBatchRequest describes one request translating all texts.
	// Sequential adapters return ErrBatchUnsupported.
	BuildBatchRequest(texts []string, cfg Config) (*Request, error)
	// ParseBatchResponse decodes a batch response into results keyed by
	// source text. texts must be the slice passed to BuildBatchRequest.
	ParseBatchResponse(status int, body []byte, texts []string) (map[string]string, error)
}

const (
	strictPacing  = time.Second
	defaultPacing = 100 * time.Millisecond
)

// formHeader is the header set of form-encoded POST requests.
func formHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return h
}
