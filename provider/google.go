package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleEndpoint is the Cloud Translation v2 endpoint.
const GoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"

// GoogleAdapter talks to Google Cloud Translation (v2, API key).
// Credentials are the bare API key. Batches are sent natively by repeating
// the q parameter.
type GoogleAdapter struct {
	// BaseURL overrides GoogleEndpoint.
	BaseURL string
}

func (a *GoogleAdapter) ID() string                 { return Google }
func (a *GoogleAdapter) Name() string               { return "Google Translate" }
func (a *GoogleAdapter) BatchMode() BatchMode       { return BatchNative }
func (a *GoogleAdapter) PacingDelay() time.Duration { return defaultPacing }

func (a *GoogleAdapter) endpoint() string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	return GoogleEndpoint
}

func (a *GoogleAdapter) BuildRequest(text string, cfg Config) (*Request, error) {
	if text == "" {
		return nil, configErrorf("%s: text is empty", Google)
	}
	return a.build([]string{text}, cfg)
}

func (a *GoogleAdapter) BuildBatchRequest(texts []string, cfg Config) (*Request, error) {
	if len(texts) == 0 {
		return nil, configErrorf("%s: no texts to translate", Google)
	}
	return a.build(texts, cfg)
}

func (a *GoogleAdapter) build(texts []string, cfg Config) (*Request, error) {
	key := strings.TrimSpace(cfg.Credential)
	if key == "" {
		return nil, configErrorf("%s: API key is not set", Google)
	}
	target, err := googleLanguages.target(cfg.TargetLang)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("key", key)
	for _, t := range texts {
		q.Add("q", t)
	}
	if source := googleLanguages.source(cfg.SourceLang); source != "" {
		q.Set("source", source)
	}
	q.Set("target", target)
	q.Set("format", "text")

	return &Request{
		Method: http.MethodGet,
		URL:    a.endpoint() + "?" + q.Encode(),
		Header: make(http.Header),
	}, nil
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
			Original       string `json:"original"`
		} `json:"translations"`
	} `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (a *GoogleAdapter) decode(status int, body []byte) (*googleResponse, error) {
	var resp googleResponse
	jsonErr := json.Unmarshal(body, &resp)
	if jsonErr == nil && resp.Error != nil {
		return nil, &ProviderError{
			Provider: Google,
			Status:   status,
			Code:     resp.Error.Status,
			Reason:   googleReason(status),
			Message:  resp.Error.Message,
		}
	}
	if status < 200 || status >= 300 {
		pe := httpStatusError(Google, status, body)
		pe.Reason = googleReason(status)
		return nil, pe
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", Google, jsonErr)
	}
	return &resp, nil
}

func googleReason(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request or API key"
	case http.StatusForbidden:
		return "API key not authorized or quota exceeded"
	case http.StatusTooManyRequests:
		return "rate limited"
	}
	if status >= 500 {
		return "service unavailable"
	}
	return ""
}

func (a *GoogleAdapter) ParseResponse(status int, body []byte) (string, error) {
	resp, err := a.decode(status, body)
	if err != nil {
		return "", err
	}
	if len(resp.Data.Translations) == 0 || resp.Data.Translations[0].TranslatedText == "" {
		return "", ErrEmptyResult
	}
	return resp.Data.Translations[0].TranslatedText, nil
}

// ParseBatchResponse maps each translation back to its source text by the
// "original" field when present, otherwise by position.
func (a *GoogleAdapter) ParseBatchResponse(status int, body []byte, texts []string) (map[string]string, error) {
	resp, err := a.decode(status, body)
	if err != nil {
		return nil, err
	}
	results := make(map[string]string, len(texts))
	for i, tr := range resp.Data.Translations {
		if tr.TranslatedText == "" {
			continue
		}
		switch {
		case tr.Original != "":
			results[tr.Original] = tr.TranslatedText
		case i < len(texts):
			results[texts[i]] = tr.TranslatedText
		}
	}
	if len(results) == 0 {
		return nil, ErrEmptyResult
	}
	return results, nil
}
