package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DeepLFreeEndpoint serves keys ending in ":fx".
	DeepLFreeEndpoint = "https://api-free.deepl.com/v2/translate"
	// DeepLProEndpoint serves paid keys.
	DeepLProEndpoint = "https://api.deepl.com/v2/translate"
)

// DeepLAdapter talks to the DeepL v2 API. Credentials are the auth key.
// Batches are sent natively by repeating the text parameter; results come
// back in request order.
type DeepLAdapter struct {
	// BaseURL overrides the endpoint chosen from the key.
	BaseURL string
}

func (a *DeepLAdapter) ID() string                 { return DeepL }
func (a *DeepLAdapter) Name() string               { return "DeepL" }
func (a *DeepLAdapter) BatchMode() BatchMode       { return BatchNative }
func (a *DeepLAdapter) PacingDelay() time.Duration { return defaultPacing }

func (a *DeepLAdapter) endpoint(key string) string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	if strings.HasSuffix(key, ":fx") {
		return DeepLFreeEndpoint
	}
	return DeepLProEndpoint
}

func (a *DeepLAdapter) BuildRequest(text string, cfg Config) (*Request, error) {
	if text == "" {
		return nil, configErrorf("%s: text is empty", DeepL)
	}
	return a.build([]string{text}, cfg)
}

func (a *DeepLAdapter) BuildBatchRequest(texts []string, cfg Config) (*Request, error) {
	if len(texts) == 0 {
		return nil, configErrorf("%s: no texts to translate", DeepL)
	}
	return a.build(texts, cfg)
}

func (a *DeepLAdapter) build(texts []string, cfg Config) (*Request, error) {
	key := strings.TrimSpace(cfg.Credential)
	if key == "" {
		return nil, configErrorf("%s: auth key is not set", DeepL)
	}
	target, err := deeplLanguages.target(cfg.TargetLang)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("auth_key", key)
	for _, t := range texts {
		form.Add("text", t)
	}
	if source := deeplLanguages.source(cfg.SourceLang); source != "" {
		form.Set("source_lang", source)
	}
	form.Set("target_lang", target)

	return &Request{
		Method: http.MethodPost,
		URL:    a.endpoint(key),
		Header: formHeader(),
		Body:   []byte(form.Encode()),
	}, nil
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
	Message string `json:"message"`
}

// deeplReason maps DeepL HTTP statuses to their causes.
func deeplReason(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusForbidden:
		return "authorization failed"
	case http.StatusNotFound:
		return "endpoint not found"
	case http.StatusRequestEntityTooLarge:
		return "request too large"
	case http.StatusTooManyRequests:
		return "rate limited"
	case 456:
		return "quota exceeded"
	}
	if status >= 500 {
		return "service unavailable"
	}
	return ""
}

func (a *DeepLAdapter) decode(status int, body []byte) (*deeplResponse, error) {
	var resp deeplResponse
	jsonErr := json.Unmarshal(body, &resp)
	if status < 200 || status >= 300 {
		pe := &ProviderError{
			Provider: DeepL,
			Status:   status,
			Code:     strconv.Itoa(status),
			Reason:   deeplReason(status),
		}
		if jsonErr == nil {
			pe.Message = resp.Message
		} else {
			pe.Message = truncate(strings.TrimSpace(string(body)), 200)
		}
		return nil, pe
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", DeepL, jsonErr)
	}
	return &resp, nil
}

func (a *DeepLAdapter) ParseResponse(status int, body []byte) (string, error) {
	resp, err := a.decode(status, body)
	if err != nil {
		return "", err
	}
	if len(resp.Translations) == 0 || resp.Translations[0].Text == "" {
		return "", ErrEmptyResult
	}
	return resp.Translations[0].Text, nil
}

// ParseBatchResponse maps translations to texts by position.
func (a *DeepLAdapter) ParseBatchResponse(status int, body []byte, texts []string) (map[string]string, error) {
	resp, err := a.decode(status, body)
	if err != nil {
		return nil, err
	}
	results := make(map[string]string, len(texts))
	for i, tr := range resp.Translations {
		if i >= len(texts) || tr.Text == "" {
			continue
		}
		results[texts[i]] = tr.Text
	}
	if len(results) == 0 {
		return nil, ErrEmptyResult
	}
	return results, nil
}
