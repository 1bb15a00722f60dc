package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// YoudaoEndpoint is the Youdao text translation endpoint.
const YoudaoEndpoint = "https://openapi.youdao.com/api"

// youdaoErrors maps Youdao errorCode values to their causes.
var youdaoErrors = map[string]string{
	"101": "missing required parameter",
	"102": "unsupported language",
	"103": "text too long",
	"104": "unsupported API type",
	"105": "unsupported signature type",
	"106": "unsupported response type",
	"107": "unsupported transport encryption",
	"108": "invalid application key",
	"110": "no instance bound to the application",
	"111": "invalid developer account",
	"113": "query is empty",
	"202": "bad signature",
	"203": "client IP not allowed",
	"205": "application platform mismatch",
	"206": "invalid timestamp",
	"207": "replayed request",
	"301": "dictionary lookup failed",
	"302": "translation lookup failed",
	"303": "server error",
	"401": "insufficient account balance",
	"411": "rate limited",
	"412": "too many long requests",
}

// YoudaoAdapter talks to Youdao AI translation. Credentials are
// "<appKey>:<secret>"; each request is signed with
// sha256(appKey + q + salt + secret) and signType v3.
type YoudaoAdapter struct {
	// BaseURL overrides YoudaoEndpoint.
	BaseURL string
	// Salt generates the per-request salt. Defaults to a random number.
	Salt func() string
}

func (a *YoudaoAdapter) ID() string                 { return Youdao }
func (a *YoudaoAdapter) Name() string               { return "Youdao Translate" }
func (a *YoudaoAdapter) BatchMode() BatchMode       { return BatchSequential }
func (a *YoudaoAdapter) PacingDelay() time.Duration { return strictPacing }

func (a *YoudaoAdapter) BuildRequest(text string, cfg Config) (*Request, error) {
	if text == "" {
		return nil, configErrorf("%s: text is empty", Youdao)
	}
	appKey, secret, err := splitCredential(Youdao, cfg.Credential)
	if err != nil {
		return nil, err
	}
	to, err := youdaoLanguages.target(cfg.TargetLang)
	if err != nil {
		return nil, err
	}

	salt := newSalt(a.Salt)
	sum := sha256.Sum256([]byte(appKey + text + salt + secret))

	form := url.Values{}
	form.Set("q", text)
	form.Set("from", youdaoLanguages.source(cfg.SourceLang))
	form.Set("to", to)
	form.Set("appKey", appKey)
	form.Set("salt", salt)
	form.Set("sign", hex.EncodeToString(sum[:]))
	form.Set("signType", "v3")

	endpoint := a.BaseURL
	if endpoint == "" {
		endpoint = YoudaoEndpoint
	}
	return &Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: formHeader(),
		Body:   []byte(form.Encode()),
	}, nil
}

type youdaoResponse struct {
	ErrorCode   json.RawMessage `json:"errorCode"`
	Translation []string        `json:"translation"`
}

func (a *YoudaoAdapter) ParseResponse(status int, body []byte) (string, error) {
	var resp youdaoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status < 200 || status >= 300 {
			return "", httpStatusError(Youdao, status, body)
		}
		return "", fmt.Errorf("%s: decoding response: %w", Youdao, err)
	}
	if code := rawCode(resp.ErrorCode); code != "" && code != "0" {
		reason, ok := youdaoErrors[code]
		if !ok {
			reason = "request failed"
		}
		return "", &ProviderError{
			Provider: Youdao,
			Status:   status,
			Code:     code,
			Reason:   reason,
		}
	}
	if status < 200 || status >= 300 {
		return "", httpStatusError(Youdao, status, body)
	}
	if len(resp.Translation) == 0 || resp.Translation[0] == "" {
		return "", ErrEmptyResult
	}
	return resp.Translation[0], nil
}

func (a *YoudaoAdapter) BuildBatchRequest([]string, Config) (*Request, error) {
	return nil, ErrBatchUnsupported
}

func (a *YoudaoAdapter) ParseBatchResponse(int, []byte, []string) (map[string]string, error) {
	return nil, ErrBatchUnsupported
}
