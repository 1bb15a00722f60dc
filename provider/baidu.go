package provider

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BaiduEndpoint is the Baidu general translation endpoint.
const BaiduEndpoint = "https://fanyi-api.baidu.com/api/trans/vip/translate"

// baiduErrors maps Baidu error codes to their causes.
var baiduErrors = map[string]string{
	"52001": "request timed out",
	"52002": "system error",
	"52003": "unauthorized user",
	"54000": "required parameter is empty",
	"54001": "bad signature",
	"54003": "rate limited",
	"54004": "insufficient account balance",
	"54005": "too many long requests",
	"58000": "client IP not allowed",
	"58001": "unsupported target language",
	"58002": "service is closed",
	"90107": "certification not passed or not in effect",
}

// BaiduAdapter talks to Baidu Translate. Credentials are "<appid>:<secret>";
// each request is signed with md5(appid + q + salt + secret).
type BaiduAdapter struct {
	// BaseURL overrides BaiduEndpoint.
	BaseURL string
	// Salt generates the per-request salt. Defaults to a random number.
	Salt func() string
}

func (a *BaiduAdapter) ID() string                 { return Baidu }
func (a *BaiduAdapter) Name() string               { return "Baidu Translate" }
func (a *BaiduAdapter) BatchMode() BatchMode       { return BatchSequential }
func (a *BaiduAdapter) PacingDelay() time.Duration { return strictPacing }

func (a *BaiduAdapter) BuildRequest(text string, cfg Config) (*Request, error) {
	if text == "" {
		return nil, configErrorf("%s: text is empty", Baidu)
	}
	appID, secret, err := splitCredential(Baidu, cfg.Credential)
	if err != nil {
		return nil, err
	}
	to, err := baiduLanguages.target(cfg.TargetLang)
	if err != nil {
		return nil, err
	}

	salt := newSalt(a.Salt)
	sum := md5.Sum([]byte(appID + text + salt + secret))

	form := url.Values{}
	form.Set("q", text)
	form.Set("from", baiduLanguages.source(cfg.SourceLang))
	form.Set("to", to)
	form.Set("appid", appID)
	form.Set("salt", salt)
	form.Set("sign", hex.EncodeToString(sum[:]))

	endpoint := a.BaseURL
	if endpoint == "" {
		endpoint = BaiduEndpoint
	}
	return &Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: formHeader(),
		Body:   []byte(form.Encode()),
	}, nil
}

type baiduResponse struct {
	ErrorCode   json.RawMessage `json:"error_code"`
	ErrorMsg    string          `json:"error_msg"`
	TransResult []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

func (a *BaiduAdapter) ParseResponse(status int, body []byte) (string, error) {
	var resp baiduResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status < 200 || status >= 300 {
			return "", httpStatusError(Baidu, status, body)
		}
		return "", fmt.Errorf("%s: decoding response: %w", Baidu, err)
	}
	if code := rawCode(resp.ErrorCode); code != "" && code != "52000" {
		return "", &ProviderError{
			Provider: Baidu,
			Status:   status,
			Code:     code,
			Reason:   baiduErrors[code],
			Message:  resp.ErrorMsg,
		}
	}
	if status < 200 || status >= 300 {
		return "", httpStatusError(Baidu, status, body)
	}
	if len(resp.TransResult) == 0 || resp.TransResult[0].Dst == "" {
		return "", ErrEmptyResult
	}
	// Multi-line input comes back as one result per line.
	lines := make([]string, len(resp.TransResult))
	for i, r := range resp.TransResult {
		lines[i] = r.Dst
	}
	return strings.Join(lines, "\n"), nil
}

func (a *BaiduAdapter) BuildBatchRequest([]string, Config) (*Request, error) {
	return nil, ErrBatchUnsupported
}

func (a *BaiduAdapter) ParseBatchResponse(int, []byte, []string) (map[string]string, error) {
	return nil, ErrBatchUnsupported
}

// ---------------------------------------------------------------------------
// Helpers shared by the signing providers
// ---------------------------------------------------------------------------

// splitCredential splits "<id>:<secret>" into exactly two non-empty parts.
func splitCredential(provider, credential string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(credential), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		if strings.TrimSpace(credential) == "" {
			return "", "", configErrorf("%s: credential is not set", provider)
		}
		return "", "", configErrorf("%s: credential must have the form <id>:<secret>", provider)
	}
	return parts[0], parts[1], nil
}

// newSalt returns gen() or a fresh random decimal token.
func newSalt(gen func() string) string {
	if gen != nil {
		return gen()
	}
	return strconv.FormatUint(uint64(rand.Uint32()), 10)
}

// rawCode renders a JSON error code that may be a number or a string.
func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return string(raw)
}
