package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/minios-linux/tskit/provider"
)

// JSend status values.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// envelope is the JSend body of every response. "fail" reports a problem
// with the request, "error" a problem on our side or at the provider.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// upstreamDetail describes a provider-side failure in an error envelope.
type upstreamDetail struct {
	Provider       string `json:"provider"`
	ProviderStatus int    `json:"provider_status,omitempty"`
	ProviderCode   string `json:"provider_code,omitempty"`
	Network        bool   `json:"network,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Data: data})
}

// accepted reports work that continues after the response, such as a batch.
func accepted(c echo.Context, data any) error {
	return c.JSON(http.StatusAccepted, envelope{Status: statusSuccess, Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelope{Status: statusFail, Message: message, Data: data})
}

func invalid(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func notFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, envelope{
		Status:  statusError,
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}

// upstreamError reports a provider failure as 502 with the provider's own
// status and code in data.
func upstreamError(c echo.Context, err error) error {
	var detail upstreamDetail
	var pe *provider.ProviderError
	var ne *provider.NetworkError
	switch {
	case errors.As(err, &pe):
		detail = upstreamDetail{Provider: pe.Provider, ProviderStatus: pe.Status, ProviderCode: pe.Code}
	case errors.As(err, &ne):
		detail = upstreamDetail{Provider: ne.Provider, Network: true}
	}
	env := envelope{Status: statusError, Message: err.Error(), Code: http.StatusBadGateway}
	if detail.Provider != "" {
		env.Data = detail
	}
	return c.JSON(http.StatusBadGateway, env)
}

// isUpstream reports whether err belongs to the provider error taxonomy
// rather than to tskit itself.
func isUpstream(err error) bool {
	var pe *provider.ProviderError
	var ne *provider.NetworkError
	return errors.As(err, &pe) || errors.As(err, &ne) || errors.Is(err, provider.ErrEmptyResult)
}
