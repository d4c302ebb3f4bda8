package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

// maxErrorBody caps how much of an upstream error body is read.
const maxErrorBody = 1 << 20

// DownstreamErrorResponse is the error envelope other GamerShop services
// return, used to recover the structured code and message.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes the body of a non-2xx response and translates
// it into an AppError. A structured envelope keeps its code and message;
// anything else becomes a generic error carrying the status and raw body.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != nil {
		return mapDownstreamError(resp.StatusCode, downstream.Error.Code, downstream.Error.Message, serviceName)
	}

	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(body))
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch status {
	case http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case http.StatusConflict:
		return apperrors.Conflict(qualified)
	case http.StatusUnauthorized:
		return apperrors.NotAuthenticated()
	case http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	}

	if status >= 500 {
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	}

	return &apperrors.AppError{
		Code:    code,
		Message: qualified,
		Status:  status,
	}
}
