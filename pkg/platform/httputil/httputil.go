package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	dErrors "hudson/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Bodies follow the site's form contract: {"error": code, "message": text}.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		response := map[string]string{
			"error": DomainCodeToHTTPCode(domainErr.Code),
		}
		if msg := userMessage(domainErr); msg != "" {
			response["message"] = msg
		}
		WriteJSON(w, status, response)
		return
	}

	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   DomainCodeToHTTPCode(dErrors.CodeInternal),
		"message": "something went wrong, please try again",
	})
}

// WriteRateLimited writes the 429 body shared by the rate limit middleware
// and any handler that rejects on quota.
func WriteRateLimited(w http.ResponseWriter, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests. Please try again later.",
		"retry_after": retryAfter,
	})
}

// userMessage hides internal detail for server-side failures. Transient
// failures get a retry prompt instead of the wrapped cause.
func userMessage(e *dErrors.Error) string {
	switch e.Code {
	case dErrors.CodeInternal:
		return "something went wrong, please try again"
	case dErrors.CodeTimeout, dErrors.CodeUnavailable, dErrors.CodeCanceled:
		if e.Message == "" {
			return "temporarily unavailable, please retry"
		}
	}
	return e.Message
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	// a canceled upstream call is reported like an outage; 499 is not a status clients understand
	case dErrors.CodeUnavailable, dErrors.CodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to HTTP error codes (for JSON response).
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeRateLimited:
		return "rate_limit_exceeded"
	case dErrors.CodeTimeout:
		return "upstream_timeout"
	case dErrors.CodeUnavailable, dErrors.CodeCanceled:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
