package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "hudson/pkg/domain-errors"
)

// DecodeJSON decodes a JSON request body into the target type.
// On failure it writes a 400 response and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[models.ContactRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "request_body_decode_failed",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// FormDecoder is implemented by request types that can populate themselves
// from url-encoded form values.
type FormDecoder interface {
	FromForm(values map[string][]string)
}

// DecodeForm parses an application/x-www-form-urlencoded body into T.
func DecodeForm[T any, PT interface {
	*T
	FormDecoder
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "request_form_decode_failed",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return nil, false
	}
	var req T
	PT(&req).FromForm(r.PostForm)
	return &req, true
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// PrepareRequest normalizes then validates a request.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare combines JSON decoding with request preparation.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	return prepared(w, req, logger, ctx, requestID)
}

// DecodeFormAndPrepare is DecodeAndPrepare for form-encoded bodies.
func DecodeFormAndPrepare[T any, PT interface {
	*T
	FormDecoder
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeForm[T, PT](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}
	return prepared(w, req, logger, ctx, requestID)
}

func prepared[T any](w http.ResponseWriter, req *T, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "request_invalid",
			"error", err,
			"request_id", requestID,
		)
		// Preserve original error code if it's already a domain error
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}
	return req, true
}
