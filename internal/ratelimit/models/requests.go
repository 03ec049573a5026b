package models

import (
	"strings"

	dErrors "hudson/pkg/domain-errors"
	"hudson/pkg/platform/validation"
)

type ResetRateLimitRequest struct {
	Identifier string `json:"identifier"`
	LimitType  string `json:"limit_type"`
}

func (r *ResetRateLimitRequest) Normalize() {
	if r == nil {
		return
	}
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.LimitType = strings.TrimSpace(r.LimitType)
}

// Follows validation order: Size -> Required -> Syntax.
func (r *ResetRateLimitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLength("identifier", r.Identifier, validation.MaxIdentifierLength); err != nil {
		return err
	}
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}
	if r.LimitType == "" {
		return dErrors.New(dErrors.CodeValidation, "limit_type is required")
	}
	if !LimitType(r.LimitType).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown limit_type: "+r.LimitType)
	}
	return nil
}
