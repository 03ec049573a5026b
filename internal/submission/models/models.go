package models

import (
	"strings"

	dErrors "hudson/pkg/domain-errors"
	"hudson/pkg/platform/validation"
	tags "hudson/pkg/validation"
)

type ContactRequest struct {
	Name    string `json:"name" validate:"notblank"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
	Message string `json:"message" validate:"notblank"`
}

func (r *ContactRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Company = strings.TrimSpace(r.Company)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Service = strings.TrimSpace(r.Service)
	r.Message = strings.TrimSpace(r.Message)
}

// Follows validation order: Size -> Required -> Syntax.
func (r *ContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLengths(
		validation.StringLimit{Field: "name", Value: r.Name, Max: validation.MaxNameLength},
		validation.StringLimit{Field: "email", Value: r.Email, Max: validation.MaxEmailLength},
		validation.StringLimit{Field: "company", Value: r.Company, Max: validation.MaxCompanyLength},
		validation.StringLimit{Field: "phone", Value: r.Phone, Max: validation.MaxPhoneLength},
		validation.StringLimit{Field: "service", Value: r.Service, Max: validation.MaxNameLength},
		validation.StringLimit{Field: "message", Value: r.Message, Max: validation.MaxMessageLength},
	); err != nil {
		return err
	}
	return tags.Validate(r)
}

func (r *ContactRequest) FromForm(values map[string][]string) {
	r.Name = first(values, "name")
	r.Email = first(values, "email")
	r.Company = first(values, "company")
	r.Phone = first(values, "phone")
	r.Service = first(values, "service")
	r.Message = first(values, "message")
}

type NewsletterRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Source string `json:"source,omitempty"`
}

func (r *NewsletterRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Source = strings.TrimSpace(r.Source)
}

func (r *NewsletterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLengths(
		validation.StringLimit{Field: "email", Value: r.Email, Max: validation.MaxEmailLength},
		validation.StringLimit{Field: "source", Value: r.Source, Max: validation.MaxNameLength},
	); err != nil {
		return err
	}
	return tags.Validate(r)
}

func (r *NewsletterRequest) FromForm(values map[string][]string) {
	r.Email = first(values, "email")
	r.Source = first(values, "source")
}

// SubmissionResponse is returned to the browser after a relay succeeds.
type SubmissionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
