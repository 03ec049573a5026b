// Package service relays validated form submissions to their webhooks.
// Delivery goes through the dedup client so a double-clicked submit button
// reaches the webhook once.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hudson/internal/dedup"
	"hudson/internal/submission/models"
	dErrors "hudson/pkg/domain-errors"
	"hudson/pkg/platform/privacy"
	"hudson/pkg/requestcontext"
)

const (
	kindContact    = "contact"
	kindNewsletter = "newsletter"
)

// Relay performs an outbound webhook call.
type Relay interface {
	Do(ctx context.Context, req *dedup.Request) (*dedup.Response, error)
}

// Webhooks names the delivery targets. An empty URL disables that form.
type Webhooks struct {
	ContactURL    string
	NewsletterURL string
	AuthToken     string
}

type Service struct {
	relay    Relay
	webhooks Webhooks
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(relay Relay, webhooks Webhooks, opts ...Option) (*Service, error) {
	if relay == nil {
		return nil, errors.New("relay is required")
	}
	s := &Service{
		relay:    relay,
		webhooks: webhooks,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// contactPayload is the webhook body. It carries no timestamp or request id:
// two identical submissions must produce identical bodies to be collapsed.
type contactPayload struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
	Message string `json:"message"`
}

type newsletterPayload struct {
	Type   string `json:"type"`
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`
}

func (s *Service) SubmitContact(ctx context.Context, req *models.ContactRequest) error {
	if req == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return s.deliver(ctx, kindContact, s.webhooks.ContactURL, req.Email, contactPayload{
		Type:    kindContact,
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
		Phone:   req.Phone,
		Service: req.Service,
		Message: req.Message,
	})
}

func (s *Service) SubscribeNewsletter(ctx context.Context, req *models.NewsletterRequest) error {
	if req == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return s.deliver(ctx, kindNewsletter, s.webhooks.NewsletterURL, req.Email, newsletterPayload{
		Type:   kindNewsletter,
		Email:  req.Email,
		Source: req.Source,
	})
}

func (s *Service) deliver(ctx context.Context, kind, url, email string, payload any) error {
	requestID := requestcontext.RequestID(ctx)
	if url == "" {
		s.logger.ErrorContext(ctx, "submission_not_configured",
			"kind", kind,
			"request_id", requestID,
		)
		return dErrors.New(dErrors.CodeUnavailable, kind+" submissions are not available right now")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode submission")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if s.webhooks.AuthToken != "" {
		header.Set("Authorization", "Bearer "+s.webhooks.AuthToken)
	}
	if requestID != "" {
		header.Set("X-Request-ID", requestID)
	}

	resp, err := s.relay.Do(ctx, &dedup.Request{
		Method: http.MethodPost,
		URL:    url,
		Header: header,
		Body:   body,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "submission_relay_failed",
			"kind", kind,
			"error", err,
			"email", privacy.AnonymizeEmail(email),
			"request_id", requestID,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not deliver "+kind+" submission")
	}
	if !resp.OK() {
		s.logger.ErrorContext(ctx, "submission_relay_rejected",
			"kind", kind,
			"status", resp.StatusCode,
			"email", privacy.AnonymizeEmail(email),
			"request_id", requestID,
		)
		return dErrors.New(dErrors.CodeUnavailable, "could not deliver "+kind+" submission")
	}

	s.logger.InfoContext(ctx, "submission_delivered",
		"kind", kind,
		"email", privacy.AnonymizeEmail(email),
		"request_id", requestID,
	)
	return nil
}
