package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	"hudson/internal/submission/models"
	"hudson/pkg/platform/httputil"
	"hudson/pkg/requestcontext"
)

type Service interface {
	SubmitContact(ctx context.Context, req *models.ContactRequest) error
	SubscribeNewsletter(ctx context.Context, req *models.NewsletterRequest) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleContact implements POST /api/contact and the plain form post to
// /contact. JSON and url-encoded bodies are both accepted.
//
// Input: { "name": "Ann", "email": "ann@example.com", "message": "Hello" }
// Output: { "success": true, "message": "..." }
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var (
		req *models.ContactRequest
		ok  bool
	)
	if isForm(r) {
		req, ok = httputil.DecodeFormAndPrepare[models.ContactRequest](w, r, h.logger, ctx, requestID)
	} else {
		req, ok = httputil.DecodeAndPrepare[models.ContactRequest](w, r, h.logger, ctx, requestID)
	}
	if !ok {
		return
	}

	if err := h.service.SubmitContact(ctx, req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.SubmissionResponse{
		Success: true,
		Message: "Thanks for reaching out. We will get back to you shortly.",
	})
}

// HandleNewsletter implements POST /api/newsletter.
func (h *Handler) HandleNewsletter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var (
		req *models.NewsletterRequest
		ok  bool
	)
	if isForm(r) {
		req, ok = httputil.DecodeFormAndPrepare[models.NewsletterRequest](w, r, h.logger, ctx, requestID)
	} else {
		req, ok = httputil.DecodeAndPrepare[models.NewsletterRequest](w, r, h.logger, ctx, requestID)
	}
	if !ok {
		return
	}

	if err := h.service.SubscribeNewsletter(ctx, req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.SubmissionResponse{
		Success: true,
		Message: "You are subscribed.",
	})
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}
