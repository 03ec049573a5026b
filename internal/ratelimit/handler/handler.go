package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hudson/internal/ratelimit/config"
	"hudson/internal/ratelimit/models"
	"hudson/pkg/platform/httputil"
	"hudson/pkg/platform/middleware/admin"
	"hudson/pkg/platform/middleware/metadata"
	"hudson/pkg/platform/privacy"
	"hudson/pkg/requestcontext"
)

type Service interface {
	GetLimitInfo(ctx context.Context, identifier string, limitType models.LimitType) models.LimitInfo
	Reset(ctx context.Context, identifier string, limitType models.LimitType) error
}

type Handler struct {
	service Service
	limits  *config.Config
	logger  *slog.Logger
}

func New(service Service, limits *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		limits:  limits,
		logger:  logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/rate-limit/{limitType}", h.HandleGetLimitInfo)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/rate-limit/{limitType}/{identifier}", h.HandleAdminGetLimitInfo)
	r.Post("/admin/rate-limit/reset", h.HandleResetRateLimit)
}

// HandleGetLimitInfo implements GET /api/rate-limit/{limitType}.
// Reports the caller's own quota without consuming it.
func (h *Handler) HandleGetLimitInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limitType, err := models.ParseLimitType(chi.URLParam(r, "limitType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ip := metadata.GetClientIP(ctx)
	info := h.service.GetLimitInfo(ctx, ip, limitType)
	httputil.WriteJSON(w, http.StatusOK, h.toResponse(limitType, info))
}

// HandleAdminGetLimitInfo implements GET /admin/rate-limit/{limitType}/{identifier}.
func (h *Handler) HandleAdminGetLimitInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limitType, err := models.ParseLimitType(chi.URLParam(r, "limitType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identifier := chi.URLParam(r, "identifier")

	info := h.service.GetLimitInfo(ctx, identifier, limitType)
	httputil.WriteJSON(w, http.StatusOK, &models.AdminLimitInfoResponse{
		Identifier:        identifier,
		LimitInfoResponse: *h.toResponse(limitType, info),
	})
}

// HandleResetRateLimit implements POST /admin/rate-limit/reset.
//
// Input: { "identifier": "203.0.113.1", "limit_type": "contactForm" }
// Output: 204 No Content
func (h *Handler) HandleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.ResetRateLimitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Reset(ctx, req.Identifier, models.LimitType(req.LimitType)); err != nil {
		h.logger.ErrorContext(ctx, "rate_limit_reset_failed",
			"error", err,
			"identifier", privacy.AnonymizeIdentifier(req.Identifier),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin_rate_limit_reset",
		"identifier", privacy.AnonymizeIdentifier(req.Identifier),
		"limit_type", req.LimitType,
		"actor_id", admin.GetAdminActorID(ctx),
		"request_id", requestID,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toResponse(limitType models.LimitType, info models.LimitInfo) *models.LimitInfoResponse {
	_, limit := h.limits.Resolve(limitType)
	return &models.LimitInfoResponse{
		LimitType:   limitType,
		MaxRequests: limit.MaxRequests,
		WindowSecs:  int(limit.Window.Seconds()),
		Remaining:   info.Remaining,
		ResetTime:   info.ResetTime,
		IsLimited:   info.IsLimited,
	}
}
