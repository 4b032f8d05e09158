package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/linkdms/linkdms/app/dto"
	businessflow "github.com/linkdms/linkdms/business_flow"
	"github.com/linkdms/linkdms/models"
)

// OutreachHandlerInterface defines the contract for the trigger surface
type OutreachHandlerInterface interface {
	RunCampaign(c fiber.Ctx) error
	ProcessFollowUps(c fiber.Ctx) error
	Health(c fiber.Ctx) error
}

// OutreachHandler handles campaign trigger HTTP requests
type OutreachHandler struct {
	runFlow      businessflow.CampaignRunFlow
	followUpFlow businessflow.FollowUpFlow
	validator    *validator.Validate
	runTimeout   time.Duration
	version      string
}

// NewOutreachHandler creates a new outreach handler
func NewOutreachHandler(runFlow businessflow.CampaignRunFlow, followUpFlow businessflow.FollowUpFlow, runTimeout time.Duration, version string) *OutreachHandler {
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &OutreachHandler{
		runFlow:      runFlow,
		followUpFlow: followUpFlow,
		validator:    validator.New(),
		runTimeout:   runTimeout,
		version:      version,
	}
}

func (h *OutreachHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OutreachHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RunCampaign triggers one execution run of a campaign.
// Responds 200 on success including the limit-already-reached no-op, 404 for
// an unknown campaign, 412 when the identity context is not ready, 429 when a
// safety limit rejects the run outright.
func (h *OutreachHandler) RunCampaign(c fiber.Ctx) error {
	var req dto.RunCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get(businessflow.RequestIDKey); requestID != "" {
		metadata.SetRequestID(requestID)
	}

	opts := businessflow.RunOptions{
		ExecutionType: models.ExecutionType(req.ExecutionType),
		MaxInvites:    req.MaxInvites,
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
	defer cancel()

	result, err := h.runFlow.RunCampaign(ctx, req.CampaignID, opts, metadata)
	if err != nil {
		return h.mapRunError(c, err, "Campaign run failed")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign run completed", dto.RunCampaignResponse{
		Success:      result.Success,
		CampaignID:   result.CampaignID,
		InvitesSent:  result.InvitesSent,
		LimitReached: result.LimitReached,
		Message:      result.Message,
	})
}

// ProcessFollowUps triggers a follow-up pass for a campaign
func (h *OutreachHandler) ProcessFollowUps(c fiber.Ctx) error {
	var req dto.ProcessFollowUpsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get(businessflow.RequestIDKey); requestID != "" {
		metadata.SetRequestID(requestID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
	defer cancel()

	result, err := h.followUpFlow.ProcessFollowUps(ctx, req.CampaignID, metadata)
	if err != nil {
		return h.mapRunError(c, err, "Follow-up processing failed")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Follow-up pass completed", dto.ProcessFollowUpsResponse{
		Success:       result.Success,
		CampaignID:    result.CampaignID,
		FollowUpsSent: result.FollowUpsSent,
		LimitReached:  result.LimitReached,
		Message:       result.Message,
	})
}

// Health reports service liveness
func (h *OutreachHandler) Health(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "ok", dto.HealthResponse{
		Status:  "healthy",
		Version: h.version,
	})
}

func (h *OutreachHandler) mapRunError(c fiber.Ctx, err error, fallbackMessage string) error {
	switch {
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignNotRunnable(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign is not active", "CAMPAIGN_NOT_ACTIVE", nil)
	case businessflow.IsNoKeywords(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign has no usable keywords", "NO_KEYWORDS", nil)
	case businessflow.IsIdentityContextNotReady(err):
		return h.ErrorResponse(c, fiber.StatusPreconditionFailed, "Identity context is not ready", "IDENTITY_CONTEXT_NOT_READY", nil)
	case businessflow.IsSessionLoggedOut(err):
		return h.ErrorResponse(c, fiber.StatusPreconditionFailed, "Platform session is logged out", "SESSION_LOGGED_OUT", nil)
	case businessflow.IsLimitReached(err):
		return h.ErrorResponse(c, fiber.StatusTooManyRequests, "Safety limit exceeded", "LIMIT_EXCEEDED", nil)
	default:
		log.Println(fallbackMessage, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, "RUN_FAILED", nil)
	}
}
