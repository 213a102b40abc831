// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"feed-engine-service/internal/app/feed"
	"feed-engine-service/internal/app/session"
	"feed-engine-service/internal/domain"
	"feed-engine-service/internal/transport/httpserver/dto"
	"feed-engine-service/internal/validator"
)

// SessionHandler handles feed session HTTP requests.
type SessionHandler struct {
	service   *session.Service
	validator *validator.Validator
	logger    *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc *session.Service, v *validator.Validator, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}

	if err := h.validator.Validate(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    "VALIDATION_ERROR",
			Details: err,
		})
	}

	snap, err := h.service.Create(c.Context(), req.ToIdentity())
	if err != nil {
		return h.mapError(c, err, "session create failed")
	}

	return c.Status(fiber.StatusCreated).JSON(dto.FromSnapshot(snap))
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	snap, err := h.service.Get(c.Params("id"))
	if err != nil {
		return h.mapError(c, err, "session get failed")
	}

	return c.JSON(dto.FromSnapshot(snap))
}

// ReportPosition handles POST /api/v1/sessions/:id/position
func (h *SessionHandler) ReportPosition(c *fiber.Ctx) error {
	var req dto.PositionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}

	if err := h.validator.Validate(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    "VALIDATION_ERROR",
			Details: err,
		})
	}

	extended, err := h.service.ReportPosition(c.Context(), c.Params("id"), req.Position)
	if err != nil {
		return h.mapError(c, err, "position report failed")
	}

	return c.JSON(dto.PositionResponse{ExtensionTriggered: extended})
}

// Refresh handles POST /api/v1/sessions/:id/refresh
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	snap, err := h.service.Refresh(c.Context(), c.Params("id"))
	if err != nil {
		return h.mapError(c, err, "session refresh failed")
	}

	return c.JSON(dto.FromSnapshot(snap))
}

// AdSlots handles GET /api/v1/sessions/:id/adslots
func (h *SessionHandler) AdSlots(c *fiber.Ctx) error {
	states, err := h.service.SlotStates(c.Params("id"))
	if err != nil {
		return h.mapError(c, err, "ad slot listing failed")
	}

	return c.JSON(dto.FromSlotStates(states))
}

// Close handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	if err := h.service.Close(c.Context(), c.Params("id")); err != nil {
		return h.mapError(c, err, "session close failed")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// mapError translates application errors to HTTP responses.
func (h *SessionHandler) mapError(c *fiber.Ctx, err error, msg string) error {
	var srcErr *domain.SourceFetchError

	switch {
	case errors.Is(err, session.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "session not found",
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, feed.ErrSuperseded):
		// The load lost to a concurrent refresh; the winner's result is
		// the session's live state.
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: "superseded by a concurrent refresh",
			Code:  "SUPERSEDED",
		})
	case errors.As(err, &srcErr):
		h.logger.Error(msg,
			zap.String("source", string(srcErr.Source)),
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: "upstream source unavailable",
			Code:  "SOURCE_ERROR",
		})
	default:
		h.logger.Error(msg, zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: msg,
			Code:  "INTERNAL_ERROR",
		})
	}
}
