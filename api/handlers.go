package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/gateway"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ForceRequest is the body for POST /mode/force.
type ForceRequest struct {
	// Reason defaults to "manual".
	Reason string `json:"reason,omitempty"`

	// HoldSeconds defaults to the gateway's configured hold.
	HoldSeconds uint `json:"hold_seconds,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus returns the effective mode, forced record, and failure count.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.gateway.Status(c.Context()))
}

// handleForce manually downgrades the gateway to write-only mode.
func (s *Server) handleForce(c *fiber.Ctx) error {
	req := ForceRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	hold := time.Duration(req.HoldSeconds) * time.Second

	if err := s.gateway.ForceWriteOnly(c.Context(), req.Reason, hold); err != nil {
		s.logger.Error("manual force failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "state store unavailable"})
	}

	return c.JSON(s.gateway.Status(c.Context()))
}

// handleClear lifts a forced downgrade.
func (s *Server) handleClear(c *fiber.Ctx) error {
	if err := s.gateway.ClearForcedMode(c.Context()); err != nil {
		s.logger.Error("manual clear failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "state store unavailable"})
	}

	return c.JSON(s.gateway.Status(c.Context()))
}

// handleInvalidate busts cached context for one conversation.
func (s *Server) handleInvalidate(c *fiber.Ctx) error {
	conversationID := c.Params("conversation_id")

	err := s.gateway.Invalidate(c.Context(), conversationID)
	switch {
	case gateway.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error("cache invalidation failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "state store unavailable"})
	}

	return c.JSON(fiber.Map{"invalidated": conversationID})
}
