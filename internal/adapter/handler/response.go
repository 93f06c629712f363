package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rl1809/rent-market/internal/core/domain"
)

const requestIDHeader = "X-Request-ID"

type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func successResponse(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

func errorResponse(c *fiber.Ctx, status int, code, message string, details map[string]any) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

func badRequest(c *fiber.Ctx, message string, details map[string]any) error {
	return errorResponse(c, fiber.StatusBadRequest, "BAD_REQUEST", message, details)
}

func internalError(c *fiber.Ctx) error {
	return errorResponse(c, fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal error", nil)
}

// rejectionResponse maps an expected outcome onto an HTTP status. The
// rejection reason is the error code.
func rejectionResponse(c *fiber.Ctx, r *domain.Rejection) error {
	return errorResponse(c, rejectionStatus(r), string(r.Reason), r.Message, nil)
}

func rejectionStatus(r *domain.Rejection) int {
	switch {
	case r.Reason == domain.ReasonNotFound:
		return fiber.StatusNotFound
	case r.Reason == domain.ReasonNotOwner:
		return fiber.StatusForbidden
	case r.IsConflict():
		return fiber.StatusConflict
	}
	return fiber.StatusBadRequest
}

func getRequestID(c *fiber.Ctx) string {
	requestID := c.Get(requestIDHeader)
	if requestID == "" {
		if id, ok := c.Locals(requestIDHeader).(string); ok {
			return id
		}
		requestID = uuid.NewString()
		c.Locals(requestIDHeader, requestID)
		c.Set(requestIDHeader, requestID)
	}
	return requestID
}
