package api

import (
	"errors"
	"log/slog"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func respond(c *fiber.Ctx, code int, message string, data any) error {
	return c.Status(code).JSON(Envelope{
		Status:  statusSuccess,
		Message: message,
		Data:    data,
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders every error returned by a handler as an ErrorEnvelope.
// Internal details are logged, never sent.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			message := fe.Message
			if fe.Code == fiber.StatusNotFound {
				message = "Route not found"
			}
			return c.Status(fe.Code).JSON(ErrorEnvelope{Status: statusError, Message: message})
		}

		e := apperr.As(err)
		code := statusFor(e.Kind)
		if code == fiber.StatusInternalServerError {
			p, _ := c.Locals(PrincipalKey).(access.Principal)
			logger.ErrorContext(c.UserContext(), "request failed",
				"request_id", c.Locals(requestid.ConfigDefault.ContextKey),
				"method", c.Method(),
				"path", c.Path(),
				"actor_id", p.ID,
				"error", err,
			)
			return c.Status(code).JSON(ErrorEnvelope{Status: statusError, Message: "Internal server error"})
		}

		return c.Status(code).JSON(ErrorEnvelope{
			Status:  statusError,
			Message: e.Message,
			Errors:  e.Fields,
		})
	}
}
