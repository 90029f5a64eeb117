package rest

import (
	"errors"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps an error to the HTTP status and the message sent to the
// client. Unknown errors become 500 without detail.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, common.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.Is(err, common.ErrNoTokenProvided):
		return fiber.StatusUnauthorized, common.ErrNoTokenProvided.Error()
	case errors.Is(err, common.ErrInvalidToken):
		return fiber.StatusUnauthorized, common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrTokenExpired):
		return fiber.StatusUnauthorized, common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden, common.ErrForbidden.Error()
	case errors.Is(err, common.ErrUserAlreadyExists):
		return fiber.StatusConflict, common.ErrUserAlreadyExists.Error()
	default:
		return fiber.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code, msg := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(errorResponse{Message: msg})
}
