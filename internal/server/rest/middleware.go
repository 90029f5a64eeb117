package rest

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// requireAuth verifies the bearer access token and stores the principal for
// downstream handlers.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(common.AuthorizationHeaderName)
	if header == "" {
		return common.ErrNoTokenProvided
	}
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok {
		return common.ErrInvalidToken
	}

	p, err := s.auth.WhoAmI(c.UserContext(), strings.TrimSpace(token))
	if err != nil {
		return err
	}

	c.Locals(principalKey, p)
	return c.Next()
}

func principalFrom(c *fiber.Ctx) *models.Principal {
	p, _ := c.Locals(principalKey).(*models.Principal)
	return p
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status, _ = statusFor(err)
	}
	s.logger.Debug(c.UserContext(), "request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start),
	)
	return err
}
