package rest

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

func (s *Server) tokenResponse(c *fiber.Ctx, pair *services.TokenPair) error {
	s.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   int64(pair.ExpiresIn / time.Second),
		UserID:      pair.UserID,
		UserName:    pair.UserName,
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	u, err := s.auth.Register(c.UserContext(), req.UserName, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(userResponse{UserID: u.ID, UserName: u.UserName})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	pair, err := s.auth.Login(c.UserContext(), req.UserName, req.Password, req.DeviceTag)
	if err != nil {
		return err
	}
	return s.tokenResponse(c, pair)
}

func (s *Server) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	pair, err := s.auth.Refresh(c.UserContext(), refreshCookie(c), req.DeviceTag)
	if err != nil {
		// a store outage must not cost the client a token that is still valid
		if rejectsRefreshToken(err) {
			s.clearRefreshCookie(c)
		}
		return err
	}
	return s.tokenResponse(c, pair)
}

func (s *Server) logout(c *fiber.Ctx) error {
	token := refreshCookie(c)
	if token == "" {
		return fiber.NewError(fiber.StatusBadRequest, common.ErrNoTokenProvided.Error())
	}

	if err := s.auth.Logout(c.UserContext(), token); err != nil {
		return err
	}
	s.clearRefreshCookie(c)
	return c.JSON(messageResponse{Message: "logged out"})
}

func (s *Server) logoutAll(c *fiber.Ctx) error {
	var req logoutAllRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	n, err := s.auth.LogoutAll(c.UserContext(), principalFrom(c), req.UserID)
	if err != nil {
		return err
	}
	s.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"message": "logged out everywhere", "revoked": n})
}

func (s *Server) me(c *fiber.Ctx) error {
	p := principalFrom(c)
	return c.JSON(userResponse{UserID: p.UserID, UserName: p.UserName})
}

func (s *Server) sessions(c *fiber.Ctx) error {
	list, err := s.auth.Sessions(c.UserContext(), principalFrom(c))
	if err != nil {
		return err
	}

	resp := sessionsResponse{Sessions: make([]sessionResponse, 0, len(list))}
	for _, rt := range list {
		resp.Sessions = append(resp.Sessions, sessionResponse{
			ID:        rt.ID,
			DeviceTag: rt.DeviceTag,
			ExpiresAt: rt.ExpiresAt,
			CreatedAt: rt.CreatedAt,
			UpdatedAt: rt.UpdatedAt,
		})
	}
	return c.JSON(resp)
}

func (s *Server) changePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := s.auth.ChangePassword(c.UserContext(), principalFrom(c), req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	s.clearRefreshCookie(c)
	return c.JSON(messageResponse{Message: "password changed"})
}

// rejectsRefreshToken reports whether err means the presented refresh token
// can never succeed again.
func rejectsRefreshToken(err error) bool {
	return errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrNoTokenProvided)
}
