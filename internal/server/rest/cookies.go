package rest

import (
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/gofiber/fiber/v2"
)

type cookieSettings struct {
	secure bool
	maxAge time.Duration
}

// setRefreshCookie hands the refresh token to the browser. The token never
// appears in a response body.
func (s *Server) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cookies.maxAge / time.Second),
		HTTPOnly: true,
		Secure:   s.cookies.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		HTTPOnly: true,
		Secure:   s.cookies.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func refreshCookie(c *fiber.Ctx) string {
	return c.Cookies(common.RefreshTokenCookieName)
}
