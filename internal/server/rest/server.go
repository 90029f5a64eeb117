// Package rest exposes the session API over HTTP using fiber.
package rest

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/logging"
	"github.com/dmitrijs2005/mealkeeper/internal/server/config"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/dmitrijs2005/mealkeeper/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the part of services.AuthService the HTTP layer calls.
type AuthService interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Login(ctx context.Context, userName, password, deviceTag string) (*services.TokenPair, error)
	Refresh(ctx context.Context, oldToken, deviceTag string) (*services.TokenPair, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, principal *models.Principal, userID string) (int64, error)
	WhoAmI(ctx context.Context, accessToken string) (*models.Principal, error)
	Sessions(ctx context.Context, principal *models.Principal) ([]models.RefreshToken, error)
	ChangePassword(ctx context.Context, principal *models.Principal, oldPassword, newPassword string) error
}

type Server struct {
	address string
	auth    AuthService
	logger  logging.Logger
	cookies cookieSettings
	app     *fiber.App
}

func NewServer(cfg *config.Config, l logging.Logger, auth AuthService) *Server {
	s := &Server{
		address: cfg.EndpointAddr,
		auth:    auth,
		logger:  l.With("module", "http_server"),
		cookies: cookieSettings{
			secure: cfg.CookieSecure,
			maxAge: cfg.RefreshTokenValidityDuration,
		},
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "mealkeeper",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(corsConfig(cfg.AllowOrigins)))
	s.app.Use(s.requestLogger)

	s.routes(cfg.LoginRateLimit)
	return s
}

func (s *Server) routes(loginRateLimit int) {
	s.app.Get("/health", s.health)

	public := s.app.Group("")
	if loginRateLimit > 0 {
		rl := limiter.New(limiter.Config{
			Max:        loginRateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
			},
		})
		public.Post("/register", rl, s.register)
		public.Post("/login", rl, s.login)
	} else {
		public.Post("/register", s.register)
		public.Post("/login", s.login)
	}
	public.Post("/refresh-token", s.refresh)

	protected := s.app.Group("", s.requireAuth)
	protected.Post("/logout", s.logout)
	protected.Post("/logout-all", s.logoutAll)
	protected.Get("/me", s.me)
	protected.Get("/sessions", s.sessions)
	protected.Post("/change-password", s.changePassword)
}

// App exposes the fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
	return s.app.Listener(listen)
}

func corsConfig(origins string) cors.Config {
	origins = strings.TrimSpace(origins)
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
		// Credentials carry the refresh cookie; browsers refuse them with "*".
		AllowCredentials: origins != "*" && origins != "",
	}
}
