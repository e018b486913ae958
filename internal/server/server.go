package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"finrecord/api/internal/config"
	"finrecord/api/internal/handlers"
	"finrecord/api/internal/middleware"
)

type HTTPServer struct {
	app *fiber.App
	log zerolog.Logger
	cfg *config.AppConfig
}

func NewHTTPServer(cfg *config.AppConfig, log zerolog.Logger, handlerSet handlers.HandlerSet) *HTTPServer {
	app := fiber.New(fiber.Config{
		AppName:               "finrecord-api",
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		DisableStartupMessage: true,
	})

	app.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.AllowCORSOrigins),
	)

	handlerSet.Register(app)

	return &HTTPServer{
		app: app,
		log: log,
		cfg: cfg,
	}
}

// App exposes the router for in-process testing.
func (s *HTTPServer) App() *fiber.App {
	return s.app
}

func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTP.Host, s.cfg.HTTP.Port)
	s.log.Info().Str("addr", addr).Msg("http server starting")

	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(timeout time.Duration) error {
	s.log.Info().Msg("http server shutting down")
	return s.app.ShutdownWithTimeout(timeout)
}
