// Package server hosts the HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/app"
	"github.com/giftstream/giftstream/internal/middleware"
	"github.com/giftstream/giftstream/internal/routes"
)

// Server wraps the Fiber application and the wired service container.
type Server struct {
	app       *fiber.App
	container *app.Container
}

// New builds the Fiber app and registers every route on it.
func New(c *app.Container) (*Server, error) {
	fapp := fiber.New(fiber.Config{
		AppName:      c.Config.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(c.Logger),
	})

	if err := routes.Setup(fapp, routes.Deps{App: c}); err != nil {
		return nil, err
	}
	return &Server{app: fapp, container: c}, nil
}

// errorHandler renders every failure as {"error": ..., "request_id": ...}.
// Messages of unexpected errors are not echoed to clients.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "internal error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}

		body := fiber.Map{"error": msg}
		if id, ok := c.Locals(middleware.LocalRequestID).(string); ok && id != "" {
			body["request_id"] = id
		}
		return c.Status(code).JSON(body)
	}
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	return s.app.Listen(s.container.Config.Address())
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
