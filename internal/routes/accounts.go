package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/account"
)

// RegisterAccountRoutes wires public registration.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Post("/accounts", h.Register)
}
