package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/spend"
)

// RegisterSpendRoutes wires gift and call endpoints behind the given guards.
func RegisterSpendRoutes(r fiber.Router, h *spend.Handler, guards ...fiber.Handler) {
	r.Post("/gifts", chain(guards, h.SendGift)...)
	r.Post("/calls/settle", chain(guards, h.SettleCall)...)
}

func chain(guards []fiber.Handler, last fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, last)
}
