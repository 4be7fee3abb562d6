package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/reward"
	"github.com/giftstream/giftstream/internal/wallet"
)

// RegisterWalletRoutes wires the actor's own wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, rewards *reward.Handler) {
	r.Get("/me/wallet", h.MyBalance)
	r.Get("/me/transactions", h.MyTransactions)
	r.Get("/me/rewards", rewards.MyRewards)
}
