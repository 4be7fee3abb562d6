package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/reward"
	"github.com/giftstream/giftstream/internal/wallet"
)

// RegisterAdminRoutes wires operator endpoints; r must already enforce admin.
func RegisterAdminRoutes(r fiber.Router, accounts *account.Handler, wallets *wallet.Handler, rewards *reward.Handler) {
	r.Get("/accounts/:accountId", accounts.Get)
	r.Patch("/accounts/:accountId/role", accounts.ChangeRole)
	r.Patch("/accounts/:accountId/status", accounts.SetStatus)
	r.Patch("/accounts/:accountId/agency", accounts.AssignAgency)
	r.Post("/accounts/:accountId/credit", wallets.AdminCredit)
	r.Get("/accounts/:accountId/wallet", wallets.AccountBalance)
	r.Get("/accounts/:accountId/reconcile", wallets.Reconcile)

	r.Get("/distributions/:eventKey", rewards.Get)
	r.Post("/distributions/:eventKey/replay", rewards.Replay)
}
