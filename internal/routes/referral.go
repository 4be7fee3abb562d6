package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/referral"
)

// RegisterReferralRoutes exposes chain lookups.
func RegisterReferralRoutes(r fiber.Router, chains referral.ChainResolver) {
	r.Get("/accounts/:accountId/referral-chain", func(c *fiber.Ctx) error {
		accountID := c.Params("accountId")
		depth := c.QueryInt("depth", 0)
		if depth < 0 {
			return fiber.NewError(http.StatusBadRequest, "depth must not be negative")
		}
		chain, err := chains.ResolveChain(c.UserContext(), accountID, depth)
		if err != nil {
			if errors.Is(err, referral.ErrAccountNotFound) {
				return fiber.NewError(http.StatusNotFound, err.Error())
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"account_id": accountID, "chain": chain})
	})
}
