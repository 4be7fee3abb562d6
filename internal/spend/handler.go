package spend

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/ledger"
	"github.com/giftstream/giftstream/internal/reward"
	"github.com/giftstream/giftstream/internal/wallet"
)

// Handler exposes spend endpoints. The authenticated actor is always the
// spender.
type Handler struct {
	service *Service
}

// NewHandler constructs a spend handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type giftRequest struct {
	GiftID   string `json:"gift_id"`
	AnchorID string `json:"anchor_id"`
	Coins    int64  `json:"coins"`
}

type callRequest struct {
	CallID        string `json:"call_id"`
	AnchorID      string `json:"anchor_id"`
	Minutes       int64  `json:"minutes"`
	RatePerMinute int64  `json:"rate_per_minute"`
}

// SendGift processes a gift from the actor to an anchor.
func (h *Handler) SendGift(c *fiber.Ctx) error {
	var req giftRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actorID, _ := c.Locals("actor_id").(string)
	receipt, err := h.service.SendGift(c.UserContext(), Gift{
		ID:        req.GiftID,
		SpenderID: actorID,
		AnchorID:  req.AnchorID,
		Cost:      req.Coins,
	})
	if err != nil {
		return mapError(err)
	}
	return writeReceipt(c, receipt)
}

// SettleCall bills a finished call to the actor.
func (h *Handler) SettleCall(c *fiber.Ctx) error {
	var req callRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actorID, _ := c.Locals("actor_id").(string)
	receipt, err := h.service.SettleCall(c.UserContext(), Call{
		ID:            req.CallID,
		CallerID:      actorID,
		AnchorID:      req.AnchorID,
		Minutes:       req.Minutes,
		RatePerMinute: req.RatePerMinute,
	})
	if err != nil {
		return mapError(err)
	}
	return writeReceipt(c, receipt)
}

func writeReceipt(c *fiber.Ctx, r Receipt) error {
	status := http.StatusCreated
	if r.Repeated {
		status = http.StatusOK
	}
	body := fiber.Map{
		"event_key":             r.EventKey,
		"gross":                 r.Gross,
		"debit_transaction_id":  r.DebitTransactionID,
		"spender_coins":         r.SpenderCoins,
		"beans_credited":        r.BeansCredited,
		"repeated":              r.Repeated,
		"reward_tokens_minted":  r.Distribution.Record.TotalTokens,
		"reward_credits_issued": len(r.Distribution.Credited),
	}
	if r.DistributionErr != nil {
		body["distribution_error"] = r.DistributionErr.Error()
	}
	return c.Status(status).JSON(body)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrSelfSpend), errors.Is(err, ErrNotAnchor), errors.Is(err, ErrInvalidSpend),
		errors.Is(err, wallet.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, account.ErrNotFound), errors.Is(err, wallet.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrAccountInactive):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, reward.ErrConfiguration), errors.Is(err, reward.ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "rewards are unavailable, nothing was charged")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
