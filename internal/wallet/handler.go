package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/giftstream/giftstream/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type balanceResponse struct {
	AccountID    string    `json:"account_id"`
	Coins        int64     `json:"coins"`
	Beans        int64     `json:"beans"`
	RewardTokens int64     `json:"reward_tokens"`
	AsOf         time.Time `json:"as_of"`
}

type transactionResponse struct {
	ID           string    `json:"id"`
	Currency     string    `json:"currency"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Description  string    `json:"description"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:           tx.ID,
		Currency:     string(tx.Currency),
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		Description:  tx.Description,
		Reference:    tx.Reference,
		CreatedAt:    tx.CreatedAt,
	}
}

// MyBalance returns the authenticated actor's balances.
func (h *Handler) MyBalance(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	return h.balance(c, actorID)
}

// AccountBalance returns any account's balances; mounted behind admin auth.
func (h *Handler) AccountBalance(c *fiber.Ctx) error {
	return h.balance(c, c.Params("accountId"))
}

func (h *Handler) balance(c *fiber.Ctx, accountID string) error {
	b, err := h.service.GetBalance(c.UserContext(), accountID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(balanceResponse{
		AccountID:    b.AccountID,
		Coins:        b.Coins,
		Beans:        b.Beans,
		RewardTokens: b.RewardTokens,
		AsOf:         b.AsOf,
	})
}

// MyTransactions lists the actor's ledger history newest first.
func (h *Handler) MyTransactions(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	history, err := h.service.GetHistory(c.UserContext(), actorID, c.QueryInt("limit", 0))
	if err != nil {
		return mapError(err)
	}
	out := make([]transactionResponse, 0, len(history))
	for _, tx := range history {
		out = append(out, toTransactionResponse(tx))
	}
	return c.JSON(fiber.Map{"transactions": out})
}

type creditRequest struct {
	Currency       string `json:"currency"`
	Amount         int64  `json:"amount"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AdminCredit tops up coins or beans by hand. Reward tokens are only minted
// by the reward engine.
func (h *Handler) AdminCredit(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	currency, err := ledger.ParseCurrency(req.Currency)
	if err != nil || currency == ledger.RewardTokens {
		return fiber.NewError(http.StatusBadRequest, "currency must be coins or beans")
	}
	actorID, _ := c.Locals("actor_id").(string)
	description := req.Description
	if description == "" {
		description = "manual credit"
	}
	tx, err := h.service.Credit(c.UserContext(), Entry{
		AccountID:      c.Params("accountId"),
		Currency:       currency,
		Amount:         req.Amount,
		Description:    description,
		Reference:      actorID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Reconcile reports whether materialized balances match the log.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	recs, err := h.service.Reconcile(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return mapError(err)
	}
	out := make([]fiber.Map, 0, len(recs))
	balanced := true
	for _, r := range recs {
		balanced = balanced && r.Balanced()
		out = append(out, fiber.Map{
			"currency":     r.Currency,
			"materialized": r.Materialized,
			"computed":     r.Computed,
			"balanced":     r.Balanced(),
		})
	}
	return c.JSON(fiber.Map{"account_id": c.Params("accountId"), "balanced": balanced, "currencies": out})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrNotSpendable), errors.Is(err, ledger.ErrUnknownCurrency):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAccountInactive):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return fiber.NewError(http.StatusConflict, "duplicate transaction")
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
