package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	AgencyID    string `json:"agency_id"`
	ReferrerID  string `json:"referrer_id"`
}

type accountResponse struct {
	ID            string `json:"id"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	DisplayName   string `json:"display_name"`
	AgencyID      string `json:"agency_id,omitempty"`
	ReferrerID    string `json:"referrer_id,omitempty"`
	ReferralLevel int    `json:"referral_level"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Role:          string(a.Role),
		Status:        string(a.Status),
		DisplayName:   a.DisplayName,
		AgencyID:      a.AgencyID,
		ReferrerID:    a.ReferrerID,
		ReferralLevel: a.ReferralLevel,
	}
}

// Register handles account onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.service.Register(c.UserContext(), RegisterInput{
		Role:        Role(req.Role),
		DisplayName: req.DisplayName,
		AgencyID:    req.AgencyID,
		ReferrerID:  req.ReferrerID,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(acct))
}

// Get returns an account by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	acct, err := h.service.Get(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(acct))
}

// ChangeRole lets an admin change an account role.
func (h *Handler) ChangeRole(c *fiber.Ctx) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actorID, _ := c.Locals("actor_id").(string)
	acct, err := h.service.ChangeRole(c.UserContext(), actorID, c.Params("accountId"), Role(req.Role))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(acct))
}

// SetStatus lets an admin ban, suspend, delete or reactivate an account.
func (h *Handler) SetStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actorID, _ := c.Locals("actor_id").(string)
	acct, err := h.service.SetStatus(c.UserContext(), actorID, c.Params("accountId"), Status(req.Status))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(acct))
}

// AssignAgency lets an admin attach an anchor to an agency.
func (h *Handler) AssignAgency(c *fiber.Ctx) error {
	var req struct {
		AgencyID string `json:"agency_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actorID, _ := c.Locals("actor_id").(string)
	acct, err := h.service.AssignAgency(c.UserContext(), actorID, c.Params("accountId"), req.AgencyID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(acct))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrReferrerNotFound), errors.Is(err, ErrInvalidAgency):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
