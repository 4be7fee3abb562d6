package reward

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes distribution records to admins and participants.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a reward HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RecordResponse is the JSON form of a Record.
type RecordResponse struct {
	EventKey       string    `json:"event_key"`
	Kind           string    `json:"kind"`
	SpenderID      string    `json:"spender_id"`
	BeneficiaryID  string    `json:"beneficiary_id"`
	AgencyID       string    `json:"agency_id,omitempty"`
	AdminID        string    `json:"admin_id"`
	Gross          int64     `json:"gross_amount"`
	SourceCurrency string    `json:"source_currency"`
	MintRate       string    `json:"mint_rate"`
	TotalTokens    int64     `json:"total_tokens"`
	Undistributed  int64     `json:"undistributed"`
	Shares         []Share   `json:"shares"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToResponse renders a record for JSON output.
func ToResponse(rec Record) RecordResponse {
	return RecordResponse{
		EventKey:       rec.EventKey,
		Kind:           string(rec.Kind),
		SpenderID:      rec.SpenderID,
		BeneficiaryID:  rec.BeneficiaryID,
		AgencyID:       rec.AgencyID,
		AdminID:        rec.AdminID,
		Gross:          rec.Gross,
		SourceCurrency: string(rec.SourceCurrency),
		MintRate:       rec.MintRate.String(),
		TotalTokens:    rec.TotalTokens,
		Undistributed:  rec.Undistributed,
		Shares:         rec.Shares,
		CreatedAt:      rec.CreatedAt,
	}
}

// eventKey reads the path parameter; clients may percent-encode the colon.
func eventKey(c *fiber.Ctx) string {
	raw := c.Params("eventKey")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

// Get returns one distribution record.
func (h *Handler) Get(c *fiber.Ctx) error {
	rec, err := h.engine.Get(c.UserContext(), eventKey(c))
	if err != nil {
		return MapError(err)
	}
	return c.JSON(ToResponse(rec))
}

// MyRewards lists the distributions the actor spent on or received from.
func (h *Handler) MyRewards(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	recs, err := h.engine.History(c.UserContext(), actorID, c.QueryInt("limit", 50))
	if err != nil {
		return MapError(err)
	}
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ToResponse(rec))
	}
	return c.JSON(fiber.Map{"distributions": out})
}

// Replay reissues the credits of a stored distribution.
func (h *Handler) Replay(c *fiber.Ctx) error {
	outcome, err := h.engine.Replay(c.UserContext(), eventKey(c))
	var perr *PartialDistributionError
	if errors.As(err, &perr) {
		return c.Status(http.StatusAccepted).JSON(fiber.Map{
			"event_key": outcome.Record.EventKey,
			"credited":  len(perr.Succeeded),
			"failed":    len(perr.Failed),
			"error":     perr.Error(),
		})
	}
	if err != nil {
		return MapError(err)
	}
	return c.JSON(fiber.Map{
		"event_key": outcome.Record.EventKey,
		"credited":  len(outcome.Credited),
		"failed":    0,
	})
}

// MapError translates engine errors into HTTP errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrEventNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateEvent):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidEvent):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
