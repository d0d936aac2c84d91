package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/middleware"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/service"
)

// GuestHandler serves the anonymous guest actions.  Guests identify
// themselves with the pseudonymous identifier their client generated; an
// owner token, when present, is only used to stop owners acting on their
// own wishlists.
type GuestHandler struct {
	Reservations  *service.ReservationService
	Contributions *service.ContributionService
	Log           *logrus.Entry
}

func NewGuestHandler(r *service.ReservationService, c *service.ContributionService, log *logrus.Entry) *GuestHandler {
	if r == nil || c == nil {
		panic("nil service passed to NewGuestHandler")
	}
	return &GuestHandler{Reservations: r, Contributions: c, Log: log}
}

type reserveReq struct {
	GuestName       string `json:"guest_name"`
	GuestIdentifier string `json:"guest_identifier"`
}

type reservationResp struct {
	ReservationID string    `json:"reservation_id"`
	ItemID        string    `json:"item_id"`
	GuestName     string    `json:"guest_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Reserve handles POST /api/v1/items/:id/reserve.
func (h *GuestHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Reservations.Reserve(ctx, service.ReserveInput{
		ItemID:          c.Param("id"),
		GuestIdentifier: guestIdentifier(c, req.GuestIdentifier),
		GuestName:       req.GuestName,
		RequesterUserID: optionalUserID(c),
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, reservationResp{
		ReservationID: res.ID,
		ItemID:        res.ItemID,
		GuestName:     res.GuestName,
		CreatedAt:     res.CreatedAt,
	})
}

// Unreserve handles DELETE /api/v1/reservations/:id.  The identifier may
// come in the body or the X-Guest-Identifier header.
func (h *GuestHandler) Unreserve(c echo.Context) error {
	var req struct {
		GuestIdentifier string `json:"guest_identifier"`
	}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
		}
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Reservations.Unreserve(ctx, c.Param("id"), guestIdentifier(c, req.GuestIdentifier)); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type contributeReq struct {
	Amount          model.Cents `json:"amount"`
	GuestName       string      `json:"guest_name"`
	GuestIdentifier string      `json:"guest_identifier"`
	Message         *string     `json:"message"`
}

type contributionResp struct {
	ContributionID    string      `json:"contribution_id"`
	ItemID            string      `json:"item_id"`
	Amount            model.Cents `json:"amount"`
	RequestedAmount   model.Cents `json:"requested_amount"`
	Clamped           bool        `json:"clamped"`
	ContributionTotal model.Cents `json:"contribution_total"`
	ContributionCount int         `json:"contribution_count"`
	ProgressBefore    float64     `json:"progress_before"`
	ProgressAfter     float64     `json:"progress_after"`
	Completed         bool        `json:"completed"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Contribute handles POST /api/v1/items/:id/contribute.  Amounts larger
// than what the item still needs are recorded capped; the response says so
// with clamped=true.
func (h *GuestHandler) Contribute(c echo.Context) error {
	var req contributeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Contributions.Contribute(ctx, service.ContributeInput{
		ItemID:          c.Param("id"),
		Amount:          req.Amount,
		GuestIdentifier: guestIdentifier(c, req.GuestIdentifier),
		GuestName:       req.GuestName,
		Message:         req.Message,
		RequesterUserID: optionalUserID(c),
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, contributionResp{
		ContributionID:    res.Contribution.ID,
		ItemID:            res.Contribution.ItemID,
		Amount:            res.Contribution.Amount,
		RequestedAmount:   res.RequestedAmount,
		Clamped:           res.Clamped,
		ContributionTotal: res.ContributionTotal,
		ContributionCount: res.ContributionCount,
		ProgressBefore:    res.ProgressBefore,
		ProgressAfter:     res.ProgressAfter,
		Completed:         res.Completed,
		CreatedAt:         res.Contribution.CreatedAt,
	})
}

// guestIdentifier prefers the body value and falls back to the header.
func guestIdentifier(c echo.Context, body string) string {
	if body != "" {
		return body
	}
	return c.Request().Header.Get(middleware.GuestHeader)
}
