package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/middleware"
	"github.com/iliyamo/wishly/internal/service"
)

// PublicHandler serves the share link page data.
type PublicHandler struct {
	Wishlists *service.WishlistService
	Log       *logrus.Entry
}

func NewPublicHandler(w *service.WishlistService, log *logrus.Entry) *PublicHandler {
	return &PublicHandler{Wishlists: w, Log: log}
}

// Show handles GET /api/v1/wishlists/public/:share_token.  A guest that
// sends X-Guest-Identifier sees which reservations are theirs; the owner,
// when authenticated, gets the owner projection.
func (h *PublicHandler) Show(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Wishlists.PublicView(ctx, c.Param("share_token"),
		c.Request().Header.Get(middleware.GuestHeader), optionalUserID(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, view)
}
