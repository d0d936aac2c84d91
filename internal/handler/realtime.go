package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/realtime"
	"github.com/iliyamo/wishly/internal/service"
)

// RealtimeHandler upgrades GET /api/v1/ws/:wishlist_id to a websocket
// subscribed to the wishlist's events.
type RealtimeHandler struct {
	Wishlists *service.WishlistService
	Server    *realtime.Server
	Log       *logrus.Entry
}

func NewRealtimeHandler(w *service.WishlistService, s *realtime.Server, log *logrus.Entry) *RealtimeHandler {
	return &RealtimeHandler{Wishlists: w, Server: s, Log: log}
}

// Subscribe answers 404 for unknown wishlists before upgrading.  After the
// upgrade the connection is owned by the realtime server until it closes.
func (h *RealtimeHandler) Subscribe(c echo.Context) error {
	id := c.Param("wishlist_id")
	ctx, cancel := requestContext(c)
	err := h.Wishlists.Exists(ctx, id)
	cancel()
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Server.Serve(c.Response(), c.Request(), id); err != nil {
		h.Log.WithError(err).WithField("wishlist_id", id).Debug("websocket closed")
	}
	return nil
}
