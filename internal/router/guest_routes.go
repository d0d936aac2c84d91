package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wishly/internal/handler"
	"github.com/iliyamo/wishly/internal/middleware"
)

// RegisterGuest registers the anonymous routes.  A bearer token is
// optional everywhere and only used to recognise the owner.  limit guards
// the mutations.
func RegisterGuest(e *echo.Echo, g *handler.GuestHandler, p *handler.PublicHandler, rt *handler.RealtimeHandler,
	jwtSecret string, limit echo.MiddlewareFunc) {
	api := e.Group(APIPrefix, middleware.OptionalJWT(jwtSecret))

	api.GET("/wishlists/public/:share_token", p.Show)

	api.POST("/items/:id/reserve", g.Reserve, limit)
	api.DELETE("/reservations/:id", g.Unreserve, limit)
	api.POST("/items/:id/contribute", g.Contribute, limit)

	if rt != nil {
		api.GET("/ws/:wishlist_id", rt.Subscribe)
	}
}
