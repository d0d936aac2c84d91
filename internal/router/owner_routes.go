package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wishly/internal/handler"    // owner handlers
	"github.com/iliyamo/wishly/internal/middleware" // JWT middleware
)

// RegisterOwner registers the owner's wishlist and item management under
// /api/v1.  All routes require a valid JWT.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)
	g := e.Group(APIPrefix)

	// ---- Wishlists ----
	g.GET("/wishlists", o.ListWishlists, auth)
	g.POST("/wishlists", o.CreateWishlist, auth)
	g.GET("/wishlists/:id", o.GetWishlist, auth)
	g.PUT("/wishlists/:id", o.UpdateWishlist, auth)
	g.PATCH("/wishlists/:id", o.UpdateWishlist, auth) // alias for clients that use PATCH
	g.DELETE("/wishlists/:id", o.DeleteWishlist, auth)

	// ---- Items ----
	g.POST("/wishlists/:id/items", o.AddItem, auth)
	g.PUT("/wishlists/:id/items/reorder", o.ReorderItems, auth)
	g.PUT("/items/:id", o.UpdateItem, auth)
	g.PATCH("/items/:id", o.UpdateItem, auth)
	g.DELETE("/items/:id", o.DeleteItem, auth)
}
