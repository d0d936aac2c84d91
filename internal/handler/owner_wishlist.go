package handler // handler package contains owner-specific wishlist handlers

import (
	"net/http" // http provides status code constants

	"github.com/labstack/echo/v4" // echo is the web framework used for handlers
	"github.com/sirupsen/logrus"  // structured logging for unexpected failures

	"github.com/iliyamo/wishly/internal/service" // wishlist business rules
)

// OwnerHandler serves the owner's management endpoints.  Every route sits
// behind JWTAuth; another owner's wishlist is reported as not found.
type OwnerHandler struct {
	Wishlists *service.WishlistService
	Log       *logrus.Entry
}

// NewOwnerHandler constructs a new OwnerHandler and panics if the service is nil
func NewOwnerHandler(w *service.WishlistService, log *logrus.Entry) *OwnerHandler {
	if w == nil {
		panic("nil service passed to NewOwnerHandler")
	}
	return &OwnerHandler{Wishlists: w, Log: log}
}

// ListWishlists handles GET /api/v1/wishlists and returns the owner's wishlists, newest first
func (h *OwnerHandler) ListWishlists(c echo.Context) error {
	ownerID, err := getUserID(c) // extract the owner ID from context
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Wishlists.List(ctx, ownerID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CreateWishlist handles POST /api/v1/wishlists
func (h *OwnerHandler) CreateWishlist(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	var body service.WishlistInput // bind the JSON payload
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	w, err := h.Wishlists.Create(ctx, ownerID, body)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, w) // return 201 and the created wishlist
}

// GetWishlist handles GET /api/v1/wishlists/:id and returns the owner
// projection: reservation presence and funding totals, never who.
func (h *OwnerHandler) GetWishlist(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	view, err := h.Wishlists.Get(ctx, ownerID, c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateWishlist handles PUT/PATCH /api/v1/wishlists/:id.  Only the fields
// present in the body change.
func (h *OwnerHandler) UpdateWishlist(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	var body service.WishlistPatch
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	w, err := h.Wishlists.Update(ctx, ownerID, c.Param("id"), body)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, w)
}

// DeleteWishlist handles DELETE /api/v1/wishlists/:id.  Items,
// reservations and contributions go with it.
func (h *OwnerHandler) DeleteWishlist(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Wishlists.Delete(ctx, ownerID, c.Param("id")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
