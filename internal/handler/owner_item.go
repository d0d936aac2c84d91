package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wishly/internal/service"
)

// AddItem handles POST /api/v1/wishlists/:id/items
func (h *OwnerHandler) AddItem(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	var body service.ItemInput
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	it, err := h.Wishlists.AddItem(ctx, ownerID, c.Param("id"), body)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, it)
}

// UpdateItem handles PUT/PATCH /api/v1/items/:id.  Changing the group gift
// flag after guests acted, or pricing a group gift below its pledges,
// answers 409.
func (h *OwnerHandler) UpdateItem(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	var body service.ItemPatch
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	it, err := h.Wishlists.UpdateItem(ctx, ownerID, c.Param("id"), body)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, it)
}

// DeleteItem handles DELETE /api/v1/items/:id
func (h *OwnerHandler) DeleteItem(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Wishlists.DeleteItem(ctx, ownerID, c.Param("id")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderItems handles PUT /api/v1/wishlists/:id/items/reorder with
// {"item_ids": [...]} listing every item once.
func (h *OwnerHandler) ReorderItems(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	var body struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid", "invalid request body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Wishlists.ReorderItems(ctx, ownerID, c.Param("id"), body.ItemIDs); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
