// Package handler exposes the HTTP handlers of the wishlist API: owner
// management behind JWT auth, the anonymous guest actions, the public share
// page and the realtime websocket endpoint.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/middleware"
	"github.com/iliyamo/wishly/internal/service"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, errorBody{Error: msg, Code: code})
}

// respondError maps a service error to its HTTP status.  Unknown errors are
// logged and reported as 500 without detail.
func respondError(c echo.Context, log *logrus.Entry, err error) error {
	switch {
	case errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrWishlistNotFound):
		return fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrAlreadyReserved):
		return fail(c, http.StatusConflict, "already_reserved", "item is already reserved")
	case errors.Is(err, service.ErrFullyFunded):
		return fail(c, http.StatusConflict, "fully_funded", "item is already fully funded")
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, service.ErrInvalidOrder):
		return fail(c, http.StatusUnprocessableEntity, "invalid", err.Error())
	case service.IsValidation(err):
		return fail(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, service.ErrConflict):
		return fail(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fail(c, http.StatusGatewayTimeout, "timeout", "request timed out")
	}
	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method, "route": c.Path(),
	}).Error("request failed")
	return fail(c, http.StatusInternalServerError, "internal", "internal error")
}

// getUserID extracts the owner id set by the JWT middleware.
func getUserID(c echo.Context) (string, error) {
	if v, ok := middleware.UserID(c); ok {
		return v, nil
	}
	return "", errors.New("invalid user_id in context")
}

// optionalUserID is getUserID for routes where auth is optional.
func optionalUserID(c echo.Context) string {
	uid, _ := getUserID(c)
	return uid
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
