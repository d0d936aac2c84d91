// Package service holds the wishlist business rules: guest reservations,
// group gift contributions, owner management of wishlists and items, and
// the read side served to guests.  Every mutation commits through a
// repository first and only then notifies subscribers.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/wishly/internal/repository"
)

// Errors surfaced by the repositories, re-exported so handlers depend on
// one package.
var (
	ErrWishlistNotFound       = repository.ErrWishlistNotFound
	ErrItemNotFound           = repository.ErrItemNotFound
	ErrReservationNotFound    = repository.ErrReservationNotFound
	ErrAlreadyReserved        = repository.ErrAlreadyReserved
	ErrFullyFunded            = repository.ErrFullyFunded
	ErrForbidden              = repository.ErrForbidden
	ErrConflict               = repository.ErrConflict
	ErrGroupGiftNotReservable = repository.ErrGroupGiftNotReservable
	ErrNotGroupGift           = repository.ErrNotGroupGift
	ErrWishlistInactive       = repository.ErrWishlistInactive
	ErrInvalidOrder           = repository.ErrInvalidOrder
)

// ErrOwnItem rejects an owner acting as a guest on their own wishlist.
var ErrOwnItem = fmt.Errorf("%w: cannot reserve or contribute to your own item", repository.ErrForbidden)

// ErrValidation is wrapped by every input error.
var ErrValidation = errors.New("invalid input")

var (
	ErrGuestNameRequired       = invalid("guest name is required")
	ErrGuestNameTooLong        = invalid("guest name is too long")
	ErrGuestIdentifierRequired = invalid("guest identifier is required")
	ErrGuestIdentifierTooLong  = invalid("guest identifier is too long")
	ErrInvalidAmount           = invalid("amount must be greater than zero")
	ErrMessageTooLong          = invalid("message must be at most 500 characters")
	ErrTitleRequired           = invalid("title is required")
	ErrNameRequired            = invalid("name is required")
	ErrInvalidPrice            = invalid("price cannot be negative")
)

func invalid(msg string) error { return fmt.Errorf("%w: %s", ErrValidation, msg) }

// IsValidation reports whether err is an input error, including the
// repository outcomes that mean "this action does not apply to this item".
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrGroupGiftNotReservable) ||
		errors.Is(err, ErrNotGroupGift) ||
		errors.Is(err, ErrWishlistInactive) ||
		errors.Is(err, ErrInvalidOrder)
}
