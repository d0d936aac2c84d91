// Package repository defines the persistence contracts of the wishlist
// service, their MySQL implementations and the error values shared by
// both.  The sentinels let higher layers tell failure scenarios apart: a
// lost reservation race is ErrAlreadyReserved, a contribution to an item
// that has reached its price is ErrFullyFunded, and so on.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own: an owner touching another owner's wishlist,
// or a guest releasing a reservation made with a different identifier.
// Handlers translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// existing dependent records.  Handlers translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

var (
	ErrWishlistNotFound    = errors.New("wishlist not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrEmailExists         = errors.New("email already exists")
)

// Reservation and contribution outcomes.
var (
	// ErrAlreadyReserved is the loser's error when two guests race for the
	// same item.  The unique key on reservations.item_id decides the race.
	ErrAlreadyReserved = errors.New("item is already reserved")

	ErrGroupGiftNotReservable = errors.New("group gifts cannot be reserved")
	ErrNotGroupGift           = errors.New("item is not a group gift")
	ErrFullyFunded            = errors.New("item is already fully funded")
	ErrWishlistInactive       = errors.New("wishlist is not active")
)

// Owner side item rules.  Both wrap ErrConflict.
var (
	ErrGroupGiftLocked = wrapConflict("group gift mode cannot change while the item has reservations or contributions")
	ErrPriceBelowTotal = wrapConflict("price cannot be lower than the amount already contributed")
	ErrInvalidOrder    = errors.New("item order must list every item of the wishlist exactly once")
)

type conflictError struct{ msg string }

func (e conflictError) Error() string { return e.msg }
func (e conflictError) Unwrap() error { return ErrConflict }

func wrapConflict(msg string) error { return conflictError{msg: msg} }

// isDuplicateKey reports whether err is a MySQL unique key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// ErrNoRows is returned by the account lookups when no row matches.  It is
// sql.ErrNoRows so callers can test either.
var ErrNoRows = sql.ErrNoRows
