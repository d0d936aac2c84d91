package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/wishly/internal/model"
)

// ReservationRepo is the MySQL ReservationRepository.  The unique key on
// reservations.item_id is the mutex: whichever INSERT commits first owns
// the item and every other attempt fails with a duplicate key error.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts r if its item exists, is not a group gift and belongs to
// an active wishlist.  The conditions are part of the INSERT itself so an
// owner flipping the item to a group gift cannot slip in between a check
// and the write.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO reservations (id, item_id, guest_identifier, guest_name, created_at)
		 SELECT ?, i.id, ?, ?, ?
		   FROM items i JOIN wishlists w ON w.id = i.wishlist_id
		  WHERE i.id = ? AND i.is_group_gift = 0 AND w.is_active = 1`,
		res.ID, res.GuestIdentifier, res.GuestName, res.CreatedAt, res.ItemID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyReserved
		}
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return r.whyNotReservable(ctx, res.ItemID)
}

// whyNotReservable explains a conditional insert that matched no row.
func (r *ReservationRepo) whyNotReservable(ctx context.Context, itemID string) error {
	var group, active bool
	err := r.db.QueryRowContext(ctx,
		`SELECT i.is_group_gift, w.is_active FROM items i JOIN wishlists w ON w.id = i.wishlist_id WHERE i.id = ?`,
		itemID).Scan(&group, &active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrItemNotFound
	case err != nil:
		return err
	case group:
		return ErrGroupGiftNotReservable
	case !active:
		return ErrWishlistInactive
	}
	return ErrConflict
}

// DeleteForGuest releases a reservation.  The row is locked, the guest
// identifier compared in constant time and the row deleted, all in one
// transaction; a second call for the same id finds nothing.
func (r *ReservationRepo) DeleteForGuest(ctx context.Context, reservationID, guestIdentifier string) (model.Reservation, string, error) {
	var (
		res        model.Reservation
		wishlistID string
	)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx,
		`SELECT r.id, r.item_id, r.guest_identifier, r.guest_name, r.created_at, i.wishlist_id
		   FROM reservations r JOIN items i ON i.id = r.item_id
		  WHERE r.id = ? FOR UPDATE`, reservationID,
	).Scan(&res.ID, &res.ItemID, &res.GuestIdentifier, &res.GuestName, &res.CreatedAt, &wishlistID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, "", ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, "", err
	}
	if !SameGuest(res.GuestIdentifier, guestIdentifier) {
		return model.Reservation{}, "", ErrForbidden
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, reservationID); err != nil {
		return model.Reservation{}, "", err
	}
	if err = tx.Commit(); err != nil {
		return model.Reservation{}, "", err
	}
	committed = true
	return res, wishlistID, nil
}

// SameGuest compares two guest identifiers in constant time.
func SameGuest(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
