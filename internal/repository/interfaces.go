package repository

import (
	"context"
	"time"

	"github.com/iliyamo/wishly/internal/model"
)

// WishlistRepository persists wishlists and loads the full state used to
// build read models.
type WishlistRepository interface {
	Create(ctx context.Context, w *model.Wishlist) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.WishlistSummary, error)
	GetByID(ctx context.Context, id string) (model.Wishlist, error)
	GetByShareToken(ctx context.Context, token string) (model.Wishlist, error)
	Update(ctx context.Context, w *model.Wishlist) error
	Delete(ctx context.Context, id string) error
	// LoadState reads the wishlist, its items, reservations and
	// contributions from one consistent snapshot.
	LoadState(ctx context.Context, id string) (model.WishlistState, error)
}

// ItemRepository persists wishlist items.
type ItemRepository interface {
	// Create appends the item after the last one of its wishlist.
	Create(ctx context.Context, it *model.Item) error
	GetContext(ctx context.Context, id string) (model.ItemContext, error)
	// Update rewrites the editable fields while holding the item row lock.
	// It returns ErrGroupGiftLocked or ErrPriceBelowTotal when the change
	// would invalidate existing guest activity.
	Update(ctx context.Context, it *model.Item) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, wishlistID string, itemIDs []string) error
}

// ReservationRepository grants and releases the per item reservation lock.
type ReservationRepository interface {
	// Create inserts the reservation if the item is reservable.  The
	// second concurrent caller gets ErrAlreadyReserved.
	Create(ctx context.Context, r *model.Reservation) error
	// DeleteForGuest removes the reservation when guestIdentifier matches
	// and returns it with the owning wishlist id.
	DeleteForGuest(ctx context.Context, reservationID, guestIdentifier string) (model.Reservation, string, error)
}

// ContributionTotals describes the effect of a recorded contribution.
type ContributionTotals struct {
	WishlistID  string
	Price       *model.Cents
	Requested   model.Cents
	Clamped     bool
	TotalBefore model.Cents
	TotalAfter  model.Cents
	Count       int
}

// ContributionRepository records pledges toward group gifts.
type ContributionRepository interface {
	// CreateClamped re-reads the item total under a row lock, caps
	// c.Amount to the remaining balance and inserts the contribution.
	// c.Amount holds the recorded amount on return.
	CreateClamped(ctx context.Context, c *model.Contribution) (ContributionTotals, error)
}

// UserRepository backs the account endpoints.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string, fullName *string) (string, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// TokenRepository persists hashed refresh tokens.
type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	// ConsumeRefresh revokes a live token and returns its user, or
	// ErrNoRows when the token is unknown, expired or already used.
	ConsumeRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}
