package model

import "time"

// Wishlist is a named collection of items owned by exactly one account.
// Guests reach it through ShareToken; the owner manages it through the
// authenticated API.  Deleting a wishlist cascades to its items and their
// reservations and contributions.
//
// Fields:
//
//	ID          – primary key (UUID).
//	OwnerID     – account that created the wishlist.
//	Title       – display title.
//	Description – optional free text.
//	Occasion    – optional occasion label (birthday, wedding, ...).
//	EventDate   – optional date of the occasion.
//	ShareToken  – unguessable URL-safe slug used by the public page.
//	IsActive    – inactive wishlists stay readable but refuse guest actions.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type Wishlist struct {
	ID          string     `json:"id"`          // wishlists.id
	OwnerID     string     `json:"owner_id"`    // wishlists.owner_id
	Title       string     `json:"title"`       // wishlists.title
	Description *string    `json:"description"` // wishlists.description (nullable)
	Occasion    *string    `json:"occasion"`    // wishlists.occasion (nullable)
	EventDate   *time.Time `json:"event_date"`  // wishlists.event_date (nullable DATE)
	ShareToken  string     `json:"share_token"` // wishlists.share_token
	IsActive    bool       `json:"is_active"`   // wishlists.is_active
	CreatedAt   time.Time  `json:"created_at"`  // wishlists.created_at
	UpdatedAt   time.Time  `json:"updated_at"`  // wishlists.updated_at
}

// WishlistSummary is a row of the owner's wishlist list.
type WishlistSummary struct {
	Wishlist
	ItemCount int `json:"item_count"`
}

// WishlistState is everything needed to derive a read model: the wishlist,
// its items in display order and the guest activity on them.
type WishlistState struct {
	Wishlist      Wishlist
	OwnerName     *string // the owner's full name, if set
	Items         []Item
	Reservations  []Reservation
	Contributions []Contribution
}
