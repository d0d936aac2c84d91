package model

import "time"

// Item is a single gift on a wishlist.  A regular item can be reserved by
// one guest; a group gift (IsGroupGift) collects contributions toward
// Price instead and can never be reserved.
//
// Fields:
//
//	ID          – primary key (UUID).
//	WishlistID  – owning wishlist.
//	Name        – display name.
//	Description – optional free text.
//	URL         – optional shop link.
//	ImageURL    – optional picture.
//	Price       – optional price in cents.  Group gifts without a price
//	              accept contributions of any size and report no progress.
//	IsGroupGift – crowd funding mode.
//	SortOrder   – position within the wishlist, ascending.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type Item struct {
	ID          string    `json:"id"`            // items.id
	WishlistID  string    `json:"wishlist_id"`   // items.wishlist_id
	Name        string    `json:"name"`          // items.name
	Description *string   `json:"description"`   // items.description (nullable)
	URL         *string   `json:"url"`           // items.url (nullable)
	ImageURL    *string   `json:"image_url"`     // items.image_url (nullable)
	Price       *Cents    `json:"price"`         // items.price_cents (nullable)
	IsGroupGift bool      `json:"is_group_gift"` // items.is_group_gift
	SortOrder   int       `json:"sort_order"`    // items.sort_order
	CreatedAt   time.Time `json:"created_at"`    // items.created_at
	UpdatedAt   time.Time `json:"updated_at"`    // items.updated_at
}

// ItemContext is an item together with the bits of its wishlist that the
// guest services need to validate an action.
type ItemContext struct {
	Item           Item
	OwnerID        string
	WishlistActive bool
}
