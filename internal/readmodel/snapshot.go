// Package readmodel turns wishlist state into the views served to guests
// and owners, keeps a subscriber's copy of a view current as events
// arrive, and caches snapshots in Redis.
package readmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/iliyamo/wishly/internal/model"
)

// Snapshot is wishlist state with every guest identifier replaced by its
// GuestKey.  It is safe to cache and to hand to any projection.
type Snapshot struct {
	Wishlist      model.Wishlist      `json:"wishlist"`
	OwnerName     *string             `json:"owner_name,omitempty"`
	Items         []model.Item        `json:"items"`
	Reservations  []ReservationEntry  `json:"reservations"`
	Contributions []ContributionEntry `json:"contributions"`
}

type ReservationEntry struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	GuestKey  string    `json:"guest_key"`
	GuestName string    `json:"guest_name"`
	CreatedAt time.Time `json:"created_at"`
}

type ContributionEntry struct {
	ID        string      `json:"id"`
	ItemID    string      `json:"item_id"`
	GuestKey  string      `json:"guest_key"`
	GuestName string      `json:"guest_name"`
	Amount    model.Cents `json:"amount"`
	Message   *string     `json:"message,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// GuestKey is the SHA-256 hex digest of a guest identifier.
func GuestKey(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

// NewSnapshot strips raw guest identifiers from st.
func NewSnapshot(st model.WishlistState) Snapshot {
	s := Snapshot{
		Wishlist:      st.Wishlist,
		OwnerName:     st.OwnerName,
		Items:         st.Items,
		Reservations:  make([]ReservationEntry, 0, len(st.Reservations)),
		Contributions: make([]ContributionEntry, 0, len(st.Contributions)),
	}
	if s.Items == nil {
		s.Items = []model.Item{}
	}
	for _, r := range st.Reservations {
		s.Reservations = append(s.Reservations, ReservationEntry{
			ID: r.ID, ItemID: r.ItemID, GuestKey: GuestKey(r.GuestIdentifier), GuestName: r.GuestName, CreatedAt: r.CreatedAt,
		})
	}
	for _, c := range st.Contributions {
		s.Contributions = append(s.Contributions, ContributionEntry{
			ID: c.ID, ItemID: c.ItemID, GuestKey: GuestKey(c.GuestIdentifier), GuestName: c.GuestName,
			Amount: c.Amount, Message: c.Message, CreatedAt: c.CreatedAt,
		})
	}
	return s
}
