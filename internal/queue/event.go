// Package queue defines the wishlist events pushed to realtime subscribers
// and relays them between server instances over a RabbitMQ fanout
// exchange.
package queue

import (
	"time"

	"github.com/iliyamo/wishly/internal/model"
)

// EventType names a wishlist change.  The values are part of the websocket
// protocol.
type EventType string

const (
	ItemReserved      EventType = "item_reserved"
	ItemUnreserved    EventType = "item_unreserved"
	ContributionAdded EventType = "contribution_added"
	ItemAdded         EventType = "item_added"
	ItemUpdated       EventType = "item_updated"
	ItemDeleted       EventType = "item_deleted"
	ItemsReordered    EventType = "items_reordered"
	WishlistUpdated   EventType = "wishlist_updated"
	WishlistDeleted   EventType = "wishlist_deleted"

	// Ping and Pong are the application heartbeat frames.
	Ping EventType = "ping"
	Pong EventType = "pong"
)

// Event is one message on a wishlist channel.  Reservation events carry
// the resulting reserved flag; contribution events carry the new absolute
// totals so a subscriber can patch its copy without refetching.  Structural
// events only identify the item and tell the subscriber to refetch.  Guest
// identity never appears in an event.
type Event struct {
	Type               EventType    `json:"type"`
	WishlistID         string       `json:"wishlist_id,omitempty"`
	ItemID             string       `json:"item_id,omitempty"`
	IsReserved         *bool        `json:"is_reserved,omitempty"`
	ContributionTotal  *model.Cents `json:"contribution_total,omitempty"`
	ContributionCount  *int         `json:"contribution_count,omitempty"`
	ProgressPercentage *float64     `json:"progress_percentage,omitempty"`
	ItemIDs            []string     `json:"item_ids,omitempty"`
	SentAt             time.Time    `json:"sent_at"`
}

// Structural reports whether the event changes the shape of the wishlist
// (items added, removed, edited or moved) rather than guest state.
func (e Event) Structural() bool {
	switch e.Type {
	case ItemAdded, ItemUpdated, ItemDeleted, ItemsReordered, WishlistUpdated, WishlistDeleted:
		return true
	}
	return false
}

func ReservedEvent(wishlistID, itemID string, reserved bool) Event {
	t := ItemReserved
	if !reserved {
		t = ItemUnreserved
	}
	return Event{Type: t, WishlistID: wishlistID, ItemID: itemID, IsReserved: &reserved, SentAt: now()}
}

func ContributionEvent(wishlistID, itemID string, total model.Cents, count int, progress float64) Event {
	return Event{
		Type:               ContributionAdded,
		WishlistID:         wishlistID,
		ItemID:             itemID,
		ContributionTotal:  &total,
		ContributionCount:  &count,
		ProgressPercentage: &progress,
		SentAt:             now(),
	}
}

// ItemEvent builds item_added, item_updated or item_deleted.
func ItemEvent(t EventType, wishlistID, itemID string) Event {
	return Event{Type: t, WishlistID: wishlistID, ItemID: itemID, SentAt: now()}
}

func ReorderEvent(wishlistID string, itemIDs []string) Event {
	return Event{Type: ItemsReordered, WishlistID: wishlistID, ItemIDs: itemIDs, SentAt: now()}
}

// WishlistEvent builds wishlist_updated or wishlist_deleted.
func WishlistEvent(t EventType, wishlistID string) Event {
	return Event{Type: t, WishlistID: wishlistID, SentAt: now()}
}

func now() time.Time { return time.Now().UTC() }
