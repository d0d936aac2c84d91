package model

import "time"

// Reservation is a guest's exclusive claim on a non group item.  There is
// at most one per item.  Only the guest presenting the same
// GuestIdentifier may release it.
//
// Fields:
//
//	ID              – primary key (UUID).
//	ItemID          – reserved item.
//	GuestIdentifier – opaque client generated token; never returned by the API.
//	GuestName       – display name the guest entered.
//	CreatedAt       – creation timestamp.
type Reservation struct {
	ID              string    // reservations.id
	ItemID          string    // reservations.item_id (unique)
	GuestIdentifier string    // reservations.guest_identifier
	GuestName       string    // reservations.guest_name
	CreatedAt       time.Time // reservations.created_at
}
