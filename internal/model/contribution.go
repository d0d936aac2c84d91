package model

import (
	"math"
	"time"
)

// MaxMessageLen bounds the optional note attached to a contribution.
const MaxMessageLen = 500

// Contribution is a guest's pledge toward a group gift.  Contributions are
// append only.
type Contribution struct {
	ID              string    // contributions.id
	ItemID          string    // contributions.item_id
	GuestIdentifier string    // contributions.guest_identifier
	GuestName       string    // contributions.guest_name
	Amount          Cents     // contributions.amount_cents (> 0)
	Message         *string   // contributions.message (nullable)
	CreatedAt       time.Time // contributions.created_at
}

// ClampContribution applies the remaining balance policy to a requested
// amount, given the item price and the current total.  ok is false when
// the item is already fully funded.  Without a price there is no cap.
// requested must be positive.
func ClampContribution(price *Cents, total, requested Cents) (effective Cents, clamped bool, ok bool) {
	if price == nil || *price <= 0 {
		return requested, false, true
	}
	remaining := *price - total
	if remaining <= 0 {
		return 0, false, false
	}
	if requested > remaining {
		return remaining, true, true
	}
	return requested, false, true
}

// Progress returns min(100, 100*total/price) rounded to two decimals, or 0
// when the item has no usable price.  It reads 100 only once total reaches
// price; an underfunded item tops out at 99.99.
func Progress(total Cents, price *Cents) float64 {
	if price == nil || *price <= 0 || total <= 0 {
		return 0
	}
	if total >= *price {
		return 100
	}
	return math.Min(math.Round(float64(total)*10000/float64(*price))/100, 99.99)
}

// FullyFunded reports whether total covers price.  Items without a price
// are never fully funded.
func FullyFunded(total Cents, price *Cents) bool {
	return price != nil && *price > 0 && total >= *price
}
