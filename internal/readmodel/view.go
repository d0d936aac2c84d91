package readmodel

import (
	"crypto/subtle"
	"time"

	"github.com/iliyamo/wishly/internal/model"
)

// Viewer describes who is looking at a wishlist.
type Viewer struct {
	// GuestIdentifier, when presented, lets the guest see which
	// reservation is theirs.
	GuestIdentifier string
	// IsOwner selects the owner projection.
	IsOwner bool
}

// WishlistView is the payload of GET /wishlists/public/:share_token and of
// the owner's wishlist detail.
type WishlistView struct {
	Wishlist WishlistInfo `json:"wishlist"`
	Items    []ItemView   `json:"items"`
	IsOwner  bool         `json:"is_owner"`
}

type WishlistInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	OwnerName   *string `json:"owner_name"`
	Description *string `json:"description"`
	Occasion    *string `json:"occasion"`
	EventDate   *string `json:"event_date"`
	ShareToken  string  `json:"share_token"`
	IsActive    bool    `json:"is_active"`
}

// ItemView is an item with its derived guest state.
type ItemView struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        *string       `json:"description"`
	URL                *string       `json:"url"`
	ImageURL           *string       `json:"image_url"`
	Price              *model.Cents  `json:"price"`
	IsGroupGift        bool          `json:"is_group_gift"`
	SortOrder          int           `json:"sort_order"`
	IsReserved         bool          `json:"is_reserved"`
	ContributionTotal  model.Cents   `json:"contribution_total"`
	ContributionCount  int           `json:"contribution_count"`
	ProgressPercentage float64       `json:"progress_percentage"`
	MyReservationID    *string       `json:"my_reservation_id,omitempty"`
	Contributors       []Contributor `json:"contributors,omitempty"`
}

// Contributor is a group gift pledge as other guests see it.
type Contributor struct {
	GuestName string      `json:"guest_name"`
	Amount    model.Cents `json:"amount"`
	Message   *string     `json:"message,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Project dispatches to OwnerView or PublicView.
func Project(s Snapshot, v Viewer) WishlistView {
	if v.IsOwner {
		return OwnerView(s)
	}
	return PublicView(s, v)
}

// PublicView is the guest projection.  Exclusive items only say whether
// they are reserved; the viewer's own reservation id is filled in when the
// presented identifier matches.  Group gifts list their contributors.
func PublicView(s Snapshot, v Viewer) WishlistView {
	key := ""
	if v.GuestIdentifier != "" {
		key = GuestKey(v.GuestIdentifier)
	}
	view := baseView(s)
	idx := indexItems(view.Items)

	for _, r := range s.Reservations {
		i, ok := idx[r.ItemID]
		if !ok {
			continue
		}
		if key != "" && subtle.ConstantTimeCompare([]byte(r.GuestKey), []byte(key)) == 1 {
			id := r.ID
			view.Items[i].MyReservationID = &id
		}
	}
	for _, c := range s.Contributions {
		i, ok := idx[c.ItemID]
		if !ok {
			continue
		}
		view.Items[i].Contributors = append(view.Items[i].Contributors, Contributor{
			GuestName: c.GuestName, Amount: c.Amount, Message: c.Message, CreatedAt: c.CreatedAt,
		})
	}
	return view
}

// OwnerView is the owner projection: reservation presence and funding
// totals only, never names, messages or identifiers.
func OwnerView(s Snapshot) WishlistView {
	view := baseView(s)
	view.IsOwner = true
	return view
}

func baseView(s Snapshot) WishlistView {
	w := s.Wishlist
	info := WishlistInfo{
		ID: w.ID, Title: w.Title, OwnerName: s.OwnerName, Description: w.Description, Occasion: w.Occasion,
		ShareToken: w.ShareToken, IsActive: w.IsActive,
	}
	if w.EventDate != nil {
		d := w.EventDate.Format("2006-01-02")
		info.EventDate = &d
	}

	reserved := make(map[string]bool, len(s.Reservations))
	for _, r := range s.Reservations {
		reserved[r.ItemID] = true
	}
	totals := make(map[string]model.Cents)
	counts := make(map[string]int)
	for _, c := range s.Contributions {
		totals[c.ItemID] += c.Amount
		counts[c.ItemID]++
	}

	items := make([]ItemView, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, ItemView{
			ID:                 it.ID,
			Name:               it.Name,
			Description:        it.Description,
			URL:                it.URL,
			ImageURL:           it.ImageURL,
			Price:              it.Price,
			IsGroupGift:        it.IsGroupGift,
			SortOrder:          it.SortOrder,
			IsReserved:         reserved[it.ID],
			ContributionTotal:  totals[it.ID],
			ContributionCount:  counts[it.ID],
			ProgressPercentage: model.Progress(totals[it.ID], it.Price),
		})
	}
	return WishlistView{Wishlist: info, Items: items}
}

func indexItems(items []ItemView) map[string]int {
	idx := make(map[string]int, len(items))
	for i, it := range items {
		idx[it.ID] = i
	}
	return idx
}
