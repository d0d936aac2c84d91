package readmodel

import "github.com/iliyamo/wishly/internal/queue"

// Model is a subscriber's local copy of a wishlist view.  Events are
// applied one at a time from a single goroutine; every patch is
// idempotent, so a duplicated or replayed event leaves the view as it was.
type Model struct {
	view WishlistView
	idx  map[string]int
}

// NewModel starts a model from a freshly fetched view.
func NewModel(v WishlistView) *Model {
	m := &Model{}
	m.Reset(v)
	return m
}

// Reset replaces the local copy after a full resync.
func (m *Model) Reset(v WishlistView) {
	m.view = v
	m.idx = indexItems(v.Items)
}

// View returns the current copy.
func (m *Model) View() WishlistView { return m.view }

// Item looks up one item of the current copy.
func (m *Model) Item(id string) (ItemView, bool) {
	i, ok := m.idx[id]
	if !ok {
		return ItemView{}, false
	}
	return m.view.Items[i], true
}

// Apply patches the model with ev and reports whether the caller must
// refetch the whole view instead.  Structural events always ask for a
// refetch since their payload does not describe the new shape; so does a
// patch for an item the model does not know, which means an earlier
// item_added was missed or arrived out of order.
func (m *Model) Apply(ev queue.Event) (needsResync bool) {
	if ev.WishlistID != "" && ev.WishlistID != m.view.Wishlist.ID {
		return false
	}
	if ev.Structural() {
		return true
	}
	switch ev.Type {
	case queue.ItemReserved, queue.ItemUnreserved:
		i, ok := m.idx[ev.ItemID]
		if !ok {
			return true
		}
		reserved := ev.Type == queue.ItemReserved
		if ev.IsReserved != nil {
			reserved = *ev.IsReserved
		}
		it := &m.view.Items[i]
		it.IsReserved = reserved
		if !reserved {
			it.MyReservationID = nil
		}
		return false
	case queue.ContributionAdded:
		i, ok := m.idx[ev.ItemID]
		if !ok {
			return true
		}
		if ev.ContributionCount == nil || ev.ContributionTotal == nil {
			return true
		}
		it := &m.view.Items[i]
		// Counts only grow; an older or repeated event is ignored.
		if *ev.ContributionCount <= it.ContributionCount {
			return false
		}
		it.ContributionTotal = *ev.ContributionTotal
		it.ContributionCount = *ev.ContributionCount
		if ev.ProgressPercentage != nil {
			it.ProgressPercentage = *ev.ProgressPercentage
		}
		return false
	}
	return false
}
