// Package memory is an in-process implementation of the repository
// contracts.  One mutex guards the whole store, which gives every
// operation the same atomicity the MySQL implementation gets from unique
// keys and row locks.  It backs the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/repository"
)

// Store holds all rows in maps keyed by id.
type Store struct {
	mu            sync.Mutex
	users         map[string]model.User
	tokens        map[string]model.RefreshToken
	wishlists     map[string]model.Wishlist
	items         map[string]model.Item
	reservations  map[string]model.Reservation
	reservedItems map[string]string // item id -> reservation id
	contributions []model.Contribution
	now           func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         map[string]model.User{},
		tokens:        map[string]model.RefreshToken{},
		wishlists:     map[string]model.Wishlist{},
		items:         map[string]model.Item{},
		reservations:  map[string]model.Reservation{},
		reservedItems: map[string]string{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Wishlists() repository.WishlistRepository         { return wishlistRepo{s} }
func (s *Store) Items() repository.ItemRepository                 { return itemRepo{s} }
func (s *Store) Reservations() repository.ReservationRepository   { return reservationRepo{s} }
func (s *Store) Contributions() repository.ContributionRepository { return contributionRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Tokens() repository.TokenRepository               { return tokenRepo{s} }

type wishlistRepo struct{ s *Store }

func (r wishlistRepo) Create(_ context.Context, w *model.Wishlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.wishlists {
		if other.ShareToken == w.ShareToken {
			return repository.ErrConflict
		}
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = r.s.now()
	w.UpdatedAt = w.CreatedAt
	r.s.wishlists[w.ID] = *w
	return nil
}

func (r wishlistRepo) ListByOwner(_ context.Context, ownerID string) ([]model.WishlistSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.WishlistSummary{}
	for _, w := range r.s.wishlists {
		if w.OwnerID != ownerID {
			continue
		}
		n := 0
		for _, it := range r.s.items {
			if it.WishlistID == w.ID {
				n++
			}
		}
		out = append(out, model.WishlistSummary{Wishlist: w, ItemCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r wishlistRepo) GetByID(_ context.Context, id string) (model.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wishlists[id]
	if !ok {
		return model.Wishlist{}, repository.ErrWishlistNotFound
	}
	return w, nil
}

func (r wishlistRepo) GetByShareToken(_ context.Context, token string) (model.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wishlists {
		if w.ShareToken == token {
			return w, nil
		}
	}
	return model.Wishlist{}, repository.ErrWishlistNotFound
}

func (r wishlistRepo) Update(_ context.Context, w *model.Wishlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.wishlists[w.ID]
	if !ok {
		return repository.ErrWishlistNotFound
	}
	cur.Title, cur.Description, cur.Occasion = w.Title, w.Description, w.Occasion
	cur.EventDate, cur.IsActive = w.EventDate, w.IsActive
	cur.UpdatedAt = r.s.now()
	r.s.wishlists[w.ID] = cur
	*w = cur
	return nil
}

func (r wishlistRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wishlists[id]; !ok {
		return repository.ErrWishlistNotFound
	}
	delete(r.s.wishlists, id)
	for itemID, it := range r.s.items {
		if it.WishlistID == id {
			r.s.deleteItemLocked(itemID)
		}
	}
	return nil
}

func (r wishlistRepo) LoadState(_ context.Context, id string) (model.WishlistState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wishlists[id]
	if !ok {
		return model.WishlistState{}, repository.ErrWishlistNotFound
	}
	st := model.WishlistState{Wishlist: w, Items: r.s.itemsOfLocked(id)}
	if u, ok := r.s.users[w.OwnerID]; ok {
		st.OwnerName = u.FullName
	}
	member := map[string]bool{}
	for _, it := range st.Items {
		member[it.ID] = true
	}
	for _, res := range r.s.reservations {
		if member[res.ItemID] {
			st.Reservations = append(st.Reservations, res)
		}
	}
	for _, c := range r.s.contributions {
		if member[c.ItemID] {
			st.Contributions = append(st.Contributions, c)
		}
	}
	return st, nil
}

func (s *Store) itemsOfLocked(wishlistID string) []model.Item {
	items := []model.Item{}
	for _, it := range s.items {
		if it.WishlistID == wishlistID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func (s *Store) deleteItemLocked(itemID string) {
	delete(s.items, itemID)
	if rid, ok := s.reservedItems[itemID]; ok {
		delete(s.reservations, rid)
		delete(s.reservedItems, itemID)
	}
	kept := s.contributions[:0]
	for _, c := range s.contributions {
		if c.ItemID != itemID {
			kept = append(kept, c)
		}
	}
	s.contributions = kept
}

func (s *Store) totalsLocked(itemID string) (model.Cents, int) {
	var (
		total model.Cents
		n     int
	)
	for _, c := range s.contributions {
		if c.ItemID == itemID {
			total += c.Amount
			n++
		}
	}
	return total, n
}

type itemRepo struct{ s *Store }

func (r itemRepo) Create(_ context.Context, it *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wishlists[it.WishlistID]; !ok {
		return repository.ErrWishlistNotFound
	}
	next := 0
	for _, other := range r.s.items {
		if other.WishlistID == it.WishlistID && other.SortOrder >= next {
			next = other.SortOrder + 1
		}
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.SortOrder = next
	it.CreatedAt = r.s.now()
	it.UpdatedAt = it.CreatedAt
	r.s.items[it.ID] = *it
	return nil
}

func (r itemRepo) GetContext(_ context.Context, id string) (model.ItemContext, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return model.ItemContext{}, repository.ErrItemNotFound
	}
	w := r.s.wishlists[it.WishlistID]
	return model.ItemContext{Item: it, OwnerID: w.OwnerID, WishlistActive: w.IsActive}, nil
}

func (r itemRepo) Update(_ context.Context, it *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.items[it.ID]
	if !ok {
		return repository.ErrItemNotFound
	}
	total, n := r.s.totalsLocked(it.ID)
	_, reserved := r.s.reservedItems[it.ID]
	if err := repository.CheckItemChange(cur.IsGroupGift, it, reserved || n > 0, total); err != nil {
		return err
	}
	cur.Name, cur.Description, cur.URL, cur.ImageURL = it.Name, it.Description, it.URL, it.ImageURL
	cur.Price, cur.IsGroupGift = it.Price, it.IsGroupGift
	cur.UpdatedAt = r.s.now()
	r.s.items[it.ID] = cur
	*it = cur
	return nil
}

func (r itemRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[id]; !ok {
		return repository.ErrItemNotFound
	}
	r.s.deleteItemLocked(id)
	return nil
}

func (r itemRepo) Reorder(_ context.Context, wishlistID string, itemIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var current []string
	for _, it := range r.s.itemsOfLocked(wishlistID) {
		current = append(current, it.ID)
	}
	if !repository.ValidOrder(current, itemIDs) {
		return repository.ErrInvalidOrder
	}
	for pos, id := range itemIDs {
		it := r.s.items[id]
		it.SortOrder = pos
		r.s.items[id] = it
	}
	return nil
}

type reservationRepo struct{ s *Store }

func (r reservationRepo) Create(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[res.ItemID]
	if !ok {
		return repository.ErrItemNotFound
	}
	if it.IsGroupGift {
		return repository.ErrGroupGiftNotReservable
	}
	if !r.s.wishlists[it.WishlistID].IsActive {
		return repository.ErrWishlistInactive
	}
	if _, taken := r.s.reservedItems[res.ItemID]; taken {
		return repository.ErrAlreadyReserved
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = r.s.now()
	r.s.reservations[res.ID] = *res
	r.s.reservedItems[res.ItemID] = res.ID
	return nil
}

func (r reservationRepo) DeleteForGuest(_ context.Context, reservationID, guestIdentifier string) (model.Reservation, string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[reservationID]
	if !ok {
		return model.Reservation{}, "", repository.ErrReservationNotFound
	}
	if !repository.SameGuest(res.GuestIdentifier, guestIdentifier) {
		return model.Reservation{}, "", repository.ErrForbidden
	}
	delete(r.s.reservations, reservationID)
	delete(r.s.reservedItems, res.ItemID)
	return res, r.s.items[res.ItemID].WishlistID, nil
}

type contributionRepo struct{ s *Store }

func (r contributionRepo) CreateClamped(_ context.Context, c *model.Contribution) (repository.ContributionTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[c.ItemID]
	if !ok {
		return repository.ContributionTotals{}, repository.ErrItemNotFound
	}
	if !it.IsGroupGift {
		return repository.ContributionTotals{}, repository.ErrNotGroupGift
	}
	if !r.s.wishlists[it.WishlistID].IsActive {
		return repository.ContributionTotals{}, repository.ErrWishlistInactive
	}
	total, n := r.s.totalsLocked(c.ItemID)
	effective, clamped, ok := model.ClampContribution(it.Price, total, c.Amount)
	if !ok {
		return repository.ContributionTotals{}, repository.ErrFullyFunded
	}
	totals := repository.ContributionTotals{
		WishlistID:  it.WishlistID,
		Price:       it.Price,
		Requested:   c.Amount,
		Clamped:     clamped,
		TotalBefore: total,
		TotalAfter:  total + effective,
		Count:       n + 1,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Amount = effective
	c.CreatedAt = r.s.now()
	r.s.contributions = append(r.s.contributions, *c)
	return totals, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, email, passwordHash string, fullName *string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return "", repository.ErrEmailExists
		}
	}
	now := r.s.now()
	u := model.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, FullName: fullName,
		IsActive: true, CreatedAt: now, UpdatedAt: now}
	r.s.users[u.ID] = u
	return u.ID, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNoRows
}

func (r userRepo) GetByID(_ context.Context, id string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, repository.ErrNoRows
	}
	return u, nil
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[tokenHash] = model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: r.s.now()}
	return nil
}

func (r tokenRepo) ConsumeRefresh(_ context.Context, tokenHash string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenHash]
	now := r.s.now()
	if !ok || t.RevokedAt != nil || !now.Before(t.ExpiresAt) {
		return "", repository.ErrNoRows
	}
	t.RevokedAt = &now
	r.s.tokens[tokenHash] = t
	return t.UserID, nil
}

func (r tokenRepo) RevokeAllForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for h, t := range r.s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.tokens[h] = t
		}
	}
	return nil
}
