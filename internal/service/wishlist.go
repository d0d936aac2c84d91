package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/readmodel"
	"github.com/iliyamo/wishly/internal/repository"
	"github.com/iliyamo/wishly/internal/utils"
)

const (
	maxTitle          = 200
	shareTokenRetries = 3
	dateLayout        = "2006-01-02"
)

// ErrInvalidDate rejects an event date that is not YYYY-MM-DD.
var ErrInvalidDate = invalid("event_date must be YYYY-MM-DD")

// ErrTitleTooLong rejects titles over maxTitle characters.
var ErrTitleTooLong = invalid("title is too long")

// WishlistInput is the body of a create request.
type WishlistInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Occasion    *string `json:"occasion"`
	EventDate   *string `json:"event_date"`
}

// WishlistPatch updates only the fields that are set.  An empty string
// clears an optional field.
type WishlistPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Occasion    *string `json:"occasion"`
	EventDate   *string `json:"event_date"`
	IsActive    *bool   `json:"is_active"`
}

// WishlistService is the owner side of wishlists and the read side served
// to guests.
type WishlistService struct {
	wishlists repository.WishlistRepository
	items     repository.ItemRepository
	cache     *readmodel.Cache
	notifier  EventNotifier
	log       *logrus.Entry
}

// NewWishlistService wires the service.  cache may be nil.
func NewWishlistService(wishlists repository.WishlistRepository, items repository.ItemRepository,
	cache *readmodel.Cache, notifier EventNotifier, log *logrus.Entry) *WishlistService {
	return &WishlistService{wishlists: wishlists, items: items, cache: cache, notifier: notifier, log: log}
}

func (s *WishlistService) Create(ctx context.Context, ownerID string, in WishlistInput) (model.Wishlist, error) {
	title := clean(in.Title)
	if err := checkTitle(title); err != nil {
		return model.Wishlist{}, err
	}
	date, err := parseDate(in.EventDate)
	if err != nil {
		return model.Wishlist{}, err
	}
	w := model.Wishlist{
		OwnerID:     ownerID,
		Title:       title,
		Description: optional(in.Description),
		Occasion:    optional(in.Occasion),
		EventDate:   date,
		IsActive:    true,
	}
	for attempt := 0; ; attempt++ {
		if w.ShareToken, err = utils.NewShareToken(); err != nil {
			return model.Wishlist{}, err
		}
		err = s.wishlists.Create(ctx, &w)
		if !errors.Is(err, ErrConflict) || attempt+1 >= shareTokenRetries {
			break
		}
		w.ID = ""
	}
	if err != nil {
		return model.Wishlist{}, err
	}
	s.log.WithFields(logrus.Fields{"wishlist_id": w.ID, "owner_id": ownerID}).Info("wishlist created")
	return w, nil
}

func (s *WishlistService) List(ctx context.Context, ownerID string) ([]model.WishlistSummary, error) {
	return s.wishlists.ListByOwner(ctx, ownerID)
}

// Get returns the owner projection of one of ownerID's wishlists.  A
// wishlist owned by someone else is reported as not found.
func (s *WishlistService) Get(ctx context.Context, ownerID, id string) (readmodel.WishlistView, error) {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return readmodel.WishlistView{}, err
	}
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return readmodel.WishlistView{}, err
	}
	return readmodel.OwnerView(snap), nil
}

func (s *WishlistService) Update(ctx context.Context, ownerID, id string, p WishlistPatch) (model.Wishlist, error) {
	w, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return model.Wishlist{}, err
	}
	if p.Title != nil {
		title := clean(*p.Title)
		if err := checkTitle(title); err != nil {
			return model.Wishlist{}, err
		}
		w.Title = title
	}
	if p.Description != nil {
		w.Description = optional(p.Description)
	}
	if p.Occasion != nil {
		w.Occasion = optional(p.Occasion)
	}
	if p.EventDate != nil {
		if w.EventDate, err = parseDate(p.EventDate); err != nil {
			return model.Wishlist{}, err
		}
	}
	if p.IsActive != nil {
		w.IsActive = *p.IsActive
	}
	if err := s.wishlists.Update(ctx, &w); err != nil {
		return model.Wishlist{}, err
	}
	s.log.WithField("wishlist_id", w.ID).Info("wishlist updated")
	s.notifier.Notify(ctx, queue.WishlistEvent(queue.WishlistUpdated, w.ID))
	return w, nil
}

// Delete removes the wishlist with its items, reservations and
// contributions.
func (s *WishlistService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.wishlists.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("wishlist_id", id).Info("wishlist deleted")
	s.notifier.Notify(ctx, queue.WishlistEvent(queue.WishlistDeleted, id))
	return nil
}

// PublicView serves the share link.  guestIdentifier, when presented,
// marks the guest's own reservations.  An authenticated owner of the
// wishlist gets the owner projection so the surprise is kept.
func (s *WishlistService) PublicView(ctx context.Context, shareToken, guestIdentifier, requesterUserID string) (readmodel.WishlistView, error) {
	w, err := s.wishlists.GetByShareToken(ctx, shareToken)
	if err != nil {
		return readmodel.WishlistView{}, err
	}
	snap, err := s.snapshot(ctx, w.ID)
	if err != nil {
		return readmodel.WishlistView{}, err
	}
	return readmodel.Project(snap, readmodel.Viewer{
		GuestIdentifier: guestIdentifier,
		IsOwner:         requesterUserID != "" && requesterUserID == w.OwnerID,
	}), nil
}

// Exists reports ErrWishlistNotFound for unknown ids.  The websocket
// endpoint calls it before upgrading.
func (s *WishlistService) Exists(ctx context.Context, id string) error {
	_, err := s.wishlists.GetByID(ctx, id)
	return err
}

func (s *WishlistService) snapshot(ctx context.Context, id string) (readmodel.Snapshot, error) {
	return s.cache.Load(ctx, id, func(ctx context.Context) (readmodel.Snapshot, error) {
		st, err := s.wishlists.LoadState(ctx, id)
		if err != nil {
			return readmodel.Snapshot{}, err
		}
		return readmodel.NewSnapshot(st), nil
	})
}

// owned loads a wishlist and hides it from anyone but its owner.
func (s *WishlistService) owned(ctx context.Context, ownerID, id string) (model.Wishlist, error) {
	w, err := s.wishlists.GetByID(ctx, id)
	if err != nil {
		return model.Wishlist{}, err
	}
	if w.OwnerID != ownerID {
		return model.Wishlist{}, ErrWishlistNotFound
	}
	return w, nil
}

func checkTitle(title string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if len([]rune(title)) > maxTitle {
		return ErrTitleTooLong
	}
	return nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &t, nil
}
