package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
)

// ItemInput is the body of an add item request.
type ItemInput struct {
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	URL         *string      `json:"url"`
	ImageURL    *string      `json:"image_url"`
	Price       *model.Cents `json:"price"`
	IsGroupGift bool         `json:"is_group_gift"`
}

// ItemPatch updates only the fields that are set.  ClearPrice removes the
// price; an empty string clears the other optional fields.
type ItemPatch struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	URL         *string      `json:"url"`
	ImageURL    *string      `json:"image_url"`
	Price       *model.Cents `json:"price"`
	ClearPrice  bool         `json:"clear_price"`
	IsGroupGift *bool        `json:"is_group_gift"`
}

func (s *WishlistService) AddItem(ctx context.Context, ownerID, wishlistID string, in ItemInput) (model.Item, error) {
	if _, err := s.owned(ctx, ownerID, wishlistID); err != nil {
		return model.Item{}, err
	}
	it := model.Item{
		WishlistID:  wishlistID,
		Name:        clean(in.Name),
		Description: optional(in.Description),
		URL:         optional(in.URL),
		ImageURL:    optional(in.ImageURL),
		Price:       in.Price,
		IsGroupGift: in.IsGroupGift,
	}
	if err := checkItem(&it); err != nil {
		return model.Item{}, err
	}
	if err := s.items.Create(ctx, &it); err != nil {
		return model.Item{}, err
	}
	s.log.WithFields(logrus.Fields{"wishlist_id": wishlistID, "item_id": it.ID}).Info("item added")
	s.notifier.Notify(ctx, queue.ItemEvent(queue.ItemAdded, wishlistID, it.ID))
	return it, nil
}

// UpdateItem edits an item.  The group gift flag cannot change once guests
// have reserved or contributed, and a group gift's price cannot drop below
// what has already been pledged; both are reported as ErrConflict.
func (s *WishlistService) UpdateItem(ctx context.Context, ownerID, itemID string, p ItemPatch) (model.Item, error) {
	ic, err := s.ownedItem(ctx, ownerID, itemID)
	if err != nil {
		return model.Item{}, err
	}
	it := ic.Item
	if p.Name != nil {
		it.Name = clean(*p.Name)
	}
	if p.Description != nil {
		it.Description = optional(p.Description)
	}
	if p.URL != nil {
		it.URL = optional(p.URL)
	}
	if p.ImageURL != nil {
		it.ImageURL = optional(p.ImageURL)
	}
	switch {
	case p.ClearPrice:
		it.Price = nil
	case p.Price != nil:
		it.Price = p.Price
	}
	if p.IsGroupGift != nil {
		it.IsGroupGift = *p.IsGroupGift
	}
	if err := checkItem(&it); err != nil {
		return model.Item{}, err
	}
	if err := s.items.Update(ctx, &it); err != nil {
		return model.Item{}, err
	}
	s.log.WithFields(logrus.Fields{"wishlist_id": it.WishlistID, "item_id": it.ID}).Info("item updated")
	s.notifier.Notify(ctx, queue.ItemEvent(queue.ItemUpdated, it.WishlistID, it.ID))
	return it, nil
}

// DeleteItem removes the item together with its reservation and
// contributions.
func (s *WishlistService) DeleteItem(ctx context.Context, ownerID, itemID string) error {
	ic, err := s.ownedItem(ctx, ownerID, itemID)
	if err != nil {
		return err
	}
	if err := s.items.Delete(ctx, itemID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"wishlist_id": ic.Item.WishlistID, "item_id": itemID}).Info("item deleted")
	s.notifier.Notify(ctx, queue.ItemEvent(queue.ItemDeleted, ic.Item.WishlistID, itemID))
	return nil
}

// ReorderItems sets the display order.  itemIDs must list every item of
// the wishlist exactly once.
func (s *WishlistService) ReorderItems(ctx context.Context, ownerID, wishlistID string, itemIDs []string) error {
	if _, err := s.owned(ctx, ownerID, wishlistID); err != nil {
		return err
	}
	if err := s.items.Reorder(ctx, wishlistID, itemIDs); err != nil {
		return err
	}
	s.log.WithField("wishlist_id", wishlistID).Info("items reordered")
	s.notifier.Notify(ctx, queue.ReorderEvent(wishlistID, itemIDs))
	return nil
}

func (s *WishlistService) ownedItem(ctx context.Context, ownerID, itemID string) (model.ItemContext, error) {
	ic, err := s.items.GetContext(ctx, itemID)
	if err != nil {
		return ic, err
	}
	if ic.OwnerID != ownerID {
		return ic, ErrItemNotFound
	}
	return ic, nil
}

func checkItem(it *model.Item) error {
	if it.Name == "" {
		return ErrNameRequired
	}
	if it.Price != nil && *it.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}
