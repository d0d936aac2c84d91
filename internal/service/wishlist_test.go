package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
)

func TestCreateWishlistValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wishlists.Create(ctx, ownerID, WishlistInput{Title: "   "})
	require.ErrorIs(t, err, ErrTitleRequired)

	bad := "next friday"
	_, err = f.wishlists.Create(ctx, ownerID, WishlistInput{Title: "Party", EventDate: &bad})
	require.ErrorIs(t, err, ErrInvalidDate)

	date := "2026-12-24"
	w, err := f.wishlists.Create(ctx, ownerID, WishlistInput{Title: "Xmas", EventDate: &date})
	require.NoError(t, err)
	assert.Len(t, w.ShareToken, 43)
	assert.NotEqual(t, f.wishlist.ShareToken, w.ShareToken)
	assert.True(t, w.IsActive)
	require.NotNil(t, w.EventDate)
	assert.Equal(t, date, w.EventDate.Format("2006-01-02"))

	list, err := f.wishlists.List(ctx, ownerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestOwnerCannotSeeOthersWishlists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wishlists.Get(ctx, "someone-else", f.wishlist.ID)
	require.ErrorIs(t, err, ErrWishlistNotFound)
	_, err = f.wishlists.AddItem(ctx, "someone-else", f.wishlist.ID, ItemInput{Name: "x"})
	require.ErrorIs(t, err, ErrWishlistNotFound)
	_, err = f.wishlists.UpdateItem(ctx, "someone-else", f.lamp.ID, ItemPatch{})
	require.ErrorIs(t, err, ErrItemNotFound)
	require.ErrorIs(t, f.wishlists.Delete(ctx, "someone-else", f.wishlist.ID), ErrWishlistNotFound)
}

func TestPublicViewProjections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reserve(f.lamp.ID, "g1")
	require.NoError(t, err)
	msg := "happy birthday"
	_, err = f.contributions.Contribute(ctx, ContributeInput{
		ItemID: f.bike.ID, Amount: 25000, GuestIdentifier: "g2", GuestName: "Bob", Message: &msg,
	})
	require.NoError(t, err)

	mine, err := f.wishlists.PublicView(ctx, f.wishlist.ShareToken, "g1", "")
	require.NoError(t, err)
	assert.False(t, mine.IsOwner)
	require.Len(t, mine.Items, 2)
	assert.Equal(t, f.lamp.ID, mine.Items[0].ID)
	assert.True(t, mine.Items[0].IsReserved)
	require.NotNil(t, mine.Items[0].MyReservationID)
	assert.Equal(t, res.ID, *mine.Items[0].MyReservationID)
	assert.Equal(t, 25.0, mine.Items[1].ProgressPercentage)
	require.Len(t, mine.Items[1].Contributors, 1)
	assert.Equal(t, "Bob", mine.Items[1].Contributors[0].GuestName)

	other, err := f.wishlists.PublicView(ctx, f.wishlist.ShareToken, "g9", "")
	require.NoError(t, err)
	assert.True(t, other.Items[0].IsReserved)
	assert.Nil(t, other.Items[0].MyReservationID)

	owner, err := f.wishlists.PublicView(ctx, f.wishlist.ShareToken, "", ownerID)
	require.NoError(t, err)
	assert.True(t, owner.IsOwner)
	assert.True(t, owner.Items[0].IsReserved)
	assert.Empty(t, owner.Items[1].Contributors)
	assert.Equal(t, model.Cents(25000), owner.Items[1].ContributionTotal)

	_, err = f.wishlists.PublicView(ctx, "missing", "", "")
	require.ErrorIs(t, err, ErrWishlistNotFound)
}

func TestUpdateItemRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.contribute(f.bike.ID, "g1", 40000)
	require.NoError(t, err)

	no := false
	_, err = f.wishlists.UpdateItem(ctx, ownerID, f.bike.ID, ItemPatch{IsGroupGift: &no})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.wishlists.UpdateItem(ctx, ownerID, f.bike.ID, ItemPatch{Price: cents(30000)})
	require.ErrorIs(t, err, ErrConflict)

	it, err := f.wishlists.UpdateItem(ctx, ownerID, f.bike.ID, ItemPatch{Price: cents(40000)})
	require.NoError(t, err)
	assert.Equal(t, model.Cents(40000), *it.Price)

	_, err = f.contribute(f.bike.ID, "g2", 100)
	require.ErrorIs(t, err, ErrFullyFunded)

	blank := ""
	_, err = f.wishlists.UpdateItem(ctx, ownerID, f.lamp.ID, ItemPatch{Name: &blank})
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = f.wishlists.UpdateItem(ctx, ownerID, f.lamp.ID, ItemPatch{Price: cents(-1)})
	require.ErrorIs(t, err, ErrInvalidPrice)

	yes := true
	it, err = f.wishlists.UpdateItem(ctx, ownerID, f.lamp.ID, ItemPatch{IsGroupGift: &yes, ClearPrice: true})
	require.NoError(t, err)
	assert.True(t, it.IsGroupGift)
	assert.Nil(t, it.Price)

	evs := f.notifier.events()
	assert.Equal(t, queue.ItemUpdated, evs[len(evs)-1].Type)
}

func TestReorderAndDeleteItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.wishlists.ReorderItems(ctx, ownerID, f.wishlist.ID, []string{f.bike.ID})
	require.ErrorIs(t, err, ErrInvalidOrder)

	require.NoError(t, f.wishlists.ReorderItems(ctx, ownerID, f.wishlist.ID, []string{f.bike.ID, f.lamp.ID}))
	view, err := f.wishlists.Get(ctx, ownerID, f.wishlist.ID)
	require.NoError(t, err)
	assert.Equal(t, f.bike.ID, view.Items[0].ID)
	assert.Equal(t, f.lamp.ID, view.Items[1].ID)

	_, err = f.reserve(f.lamp.ID, "g1")
	require.NoError(t, err)
	require.NoError(t, f.wishlists.DeleteItem(ctx, ownerID, f.lamp.ID))
	_, err = f.reserve(f.lamp.ID, "g1")
	require.ErrorIs(t, err, ErrItemNotFound)

	evs := f.notifier.events()
	require.Len(t, evs, 3)
	assert.Equal(t, queue.ItemsReordered, evs[0].Type)
	assert.Equal(t, []string{f.bike.ID, f.lamp.ID}, evs[0].ItemIDs)
	assert.Equal(t, queue.ItemDeleted, evs[2].Type)
}

func TestDeleteWishlistCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.contribute(f.bike.ID, "g1", 100)
	require.NoError(t, err)
	require.NoError(t, f.wishlists.Delete(ctx, ownerID, f.wishlist.ID))

	require.ErrorIs(t, f.wishlists.Exists(ctx, f.wishlist.ID), ErrWishlistNotFound)
	_, err = f.contribute(f.bike.ID, "g1", 100)
	require.ErrorIs(t, err, ErrItemNotFound)

	evs := f.notifier.events()
	assert.Equal(t, queue.WishlistDeleted, evs[len(evs)-1].Type)
}
