package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
)

func TestContributeClampsToRemaining(t *testing.T) {
	f := newFixture(t)

	first, err := f.contribute(f.bike.ID, "g1", 80000)
	require.NoError(t, err)
	assert.False(t, first.Clamped)
	assert.False(t, first.Completed)
	assert.Equal(t, 80.0, first.ProgressAfter)

	second, err := f.contribute(f.bike.ID, "g2", 50000)
	require.NoError(t, err)
	assert.True(t, second.Clamped)
	assert.Equal(t, model.Cents(50000), second.RequestedAmount)
	assert.Equal(t, model.Cents(20000), second.Contribution.Amount)
	assert.Equal(t, model.Cents(100000), second.ContributionTotal)
	assert.Equal(t, 2, second.ContributionCount)
	assert.Equal(t, 80.0, second.ProgressBefore)
	assert.Equal(t, 100.0, second.ProgressAfter)
	assert.True(t, second.Completed)

	_, err = f.contribute(f.bike.ID, "g3", 100)
	require.ErrorIs(t, err, ErrFullyFunded)

	evs := f.notifier.events()
	require.Len(t, evs, 2)
	assert.Equal(t, queue.ContributionAdded, evs[1].Type)
	assert.Equal(t, model.Cents(100000), *evs[1].ContributionTotal)
	assert.Equal(t, 2, *evs[1].ContributionCount)
	assert.Equal(t, 100.0, *evs[1].ProgressPercentage)
}

func TestContributeCompletesOnlyOnTheFundingCent(t *testing.T) {
	f := newFixture(t)

	almost, err := f.contribute(f.bike.ID, "g1", 99999)
	require.NoError(t, err)
	assert.False(t, almost.Completed)
	assert.Equal(t, 99.99, almost.ProgressAfter)

	last, err := f.contribute(f.bike.ID, "g2", 1)
	require.NoError(t, err)
	assert.True(t, last.Completed)
	assert.Equal(t, 99.99, last.ProgressBefore)
	assert.Equal(t, 100.0, last.ProgressAfter)

	evs := f.notifier.events()
	require.Len(t, evs, 2)
	assert.Equal(t, 99.99, *evs[0].ProgressPercentage)
}

func TestContributeConcurrentNeverOvershoots(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.contribute(f.bike.ID, "g", 7000)
		}()
	}
	wg.Wait()

	view, err := f.wishlists.Get(context.Background(), ownerID, f.wishlist.ID)
	require.NoError(t, err)
	var bike *model.Cents
	for _, it := range view.Items {
		if it.ID == f.bike.ID {
			total := it.ContributionTotal
			bike = &total
			assert.Equal(t, 100.0, it.ProgressPercentage)
		}
	}
	require.NotNil(t, bike)
	assert.Equal(t, model.Cents(100000), *bike)
}

func TestContributeWithoutPriceIsUncapped(t *testing.T) {
	f := newFixture(t)
	it, err := f.wishlists.AddItem(context.Background(), ownerID, f.wishlist.ID, ItemInput{Name: "Trip", IsGroupGift: true})
	require.NoError(t, err)

	res, err := f.contribute(it.ID, "g1", 1_000_000)
	require.NoError(t, err)
	assert.False(t, res.Clamped)
	assert.Equal(t, 0.0, res.ProgressAfter)
	assert.False(t, res.Completed)
}

func TestContributeRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tooLong := strings.Repeat("é", model.MaxMessageLen+1)

	cases := []struct {
		name string
		in   ContributeInput
		want error
	}{
		{"not group", ContributeInput{ItemID: f.lamp.ID, Amount: 100, GuestIdentifier: "g", GuestName: "Bob"}, ErrNotGroupGift},
		{"zero", ContributeInput{ItemID: f.bike.ID, Amount: 0, GuestIdentifier: "g", GuestName: "Bob"}, ErrInvalidAmount},
		{"negative", ContributeInput{ItemID: f.bike.ID, Amount: -5, GuestIdentifier: "g", GuestName: "Bob"}, ErrInvalidAmount},
		{"no name", ContributeInput{ItemID: f.bike.ID, Amount: 100, GuestIdentifier: "g"}, ErrGuestNameRequired},
		{"message", ContributeInput{ItemID: f.bike.ID, Amount: 100, GuestIdentifier: "g", GuestName: "Bob", Message: &tooLong}, ErrMessageTooLong},
		{"owner", ContributeInput{ItemID: f.bike.ID, Amount: 100, GuestIdentifier: "g", GuestName: "Bob", RequesterUserID: ownerID}, ErrOwnItem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.contributions.Contribute(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.notifier.events())
}

func TestContributeBlankMessageIsDropped(t *testing.T) {
	f := newFixture(t)
	blank := "   "
	res, err := f.contributions.Contribute(context.Background(), ContributeInput{
		ItemID: f.bike.ID, Amount: 100, GuestIdentifier: "g", GuestName: " Bob ", Message: &blank,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Contribution.Message)
	assert.Equal(t, "Bob", res.Contribution.GuestName)
}
