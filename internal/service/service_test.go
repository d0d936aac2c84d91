package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/repository/memory"
	"github.com/iliyamo/wishly/pkg/logger"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, ev queue.Event) { m.Called(ctx, ev) }

// events returns the events passed to Notify, in call order.
func (m *mockNotifier) events() []queue.Event {
	var out []queue.Event
	for _, c := range m.Calls {
		out = append(out, c.Arguments.Get(1).(queue.Event))
	}
	return out
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev queue.Event) error {
	return m.Called(ctx, ev).Error(0)
}

type fixture struct {
	store         *memory.Store
	notifier      *mockNotifier
	reservations  *ReservationService
	contributions *ContributionService
	wishlists     *WishlistService
	wishlist      model.Wishlist
	lamp          model.Item
	bike          model.Item
}

const ownerID = "owner-1"

func cents(c model.Cents) *model.Cents { return &c }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), notifier: &mockNotifier{}}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return()
	log := logger.Discard().WithField("test", t.Name())

	f.reservations = NewReservationService(f.store.Items(), f.store.Reservations(), f.notifier, nil, log)
	f.contributions = NewContributionService(f.store.Items(), f.store.Contributions(), f.notifier, nil, log)
	f.wishlists = NewWishlistService(f.store.Wishlists(), f.store.Items(), nil, f.notifier, log)

	var err error
	f.wishlist, err = f.wishlists.Create(ctx, ownerID, WishlistInput{Title: "Birthday"})
	require.NoError(t, err)
	f.lamp, err = f.wishlists.AddItem(ctx, ownerID, f.wishlist.ID, ItemInput{Name: "Lamp"})
	require.NoError(t, err)
	f.bike, err = f.wishlists.AddItem(ctx, ownerID, f.wishlist.ID, ItemInput{Name: "Bike", Price: cents(100000), IsGroupGift: true})
	require.NoError(t, err)
	f.notifier.Calls = nil
	return f
}

func (f *fixture) reserve(itemID, guest string) (model.Reservation, error) {
	return f.reservations.Reserve(context.Background(), ReserveInput{ItemID: itemID, GuestIdentifier: guest, GuestName: "Ann"})
}

func (f *fixture) contribute(itemID, guest string, amount model.Cents) (ContributionResult, error) {
	return f.contributions.Contribute(context.Background(), ContributeInput{
		ItemID: itemID, Amount: amount, GuestIdentifier: guest, GuestName: "Bob",
	})
}

func TestNotifierPublishFailureIsNotReturned(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	n := NewNotifier(nil, nil, pub, nil, logger.Discard().WithField("test", t.Name()))

	f := newFixture(t)
	svc := NewReservationService(f.store.Items(), f.store.Reservations(), n, nil, logger.Discard().WithField("test", t.Name()))
	res, err := svc.Reserve(context.Background(), ReserveInput{ItemID: f.lamp.ID, GuestIdentifier: "g1", GuestName: "Ann"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)

	n.Wait()
	pub.AssertExpectations(t)
	ev := pub.Calls[0].Arguments.Get(1).(queue.Event)
	require.Equal(t, queue.ItemReserved, ev.Type)
	require.Equal(t, f.wishlist.ID, ev.WishlistID)
}

type recordingHub struct {
	mu     sync.Mutex
	events []queue.Event
}

func (h *recordingHub) Broadcast(ev queue.Event) (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return 1, 0
}

type recordingCache struct{ invalidated []string }

func (c *recordingCache) Invalidate(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

func TestNotifierInvalidatesBeforeBroadcast(t *testing.T) {
	hub := &recordingHub{}
	cache := &recordingCache{}
	n := NewNotifier(cache, hub, nil, nil, logger.Discard().WithField("test", t.Name()))

	n.Notify(context.Background(), queue.ReservedEvent("w1", "i1", true))
	n.Wait()

	require.Equal(t, []string{"w1"}, cache.invalidated)
	require.Len(t, hub.events, 1)
	require.Equal(t, "i1", hub.events[0].ItemID)
}

type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	seen    int
}

func (p *blockingPublisher) Publish(context.Context, queue.Event) error {
	p.mu.Lock()
	p.seen++
	p.mu.Unlock()
	<-p.release
	return nil
}

func TestNotifierDropsWhenBrokerIsStuck(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	n := NewNotifier(nil, nil, pub, nil, logger.Discard().WithField("test", t.Name()))

	const total = outboxSize + 50
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			n.Notify(context.Background(), queue.ReservedEvent("w1", "i1", true))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked behind a stuck publisher")
	}

	close(pub.release)
	n.Close()
	require.GreaterOrEqual(t, pub.seen, outboxSize)
	require.LessOrEqual(t, pub.seen, outboxSize+1)
}
