package readmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
)

func newFixtureModel(guest string) *Model {
	return NewModel(PublicView(NewSnapshot(fixtureState()), Viewer{GuestIdentifier: guest}))
}

func TestApplyReservationEventsAreIdempotent(t *testing.T) {
	m := newFixtureModel("")

	assert.False(t, m.Apply(queue.ReservedEvent("w1", "book", true)))
	assert.False(t, m.Apply(queue.ReservedEvent("w1", "book", true)))
	book, _ := m.Item("book")
	assert.True(t, book.IsReserved)

	assert.False(t, m.Apply(queue.ReservedEvent("w1", "book", false)))
	assert.False(t, m.Apply(queue.ReservedEvent("w1", "book", false)))
	book, _ = m.Item("book")
	assert.False(t, book.IsReserved)
}

func TestApplyUnreserveClearsMyReservation(t *testing.T) {
	m := newFixtureModel("guest-a")
	lamp, _ := m.Item("lamp")
	require.NotNil(t, lamp.MyReservationID)

	m.Apply(queue.ReservedEvent("w1", "lamp", false))
	lamp, _ = m.Item("lamp")
	assert.False(t, lamp.IsReserved)
	assert.Nil(t, lamp.MyReservationID)
}

func TestApplyContributionIgnoresStaleEvents(t *testing.T) {
	m := newFixtureModel("")

	assert.False(t, m.Apply(queue.ContributionEvent("w1", "bike", 100000, 3, 100)))
	bike, _ := m.Item("bike")
	assert.Equal(t, model.Cents(100000), bike.ContributionTotal)
	assert.Equal(t, 3, bike.ContributionCount)
	assert.Equal(t, 100.0, bike.ProgressPercentage)

	// Delivered late: an older total must not roll the view back.
	assert.False(t, m.Apply(queue.ContributionEvent("w1", "bike", 90000, 2, 90)))
	bike, _ = m.Item("bike")
	assert.Equal(t, model.Cents(100000), bike.ContributionTotal)
	assert.Equal(t, 3, bike.ContributionCount)
}

func TestApplyAsksForResync(t *testing.T) {
	m := newFixtureModel("")

	assert.True(t, m.Apply(queue.ItemEvent(queue.ItemAdded, "w1", "new")))
	assert.True(t, m.Apply(queue.ItemEvent(queue.ItemDeleted, "w1", "lamp")))
	assert.True(t, m.Apply(queue.ItemEvent(queue.ItemUpdated, "w1", "lamp")))
	assert.True(t, m.Apply(queue.ReorderEvent("w1", []string{"book", "bike", "lamp"})))
	assert.True(t, m.Apply(queue.ReservedEvent("w1", "unknown", true)))
	assert.True(t, m.Apply(queue.ContributionEvent("w1", "unknown", 1, 1, 0)))
}

func TestApplyIgnoresOtherWishlists(t *testing.T) {
	m := newFixtureModel("")
	assert.False(t, m.Apply(queue.ItemEvent(queue.ItemAdded, "w2", "x")))
	assert.False(t, m.Apply(queue.ReservedEvent("w2", "book", true)))
	book, _ := m.Item("book")
	assert.False(t, book.IsReserved)
}

func TestResetReindexes(t *testing.T) {
	m := newFixtureModel("")
	v := m.View()
	v.Items = v.Items[:1]
	m.Reset(v)
	_, ok := m.Item("bike")
	assert.False(t, ok)
	assert.True(t, m.Apply(queue.ContributionEvent("w1", "bike", 1, 9, 0)))
}
