package service

import (
	"context"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/metrics"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/repository"
)

// ContributeInput is a guest's pledge toward a group gift.
type ContributeInput struct {
	ItemID          string
	Amount          model.Cents
	GuestIdentifier string
	GuestName       string
	Message         *string
	RequesterUserID string
}

// ContributionResult reports what was recorded.  Completed is true only
// for the contribution that moved the item from under 100% to 100%.
type ContributionResult struct {
	Contribution      model.Contribution
	RequestedAmount   model.Cents
	Clamped           bool
	ContributionTotal model.Cents
	ContributionCount int
	ProgressBefore    float64
	ProgressAfter     float64
	Completed         bool
}

// ContributionService records pledges toward group gifts.
type ContributionService struct {
	items         repository.ItemRepository
	contributions repository.ContributionRepository
	notifier      EventNotifier
	metrics       *metrics.Metrics
	log           *logrus.Entry
}

func NewContributionService(items repository.ItemRepository, contributions repository.ContributionRepository,
	notifier EventNotifier, m *metrics.Metrics, log *logrus.Entry) *ContributionService {
	return &ContributionService{items: items, contributions: contributions, notifier: notifier, metrics: m, log: log}
}

// Contribute records in.Amount, capped to what the item still needs.  An
// item that is already fully funded rejects the pledge with
// ErrFullyFunded.  The cap is computed by the repository under the item's
// row lock, never from a total the client saw.
func (s *ContributionService) Contribute(ctx context.Context, in ContributeInput) (ContributionResult, error) {
	res, err := s.contribute(ctx, in)
	s.metrics.Contribution(outcome(err))
	return res, err
}

func (s *ContributionService) contribute(ctx context.Context, in ContributeInput) (ContributionResult, error) {
	ic, err := s.items.GetContext(ctx, in.ItemID)
	if err != nil {
		return ContributionResult{}, err
	}
	if !ic.Item.IsGroupGift {
		return ContributionResult{}, ErrNotGroupGift
	}
	if !ic.WishlistActive {
		return ContributionResult{}, ErrWishlistInactive
	}
	name := clean(in.GuestName)
	if err := guestCheck(ic, in.RequesterUserID, in.GuestIdentifier, name); err != nil {
		return ContributionResult{}, err
	}
	if in.Amount <= 0 {
		return ContributionResult{}, ErrInvalidAmount
	}
	msg := optional(in.Message)
	if msg != nil && utf8.RuneCountInString(*msg) > model.MaxMessageLen {
		return ContributionResult{}, ErrMessageTooLong
	}

	c := model.Contribution{
		ItemID:          ic.Item.ID,
		GuestIdentifier: in.GuestIdentifier,
		GuestName:       name,
		Amount:          in.Amount,
		Message:         msg,
	}
	totals, err := s.contributions.CreateClamped(ctx, &c)
	if err != nil {
		return ContributionResult{}, err
	}

	before := model.Progress(totals.TotalBefore, totals.Price)
	after := model.Progress(totals.TotalAfter, totals.Price)
	res := ContributionResult{
		Contribution:      c,
		RequestedAmount:   totals.Requested,
		Clamped:           totals.Clamped,
		ContributionTotal: totals.TotalAfter,
		ContributionCount: totals.Count,
		ProgressBefore:    before,
		ProgressAfter:     after,
		Completed: !model.FullyFunded(totals.TotalBefore, totals.Price) &&
			model.FullyFunded(totals.TotalAfter, totals.Price),
	}
	s.log.WithFields(logrus.Fields{
		"item_id": c.ItemID, "wishlist_id": totals.WishlistID, "contribution_id": c.ID,
		"amount": c.Amount.String(), "clamped": res.Clamped, "progress": after,
	}).Info("contribution recorded")
	s.notifier.Notify(ctx, queue.ContributionEvent(totals.WishlistID, c.ItemID, totals.TotalAfter, totals.Count, after))
	return res, nil
}
