package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/metrics"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/repository"
)

// ReserveInput is a guest's request to claim an item.  RequesterUserID is
// set when the caller also presented an owner access token.
type ReserveInput struct {
	ItemID          string
	GuestIdentifier string
	GuestName       string
	RequesterUserID string
}

// ReservationService grants and releases exclusive claims on items.
type ReservationService struct {
	items        repository.ItemRepository
	reservations repository.ReservationRepository
	notifier     EventNotifier
	metrics      *metrics.Metrics
	log          *logrus.Entry
}

func NewReservationService(items repository.ItemRepository, reservations repository.ReservationRepository,
	notifier EventNotifier, m *metrics.Metrics, log *logrus.Entry) *ReservationService {
	return &ReservationService{items: items, reservations: reservations, notifier: notifier, metrics: m, log: log}
}

// Reserve claims in.ItemID for the guest.  Of two concurrent calls for
// the same item exactly one succeeds; the other gets ErrAlreadyReserved.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (model.Reservation, error) {
	res, err := s.reserve(ctx, in)
	s.metrics.Reservation("reserve", outcome(err))
	return res, err
}

func (s *ReservationService) reserve(ctx context.Context, in ReserveInput) (model.Reservation, error) {
	ic, err := s.items.GetContext(ctx, in.ItemID)
	if err != nil {
		return model.Reservation{}, err
	}
	name := clean(in.GuestName)
	if err := guestCheck(ic, in.RequesterUserID, in.GuestIdentifier, name); err != nil {
		return model.Reservation{}, err
	}
	if ic.Item.IsGroupGift {
		return model.Reservation{}, ErrGroupGiftNotReservable
	}
	if !ic.WishlistActive {
		return model.Reservation{}, ErrWishlistInactive
	}

	res := model.Reservation{ItemID: ic.Item.ID, GuestIdentifier: in.GuestIdentifier, GuestName: name}
	if err := s.reservations.Create(ctx, &res); err != nil {
		return model.Reservation{}, err
	}
	s.log.WithFields(logrus.Fields{
		"item_id": res.ItemID, "wishlist_id": ic.Item.WishlistID, "reservation_id": res.ID,
	}).Info("item reserved")
	s.notifier.Notify(ctx, queue.ReservedEvent(ic.Item.WishlistID, res.ItemID, true))
	return res, nil
}

// Unreserve releases a reservation held by guestIdentifier.  Calling it
// again for the same reservation returns ErrReservationNotFound and has
// no effect.
func (s *ReservationService) Unreserve(ctx context.Context, reservationID, guestIdentifier string) error {
	err := s.unreserve(ctx, reservationID, guestIdentifier)
	s.metrics.Reservation("unreserve", outcome(err))
	return err
}

func (s *ReservationService) unreserve(ctx context.Context, reservationID, guestIdentifier string) error {
	if err := identifierCheck(guestIdentifier); err != nil {
		return err
	}
	res, wishlistID, err := s.reservations.DeleteForGuest(ctx, reservationID, guestIdentifier)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"item_id": res.ItemID, "wishlist_id": wishlistID, "reservation_id": res.ID,
	}).Info("reservation released")
	s.notifier.Notify(ctx, queue.ReservedEvent(wishlistID, res.ItemID, false))
	return nil
}

// outcome is the metrics label of a service result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, ErrFullyFunded):
		return "fully_funded"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrReservationNotFound), errors.Is(err, ErrWishlistNotFound):
		return "not_found"
	case IsValidation(err):
		return "invalid"
	}
	return "error"
}
