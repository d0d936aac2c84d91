package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/wishly/internal/model"
)

// ContributionRepo is the MySQL ContributionRepository.
type ContributionRepo struct {
	db *sql.DB
}

// NewContributionRepo returns a new ContributionRepo bound to the given database.
func NewContributionRepo(db *sql.DB) *ContributionRepo { return &ContributionRepo{db: db} }

// CreateClamped records c against a group gift.  The item row is locked
// with SELECT ... FOR UPDATE before the current total is summed, so two
// concurrent contributors are clamped one after the other against the real
// remaining balance instead of both against a stale one.
func (r *ContributionRepo) CreateClamped(ctx context.Context, c *model.Contribution) (ContributionTotals, error) {
	var totals ContributionTotals
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return totals, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		price  sql.NullInt64
		group  bool
		active bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT i.wishlist_id, i.price_cents, i.is_group_gift, w.is_active
		   FROM items i JOIN wishlists w ON w.id = i.wishlist_id
		  WHERE i.id = ? FOR UPDATE`, c.ItemID,
	).Scan(&totals.WishlistID, &price, &group, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return ContributionTotals{}, ErrItemNotFound
	}
	if err != nil {
		return ContributionTotals{}, err
	}
	if !group {
		return ContributionTotals{}, ErrNotGroupGift
	}
	if !active {
		return ContributionTotals{}, ErrWishlistInactive
	}
	totals.Price = centsPtr(price)

	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM contributions WHERE item_id = ?`, c.ItemID,
	).Scan(&totals.TotalBefore, &totals.Count); err != nil {
		return ContributionTotals{}, err
	}

	totals.Requested = c.Amount
	effective, clamped, ok := model.ClampContribution(totals.Price, totals.TotalBefore, c.Amount)
	if !ok {
		return ContributionTotals{}, ErrFullyFunded
	}
	c.Amount = effective
	totals.Clamped = clamped

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO contributions (id, item_id, guest_identifier, guest_name, amount_cents, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ItemID, c.GuestIdentifier, c.GuestName, int64(c.Amount), nullString(c.Message), c.CreatedAt)
	if err != nil {
		return ContributionTotals{}, err
	}
	if err = tx.Commit(); err != nil {
		return ContributionTotals{}, err
	}
	committed = true

	totals.TotalAfter = totals.TotalBefore + effective
	totals.Count++
	return totals, nil
}
