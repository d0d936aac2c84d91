package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/wishly/internal/model"
)

// ItemRepo is the MySQL ItemRepository.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

const itemColumns = `id, wishlist_id, name, description, url, image_url, price_cents, is_group_gift, sort_order, created_at, updated_at`

// Create appends it to its wishlist.  The wishlist row is locked while the
// next sort_order is computed so concurrent inserts do not share a slot.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var wid string
	err = tx.QueryRowContext(ctx, `SELECT id FROM wishlists WHERE id = ? FOR UPDATE`, it.WishlistID).Scan(&wid)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrWishlistNotFound
	}
	if err != nil {
		return err
	}
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM items WHERE wishlist_id = ?`, it.WishlistID,
	).Scan(&it.SortOrder); err != nil {
		return err
	}

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	it.CreatedAt, it.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, wishlist_id, name, description, url, image_url, price_cents, is_group_gift, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.WishlistID, it.Name, nullString(it.Description), nullString(it.URL), nullString(it.ImageURL),
		nullCents(it.Price), it.IsGroupGift, it.SortOrder, now, now)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetContext loads an item with its wishlist's owner and active flag.
func (r *ItemRepo) GetContext(ctx context.Context, id string) (model.ItemContext, error) {
	var (
		ic model.ItemContext
		is itemScan
	)
	it := &ic.Item
	err := r.db.QueryRowContext(ctx,
		`SELECT i.id, i.wishlist_id, i.name, i.description, i.url, i.image_url, i.price_cents, i.is_group_gift,
		        i.sort_order, i.created_at, i.updated_at, w.owner_id, w.is_active
		   FROM items i JOIN wishlists w ON w.id = i.wishlist_id
		  WHERE i.id = ?`, id,
	).Scan(&it.ID, &it.WishlistID, &it.Name, &is.desc, &is.url, &is.image, &is.price, &it.IsGroupGift,
		&it.SortOrder, &it.CreatedAt, &it.UpdatedAt, &ic.OwnerID, &ic.WishlistActive)
	if errors.Is(err, sql.ErrNoRows) {
		return ic, ErrItemNotFound
	}
	if err != nil {
		return ic, err
	}
	is.apply(it)
	return ic, nil
}

// Update rewrites the editable fields of it.  The item row is locked for
// the duration so reservations and contributions, which lock or read the
// same row, observe either the old or the new item, never a mix.
func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var wasGroup bool
	err = tx.QueryRowContext(ctx, `SELECT is_group_gift FROM items WHERE id = ? FOR UPDATE`, it.ID).Scan(&wasGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}

	var (
		reserved int
		total    model.Cents
		count    int
	)
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE item_id = ?`, it.ID).Scan(&reserved); err != nil {
		return err
	}
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM contributions WHERE item_id = ?`, it.ID,
	).Scan(&total, &count); err != nil {
		return err
	}
	if err = CheckItemChange(wasGroup, it, reserved > 0 || count > 0, total); err != nil {
		return err
	}

	it.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err = tx.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, url = ?, image_url = ?, price_cents = ?, is_group_gift = ?, updated_at = ?
		  WHERE id = ?`,
		it.Name, nullString(it.Description), nullString(it.URL), nullString(it.ImageURL), nullCents(it.Price),
		it.IsGroupGift, it.UpdatedAt, it.ID)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CheckItemChange holds the owner side rules shared by every store:
// the group gift flag is frozen once guests have acted on the item, and a
// group gift cannot be repriced below what has already been pledged.
func CheckItemChange(wasGroup bool, next *model.Item, hasActivity bool, total model.Cents) error {
	if wasGroup != next.IsGroupGift && hasActivity {
		return ErrGroupGiftLocked
	}
	if next.IsGroupGift && next.Price != nil && *next.Price < total {
		return ErrPriceBelowTotal
	}
	return nil
}

// Delete removes the item together with its reservation and contributions.
func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrItemNotFound)
}

// Reorder assigns sort_order by position in itemIDs, which must list every
// item of the wishlist exactly once.
func (r *ItemRepo) Reorder(ctx context.Context, wishlistID string, itemIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM items WHERE wishlist_id = ? FOR UPDATE`, wishlistID)
	if err != nil {
		return err
	}
	var current []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return scanErr
		}
		current = append(current, id)
	}
	if err = rows.Close(); err != nil {
		return err
	}
	if !ValidOrder(current, itemIDs) {
		return ErrInvalidOrder
	}
	for pos, id := range itemIDs {
		if _, err = tx.ExecContext(ctx, `UPDATE items SET sort_order = ? WHERE id = ?`, pos, id); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ValidOrder reports whether proposed lists every id of current exactly once.
func ValidOrder(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		seen[id] = true
	}
	for _, id := range proposed {
		if !seen[id] {
			return false
		}
		delete(seen, id)
	}
	return len(seen) == 0
}

func listItems(ctx context.Context, q querier, wishlistID string) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE wishlist_id = ? ORDER BY sort_order, created_at`, wishlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.Item{}
	for rows.Next() {
		var (
			it model.Item
			is itemScan
		)
		if err := rows.Scan(&it.ID, &it.WishlistID, &it.Name, &is.desc, &is.url, &is.image, &is.price,
			&it.IsGroupGift, &it.SortOrder, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		is.apply(&it)
		items = append(items, it)
	}
	return items, rows.Err()
}

type itemScan struct {
	desc, url, image sql.NullString
	price            sql.NullInt64
}

func (s *itemScan) apply(it *model.Item) {
	it.Description = stringPtr(s.desc)
	it.URL = stringPtr(s.url)
	it.ImageURL = stringPtr(s.image)
	it.Price = centsPtr(s.price)
}
