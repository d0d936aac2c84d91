package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/wishly/internal/model"
)

// WishlistRepo is the MySQL WishlistRepository.  Ownership is checked by
// the service layer; the repository only addresses rows by id.
type WishlistRepo struct {
	db *sql.DB
}

// NewWishlistRepo returns a new WishlistRepo bound to the given database.
func NewWishlistRepo(db *sql.DB) *WishlistRepo { return &WishlistRepo{db: db} }

const wishlistColumns = `id, owner_id, title, description, occasion, event_date, share_token, is_active, created_at, updated_at`

// Create inserts w, filling ID and the timestamps.  ShareToken must be set
// by the caller; a collision on the unique key is reported as ErrConflict.
func (r *WishlistRepo) Create(ctx context.Context, w *model.Wishlist) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlists (id, owner_id, title, description, occasion, event_date, share_token, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.OwnerID, w.Title, nullString(w.Description), nullString(w.Occasion), nullDate(w.EventDate),
		w.ShareToken, w.IsActive, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// ListByOwner returns the owner's wishlists, newest first, with item counts.
func (r *WishlistRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.WishlistSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT w.id, w.owner_id, w.title, w.description, w.occasion, w.event_date, w.share_token, w.is_active,
		        w.created_at, w.updated_at, COUNT(i.id)
		   FROM wishlists w
		   LEFT JOIN items i ON i.wishlist_id = w.id
		  WHERE w.owner_id = ?
		  GROUP BY w.id
		  ORDER BY w.created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WishlistSummary{}
	for rows.Next() {
		var (
			s  model.WishlistSummary
			ns wishlistScan
		)
		w := &s.Wishlist
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Title, &ns.desc, &ns.occasion, &ns.eventDate, &w.ShareToken,
			&w.IsActive, &w.CreatedAt, &w.UpdatedAt, &s.ItemCount); err != nil {
			return nil, err
		}
		ns.apply(w)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID fetches a wishlist by primary key.
func (r *WishlistRepo) GetByID(ctx context.Context, id string) (model.Wishlist, error) {
	return getWishlist(ctx, r.db, `SELECT `+wishlistColumns+` FROM wishlists WHERE id = ?`, id)
}

// GetByShareToken fetches a wishlist by its public slug.
func (r *WishlistRepo) GetByShareToken(ctx context.Context, token string) (model.Wishlist, error) {
	return getWishlist(ctx, r.db, `SELECT `+wishlistColumns+` FROM wishlists WHERE share_token = ?`, token)
}

// Update rewrites the editable columns of w.
func (r *WishlistRepo) Update(ctx context.Context, w *model.Wishlist) error {
	w.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx,
		`UPDATE wishlists SET title = ?, description = ?, occasion = ?, event_date = ?, is_active = ?, updated_at = ?
		  WHERE id = ?`,
		w.Title, nullString(w.Description), nullString(w.Occasion), nullDate(w.EventDate), w.IsActive, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	return expectRow(res, ErrWishlistNotFound)
}

// Delete removes the wishlist; foreign keys cascade to items, reservations
// and contributions.
func (r *WishlistRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wishlists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrWishlistNotFound)
}

// LoadState reads everything a read model needs inside one read-only
// transaction so derived fields agree with each other.
func (r *WishlistRepo) LoadState(ctx context.Context, id string) (model.WishlistState, error) {
	var st model.WishlistState
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return st, err
	}
	defer tx.Rollback()

	st.Wishlist, err = getWishlist(ctx, tx, `SELECT `+wishlistColumns+` FROM wishlists WHERE id = ?`, id)
	if err != nil {
		return st, err
	}
	err = tx.QueryRowContext(ctx, `SELECT full_name FROM users WHERE id = ?`, st.Wishlist.OwnerID).Scan(&st.OwnerName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return st, err
	}
	if st.Items, err = listItems(ctx, tx, id); err != nil {
		return st, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT r.id, r.item_id, r.guest_identifier, r.guest_name, r.created_at
		   FROM reservations r JOIN items i ON i.id = r.item_id
		  WHERE i.wishlist_id = ?`, id)
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.ItemID, &res.GuestIdentifier, &res.GuestName, &res.CreatedAt); err != nil {
			rows.Close()
			return st, err
		}
		st.Reservations = append(st.Reservations, res)
	}
	if err := rows.Close(); err != nil {
		return st, err
	}

	rows, err = tx.QueryContext(ctx,
		`SELECT c.id, c.item_id, c.guest_identifier, c.guest_name, c.amount_cents, c.message, c.created_at
		   FROM contributions c JOIN items i ON i.id = c.item_id
		  WHERE i.wishlist_id = ?
		  ORDER BY c.created_at, c.id`, id)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c   model.Contribution
			msg sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ItemID, &c.GuestIdentifier, &c.GuestName, &c.Amount, &msg, &c.CreatedAt); err != nil {
			return st, err
		}
		c.Message = stringPtr(msg)
		st.Contributions = append(st.Contributions, c)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	return st, tx.Commit()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type wishlistScan struct {
	desc, occasion sql.NullString
	eventDate      sql.NullTime
}

func getWishlist(ctx context.Context, q querier, query string, arg any) (model.Wishlist, error) {
	var w model.Wishlist
	var s wishlistScan
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&w.ID, &w.OwnerID, &w.Title, &s.desc, &s.occasion, &s.eventDate, &w.ShareToken, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Wishlist{}, ErrWishlistNotFound
		}
		return model.Wishlist{}, err
	}
	s.apply(&w)
	return w, nil
}

func (s *wishlistScan) apply(w *model.Wishlist) {
	w.Description = stringPtr(s.desc)
	w.Occasion = stringPtr(s.occasion)
	if s.eventDate.Valid {
		d := s.eventDate.Time
		w.EventDate = &d
	}
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}

// expectRow turns "no row affected" into notFound.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
