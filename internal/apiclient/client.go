// Package apiclient is a small client for the guest side of the wishlist
// API, used by the guest CLI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/wishly/internal/guest"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/readmodel"
)

const guestHeader = "X-Guest-Identifier"

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// HasCode reports whether err is an API error with the given code, such
// as "already_reserved" or "fully_funded".
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client talks to one server.  BaseURL is the server root, e.g.
// http://localhost:8080.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Reservation is the reserve response.
type Reservation struct {
	ReservationID string    `json:"reservation_id"`
	ItemID        string    `json:"item_id"`
	GuestName     string    `json:"guest_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Contribution is the contribute response.
type Contribution struct {
	ContributionID    string      `json:"contribution_id"`
	ItemID            string      `json:"item_id"`
	Amount            model.Cents `json:"amount"`
	RequestedAmount   model.Cents `json:"requested_amount"`
	Clamped           bool        `json:"clamped"`
	ContributionTotal model.Cents `json:"contribution_total"`
	ContributionCount int         `json:"contribution_count"`
	ProgressBefore    float64     `json:"progress_before"`
	ProgressAfter     float64     `json:"progress_after"`
	Completed         bool        `json:"completed"`
}

// Wishlist fetches the public view.  The identifier marks the guest's own
// reservations.
func (c *Client) Wishlist(ctx context.Context, shareToken, guestIdentifier string) (readmodel.WishlistView, error) {
	var v readmodel.WishlistView
	err := c.do(ctx, http.MethodGet, "/api/v1/wishlists/public/"+url.PathEscape(shareToken), guestIdentifier, nil, &v)
	return v, err
}

func (c *Client) Reserve(ctx context.Context, itemID string, id guest.Identity) (Reservation, error) {
	var r Reservation
	err := c.do(ctx, http.MethodPost, "/api/v1/items/"+url.PathEscape(itemID)+"/reserve", id.GuestIdentifier,
		map[string]string{"guest_name": id.GuestName, "guest_identifier": id.GuestIdentifier}, &r)
	return r, err
}

func (c *Client) Unreserve(ctx context.Context, reservationID, guestIdentifier string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/reservations/"+url.PathEscape(reservationID), guestIdentifier, nil, nil)
}

func (c *Client) Contribute(ctx context.Context, itemID string, amount model.Cents, id guest.Identity, message *string) (Contribution, error) {
	body := map[string]any{
		"amount":           amount,
		"guest_name":       id.GuestName,
		"guest_identifier": id.GuestIdentifier,
	}
	if message != nil {
		body["message"] = *message
	}
	var r Contribution
	err := c.do(ctx, http.MethodPost, "/api/v1/items/"+url.PathEscape(itemID)+"/contribute", id.GuestIdentifier, body, &r)
	return r, err
}

// WebsocketURL is the realtime endpoint of a wishlist.
func (c *Client) WebsocketURL(wishlistID string) string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v1/ws/" + url.PathEscape(wishlistID)
}

func (c *Client) do(ctx context.Context, method, path, guestIdentifier string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if guestIdentifier != "" {
		req.Header.Set(guestHeader, guestIdentifier)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
