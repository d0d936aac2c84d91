package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

// GuestHeader carries the client's pseudonymous guest identifier.
const GuestHeader = "X-Guest-Identifier"

// maxPeekBody bounds how much of a guest request body is read to find the
// identifier.  Guest bodies are small; a longer one keys as its header.
const maxPeekBody = 16 << 10

// UserID returns the owner id stored by JWTAuth or OptionalJWT.
func UserID(c echo.Context) (string, bool) {
	v, ok := c.Get(UserIDKey).(string)
	return v, ok && v != ""
}

// guestKey is a short digest of the guest identifier, safe for Redis keys
// and logs; "anon" when the request carries none.  Like the guest handlers
// it prefers the guest_identifier body field over GuestHeader.  The raw
// identifier is a capability and never leaves the request.
func guestKey(c echo.Context) string {
	id := bodyGuestIdentifier(c)
	if id == "" {
		id = c.Request().Header.Get(GuestHeader)
	}
	if id == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

// bodyGuestIdentifier reads guest_identifier from a JSON body and puts the
// bytes back so the handler can still bind it.
func bodyGuestIdentifier(c echo.Context) string {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(req.Body, maxPeekBody))
	req.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), req.Body), req.Body}
	if err != nil {
		return ""
	}
	var body struct {
		GuestIdentifier string `json:"guest_identifier"`
	}
	if json.Unmarshal(head, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.GuestIdentifier)
}
