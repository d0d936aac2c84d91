package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/config"
	"github.com/iliyamo/wishly/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var seen string
	e.GET("/x", func(c echo.Context) error {
		seen, _ = UserID(c)
		return c.NoContent(http.StatusOK)
	}, mw)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTAuth(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, "owner-1", 5)
	require.NoError(t, err)

	rec, uid := serve(t, JWTAuth(secret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", uid)

	rec, _ = serve(t, JWTAuth(secret), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, JWTAuth("other"), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
}

func TestOptionalJWT(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, "owner-1", 5)
	require.NoError(t, err)

	rec, uid := serve(t, OptionalJWT(secret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", uid)

	rec, uid = serve(t, OptionalJWT(secret), "Bearer garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, uid)
}

func TestRateKeyNeverContainsRawIdentifier(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/reserve", nil)
	req.Header.Set(GuestHeader, "secret-guest-id")
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/items/:id/reserve")

	cfg := config.RateLimitConfig{Prefix: "wishly:rl", KeyBy: "ip_guest_route"}
	key := rateKey(cfg, c)
	assert.True(t, strings.HasPrefix(key, "wishly:rl:ip:10.0.0.1:guest:"))
	assert.True(t, strings.HasSuffix(key, ":route:POST /api/v1/items/:id/reserve"))
	assert.NotContains(t, key, "secret-guest-id")

	cfg.KeyBy = "ip"
	assert.Equal(t, "wishly:rl:ip:10.0.0.1", rateKey(cfg, c))

	cfg.KeyBy = "guest"
	assert.Equal(t, rateKey(cfg, c), "wishly:rl:guest:"+guestKey(c))
}

func TestRateKeyUsesBodyGuestIdentifier(t *testing.T) {
	e := echo.New()
	body := `{"guest_name":"Ann","guest_identifier":"guest-from-body"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/reserve", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(GuestHeader, "guest-from-header")
	c := e.NewContext(req, httptest.NewRecorder())

	cfg := config.RateLimitConfig{Prefix: "wishly:rl", KeyBy: "guest"}
	withBody := rateKey(cfg, c)

	other := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	other.Request().Header.Set(GuestHeader, "guest-from-body")
	assert.Equal(t, rateKey(cfg, other), withBody)
	assert.NotEqual(t, "wishly:rl:guest:anon", withBody)

	// The handler still sees the whole body.
	rest, err := io.ReadAll(c.Request().Body)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(rest))
}

func TestGuestRateLimitWithoutRedisIsPassThrough(t *testing.T) {
	mw := GuestRateLimit(config.RateLimitConfig{Enabled: true}, nil, nil)
	rec, _ := serve(t, mw, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
