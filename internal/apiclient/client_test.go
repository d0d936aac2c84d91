package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/guest"
	"github.com/iliyamo/wishly/internal/model"
)

func TestContributeSendsIdentityAndDecodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/items/bike/contribute", r.URL.Path)
		assert.Equal(t, "g1", r.Header.Get(guestHeader))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "25.00", body["amount"])
		assert.Equal(t, "Ann", body["guest_name"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"contribution_id":"c1","amount":"20.00","requested_amount":"25.00","clamped":true,"completed":true}`))
	}))
	defer ts.Close()

	res, err := New(ts.URL).Contribute(context.Background(), "bike", 2500, guest.Identity{GuestIdentifier: "g1", GuestName: "Ann"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Cents(2000), res.Amount)
	assert.True(t, res.Clamped)
	assert.True(t, res.Completed)
}

func TestErrorsCarryCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"item is already reserved","code":"already_reserved"}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL).Reserve(context.Background(), "lamp", guest.Identity{GuestIdentifier: "g1", GuestName: "Ann"})
	require.Error(t, err)
	assert.True(t, HasCode(err, "already_reserved"))
	assert.False(t, HasCode(err, "fully_funded"))
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/api/v1/ws/w1", New("http://localhost:8080/").WebsocketURL("w1"))
	assert.Equal(t, "wss://wishly.example/api/v1/ws/w1", New("https://wishly.example").WebsocketURL("w1"))
}
