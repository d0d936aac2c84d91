package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wishly/internal/guest"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/readmodel"
	"github.com/iliyamo/wishly/pkg/logger"
)

func TestConfigureViperLayersEnvOverFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	file := filepath.Join(dir, "guest.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: http://from-file:8080\n"), 0o600))

	v, err := configureViper(file)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:8080", v.GetString("server"))

	t.Setenv("WISHLY_SERVER", "http://from-env:9090")
	v, err = configureViper(file)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9090", v.GetString("server"))
}

func TestConfigureViperWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := configureViper("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", v.GetString("server"))
	assert.Equal(t, "warn", v.GetString("log-level"))
}

func TestWatcherPrintsPatchedItem(t *testing.T) {
	price := model.Cents(4500)
	view := readmodel.WishlistView{
		Wishlist: readmodel.WishlistInfo{ID: "w1", Title: "Birthday", IsActive: true},
		Items:    []readmodel.ItemView{{ID: "lamp", Name: "Lamp", Price: &price}},
	}
	var out bytes.Buffer
	w := &watcher{out: &out, model: readmodel.NewModel(view)}

	w.apply(queue.ReservedEvent("w1", "lamp", true))
	assert.Contains(t, out.String(), "[ x  ] lamp  Lamp  45.00")

	out.Reset()
	w.apply(queue.Event{Type: queue.WishlistDeleted, WishlistID: "w1"})
	assert.Contains(t, out.String(), "deleted")
}

func TestUnreserveForgetsReleasedReservation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/reservations/r-stale", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"reservation not found","code":"not_found"}`))
	}))
	t.Cleanup(ts.Close)

	state := filepath.Join(t.TempDir(), "guest.json")
	seed := guest.NewManager(guest.FileStore{Path: state}, logger.Discard().WithField("test", t.Name()))
	seed.RememberReservation("lamp", "r-stale")

	var out bytes.Buffer
	root := newRootCmd(&app{})
	root.SetOut(&out)
	root.SetArgs([]string{"--server", ts.URL, "--state", state, "unreserve", "lamp"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "already released")

	reloaded := guest.NewManager(guest.FileStore{Path: state}, logger.Discard().WithField("test", t.Name()))
	_, ok := reloaded.ReservationFor("lamp")
	assert.False(t, ok)
}
