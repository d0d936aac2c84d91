// Package guest keeps the pseudonymous identity of a guest client: a
// random identifier generated once per install, the display name the
// guest chose, and the reservations made from this install.  Nothing here
// talks to the server.
package guest

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Identity is what a guest presents with every reserve and contribute.
type Identity struct {
	GuestIdentifier string `json:"guest_identifier"`
	GuestName       string `json:"guest_name,omitempty"`
}

// State is the persisted form.  Reservations maps item id to the
// reservation id returned by the server.
type State struct {
	Identity
	Reservations map[string]string `json:"reservations,omitempty"`
}

// Store persists State.  Load returns ErrNoState when nothing was saved
// yet.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// ErrNoState is returned by Store.Load on first use.
var ErrNoState = errors.New("guest: no saved state")

// Manager hands out the install's identity.  When the store fails it keeps
// working from memory for the rest of the session and Degraded reports
// true; the identity is then lost when the process exits.
type Manager struct {
	store    Store
	log      *logrus.Entry
	mu       sync.Mutex
	loaded   bool
	degraded bool
	state    State
}

func NewManager(store Store, log *logrus.Entry) *Manager {
	return &Manager{store: store, log: log}
}

// EnsureIdentity returns the saved identity, generating and saving a new
// identifier on first use.  Repeated calls return the same identifier.
func (m *Manager) EnsureIdentity() (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	if m.state.GuestIdentifier == "" {
		m.state.GuestIdentifier = uuid.NewString()
		m.saveLocked()
	}
	return m.state.Identity, nil
}

// SetName stores the display name used for reservations and
// contributions.
func (m *Manager) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("guest: name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	m.state.GuestName = name
	m.saveLocked()
	return nil
}

// RememberReservation records that this install reserved itemID.
func (m *Manager) RememberReservation(itemID, reservationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	if m.state.Reservations == nil {
		m.state.Reservations = map[string]string{}
	}
	m.state.Reservations[itemID] = reservationID
	m.saveLocked()
}

// ReservationFor returns the reservation this install holds on itemID.
func (m *Manager) ReservationFor(itemID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	id, ok := m.state.Reservations[itemID]
	return id, ok
}

func (m *Manager) ForgetReservation(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	if _, ok := m.state.Reservations[itemID]; !ok {
		return
	}
	delete(m.state.Reservations, itemID)
	m.saveLocked()
}

// Degraded reports whether the store failed and the identity only lives
// in memory.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

func (m *Manager) loadLocked() {
	if m.loaded {
		return
	}
	m.loaded = true
	st, err := m.store.Load()
	switch {
	case err == nil:
		m.state = st
	case errors.Is(err, ErrNoState):
	default:
		m.degrade(err, "load")
	}
}

func (m *Manager) saveLocked() {
	if m.degraded {
		return
	}
	if err := m.store.Save(m.state); err != nil {
		m.degrade(err, "save")
	}
}

func (m *Manager) degrade(err error, op string) {
	m.degraded = true
	if m.log != nil {
		m.log.WithError(err).Warnf("guest: %s failed, identity kept in memory for this session", op)
	}
}
