package goSession

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/events"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
	"github.com/rs/zerolog"
)

// Manager owns the client-side authentication session and its permission
// cache. It is created by [Builder.Build] and shared by reference.
//
// Every read-check-then-write sequence runs under one mutex. Backend calls
// happen outside the lock and their results are applied after re-reading the
// current state, so a late response overwrites earlier ones (last write
// wins) but never bypasses the OTP guard.
type Manager struct {
	cfg         Config
	api         AuthAPI
	perms       *permission.Cache
	store       *session.Store
	bridge      *events.Bridge
	diagnostics Diagnostics
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      zerolog.Logger
	now         func() time.Time
	instanceID  string

	mu    sync.Mutex
	st    sessionState
	token *jwt.Claims
	gen   uint64

	listenersMu sync.RWMutex
	listeners   map[uint64]func(State)
	nextID      uint64

	persistMu sync.Mutex
	bg        sync.WaitGroup
	closed    atomic.Bool
}

// State returns a deep copy of the current session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.export()
}

// IsAuthenticated reports whether a user is held and not MFA-pending.
func (m *Manager) IsAuthenticated() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.isAuthenticated()
}

// Permissions returns the permission cache for synchronous queries.
func (m *Manager) Permissions() *permission.Cache {
	if m == nil {
		return nil
	}
	return m.perms
}

// Events returns the bridge the Manager is subscribed to.
func (m *Manager) Events() *events.Bridge {
	return m.bridge
}

// Metrics returns the in-process counters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsSnapshot returns a point-in-time read of the counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// InstanceID identifies this Manager in logs and audit events.
func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Subscribe registers fn to receive a copy of the state after every mutation
// that changed it. Calls happen on the mutating goroutine, outside the
// Manager lock. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.listenersMu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			delete(m.listeners, id)
			m.listenersMu.Unlock()
		})
	}
}

func (m *Manager) notify(s State) {
	m.listenersMu.RLock()
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

// update applies fn under the lock. When fn reports a change the new state
// is returned for notification.
func (m *Manager) update(fn func(st *sessionState) bool) (State, bool) {
	m.mu.Lock()
	changed := fn(&m.st)
	var out State
	if changed {
		out = m.st.export()
	}
	m.mu.Unlock()
	return out, changed
}

func (m *Manager) mutate(fn func(st *sessionState) bool) bool {
	s, changed := m.update(fn)
	if changed {
		m.notify(s)
	}
	return changed
}

// Close waits for background permission fetches and drains the audit
// buffer. The Manager must not be used afterwards.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.closed.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.bg.Wait()
	m.audit.Close()
}

func (m *Manager) ready() error {
	if m == nil || m.closed.Load() {
		return ErrManagerNotReady
	}
	return nil
}

/*
====================================
DIAGNOSTICS
====================================
*/

func (m *Manager) setDiagnostics(u *User) {
	if m.diagnostics == nil {
		return
	}
	var id *DiagnosticsIdentity
	if u != nil {
		id = &DiagnosticsIdentity{
			ID:       u.ID,
			Email:    u.Email,
			Username: u.Username,
			FirmID:   u.FirmID,
		}
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Interface("panic", r).Msg("diagnostics set user panicked")
		}
	}()
	m.diagnostics.SetUser(id)
}
