package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Logout invalidates the remote session on a best-effort basis and then
// resets everything local: session state, permission cache, persisted
// projections and diagnostics identity. Remote failures are logged, never
// returned.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mutate(func(st *sessionState) bool {
		st.isLoading = true
		return true
	})

	if err := m.api.Logout(ctx); err != nil {
		m.metrics.Inc(MetricLogoutRemoteFailure)
		m.logger.Warn().Err(err).Msg("remote logout failed")
	}

	var prev *User
	m.mutate(func(st *sessionState) bool {
		prev = st.user
		*st = sessionState{}
		m.token = nil
		m.gen++
		return true
	})

	m.perms.Clear()
	m.clearPersisted(ctx)
	m.setDiagnostics(nil)

	m.metrics.Inc(MetricLogout)
	ev := AuditEvent{EventType: AuditLogout, Success: true}
	auditUser(&ev, prev)
	m.emitAudit(ctx, ev)
	m.logger.Debug().Msg("logged out")
	return nil
}

// CheckSession reconciles the local session with the backend.
//
// A nil current user clears the user-related state and permissions. A failed
// lookup falls back to AuthAPI.GetCachedUser and then to the user already
// held, so a transient failure never evicts a valid session. Without any
// fallback the session ends anonymous and the wrapped error is returned.
func (m *Manager) CheckSession(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	m.metrics.Inc(MetricSessionCheck)

	// A Login in flight owns isLoading; only the call that set it resets it.
	ownsLoading := m.mutate(func(st *sessionState) bool {
		if st.isLoading {
			return false
		}
		st.isLoading = true
		return true
	})

	u, err := m.api.GetCurrentUser(ctx)
	switch {
	case err == nil && u == nil:
		m.clearUser(ctx, AuditSessionCleared, ownsLoading)
		return nil
	case err == nil:
		m.adoptUser(ctx, u, AuditSessionCheck, ownsLoading)
		return nil
	}

	fallback := m.api.GetCachedUser()
	if fallback == nil {
		m.mu.Lock()
		fallback = m.st.user.Clone()
		m.mu.Unlock()
	}
	if fallback != nil {
		m.metrics.Inc(MetricSessionCheckFallback)
		m.logger.Warn().Err(err).Str("user_id", fallback.ID).Msg("session check failed, keeping cached user")
		m.adoptUser(ctx, fallback, AuditSessionFallback, ownsLoading)
		return nil
	}

	m.clearUser(ctx, AuditSessionCleared, ownsLoading)
	return fmt.Errorf("check session: %w", err)
}

// adoptUser installs u as the session user after a check. A different user
// never inherits the permissions of the previous one.
func (m *Manager) adoptUser(ctx context.Context, u *User, eventType string, ownsLoading bool) {
	u = u.Clone()
	token := m.currentAccessToken()

	m.mu.Lock()
	sameUser := m.st.user != nil && m.st.user.ID == u.ID
	m.st.user = u
	if ownsLoading {
		m.st.isLoading = false
	}
	m.st.errMsg = ""
	if token != nil {
		m.token = token
	}
	if !sameUser {
		m.gen++
	}
	gen := m.gen
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	if !sameUser {
		m.perms.Clear()
	}
	m.persistAuth()
	m.setDiagnostics(u)
	if s.IsAuthenticated {
		m.populatePermissions(u, gen)
	}

	ev := AuditEvent{EventType: eventType, Success: true}
	auditUser(&ev, u)
	m.emitAudit(ctx, ev)
}

// clearUser drops the user-related state. An OTP sub-session survives.
func (m *Manager) clearUser(ctx context.Context, eventType string, ownsLoading bool) {
	var prev *User
	m.mutate(func(st *sessionState) bool {
		prev = st.user
		st.user = nil
		if ownsLoading {
			st.isLoading = false
		}
		st.errMsg = ""
		st.breachWarning = nil
		st.emailVerification = nil
		m.token = nil
		m.gen++
		return true
	})
	m.perms.Clear()
	m.persistAuth()
	m.setDiagnostics(nil)

	m.metrics.Inc(MetricSessionCheckCleared)
	ev := AuditEvent{EventType: eventType, Success: true}
	auditUser(&ev, prev)
	m.emitAudit(ctx, ev)
}

func (m *Manager) currentAccessToken() *jwt.Claims {
	src, ok := m.api.(AccessTokenSource)
	if !ok {
		return nil
	}
	raw := src.AccessToken()
	if raw == "" {
		return nil
	}
	claims, err := jwt.Inspect(raw)
	if err != nil {
		return nil
	}
	return claims
}

/*
====================================
NARROW MUTATORS
====================================
*/

// SetUser replaces the session user. It is how MFA completion is applied:
// setting a user that is no longer MFA-pending makes the session
// authenticated and populates permissions. A nil or different user clears
// the permission cache first.
func (m *Manager) SetUser(u *User) {
	if m.ready() != nil {
		return
	}
	u = u.Clone()

	m.mu.Lock()
	switched := u == nil || m.st.user == nil || m.st.user.ID != u.ID
	if switched {
		m.gen++
	}
	m.st.user = u
	if u == nil {
		m.token = nil
	}
	gen := m.gen
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	if switched {
		m.perms.Clear()
	}
	if u != nil && s.IsAuthenticated {
		m.populatePermissions(u, gen)
	}
	m.persistAuth()
	m.setDiagnostics(u)

	ev := AuditEvent{EventType: AuditUserSet, Success: true}
	auditUser(&ev, u)
	m.emitAudit(context.Background(), ev)
}

// ClearError resets State.Error.
func (m *Manager) ClearError() {
	m.mutate(func(st *sessionState) bool {
		if st.errMsg == "" {
			return false
		}
		st.errMsg = ""
		return true
	})
}

// ClearPasswordBreachWarning drops the breach advisory together with the
// MustChangePassword and PasswordBreached flags on the user.
func (m *Manager) ClearPasswordBreachWarning() {
	var userChanged bool
	changed := m.mutate(func(st *sessionState) bool {
		changed := st.breachWarning != nil
		st.breachWarning = nil
		if st.user != nil && (st.user.MustChangePassword || st.user.PasswordBreached) {
			u := st.user.Clone()
			u.MustChangePassword = false
			u.PasswordBreached = false
			st.user = u
			userChanged = true
			changed = true
		}
		return changed
	})
	if userChanged {
		m.persistAuth()
	}
	if changed {
		m.emitAudit(context.Background(), AuditEvent{EventType: AuditPasswordWarnCleared, Success: true})
	}
}

// ClearOTPData abandons the OTP sub-session.
func (m *Manager) ClearOTPData() {
	m.mutate(func(st *sessionState) bool {
		if !st.otpRequired && st.otpData == nil {
			return false
		}
		st.otpRequired = false
		st.otpData = nil
		return true
	})
}

// SetEmailVerification replaces the email-verification status.
func (m *Manager) SetEmailVerification(ev *EmailVerification) {
	ev = ev.clone()
	m.mutate(func(st *sessionState) bool {
		st.emailVerification = ev
		return true
	})
}

/*
====================================
PERSISTENCE
====================================
*/

// Load restores the persisted {user} and {permissions, fetchedAt}
// projections. The stored isAuthenticated flag is ignored; it is derived
// from the user. Missing projections are not an error.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	if m.store == nil {
		return nil
	}

	var rec authRecord
	if _, err := m.store.Load(ctx, session.AuthKey, &rec); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}
	if rec.User == nil {
		return nil
	}

	m.mu.Lock()
	m.st.user = rec.User
	m.gen++
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)
	m.setDiagnostics(rec.User)

	snap, err := m.store.LoadPermissions(ctx)
	switch {
	case err == nil:
		m.perms.Set(snap)
	case errors.Is(err, session.ErrNotFound):
		m.perms.Clear()
	default:
		m.logger.Warn().Err(err).Msg("persisted permissions unreadable")
		m.perms.Clear()
	}

	ev := AuditEvent{EventType: AuditSessionRestored, Success: true}
	auditUser(&ev, rec.User)
	m.emitAudit(ctx, ev)
	return nil
}

// persistAuth writes the current {user, isAuthenticated} projection. The
// projection is read under persistMu so the last write always reflects the
// latest state.
func (m *Manager) persistAuth() {
	if m.store == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	rec := authRecord{User: m.st.user.Clone(), IsAuthenticated: m.st.isAuthenticated()}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Persistence.Timeout)
	defer cancel()

	var err error
	if rec.User == nil {
		err = m.store.Delete(ctx, session.AuthKey)
	} else {
		err = m.store.Save(ctx, session.AuthKey, rec)
	}
	if err != nil {
		m.persistFailed(ctx, "auth", err)
	}
}

func (m *Manager) clearPersisted(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Persistence.Timeout)
	defer cancel()
	if err := m.store.Delete(ctx, session.AuthKey, session.PermissionsKey); err != nil {
		m.persistFailed(ctx, "clear", err)
	}
}

func (m *Manager) persistFailed(ctx context.Context, projection string, err error) {
	m.metrics.Inc(MetricPersistFailure)
	m.logger.Warn().Err(err).Str("projection", projection).Msg("session persistence failed")
	m.emitAudit(ctx, AuditEvent{
		EventType: AuditPersistenceFailure,
		Error:     auditErr(err),
		Metadata:  map[string]string{"projection": projection},
	})
}
