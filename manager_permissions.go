package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/permission"
)

// populatePermissions picks the population path for u: solo operators get a
// synchronous snapshot derived from the login payload, firm lawyers get a
// background fetch. gen is the session generation u was applied under.
func (m *Manager) populatePermissions(u *User, gen uint64) {
	switch {
	case u.IsSolo():
		m.perms.DeriveFromLogin(u.Permissions, true)
		m.metrics.Inc(MetricPermissionDerived)
	case u.IsFirmLawyer():
		m.fetchInBackground(gen)
	}
}

func (m *Manager) fetchInBackground(gen uint64) {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return
	}
	m.bg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Permission.FetchTimeout)
		defer cancel()
		m.fetchPermissions(ctx, gen)
	}()
}

// FetchPermissions refreshes the permission cache for the current user,
// honoring the TTL. It is the entry point after an out-of-band transition
// such as MFA completion. Failures are recorded on the cache, never returned.
func (m *Manager) FetchPermissions(ctx context.Context) *permission.Snapshot {
	if m.ready() != nil {
		return nil
	}
	m.mu.Lock()
	gen := m.gen
	hasUser := m.st.user != nil
	m.mu.Unlock()
	if !hasUser {
		return nil
	}
	return m.fetchPermissions(ctx, gen)
}

func (m *Manager) fetchPermissions(ctx context.Context, gen uint64) *permission.Snapshot {
	if !m.sameGeneration(gen) {
		return nil
	}

	snap := m.perms.Fetch(ctx)

	// The user changed while fetching; the switch already cleared the cache.
	if !m.sameGeneration(gen) {
		return nil
	}

	m.metrics.Inc(MetricPermissionFetch)
	if err := m.perms.Error(); err != nil {
		m.metrics.Inc(MetricPermissionFetchFailure)
		m.logger.Warn().Err(err).Msg("permission fetch failed")
		ev := AuditEvent{EventType: AuditPermissionFailure, Error: auditErr(err)}
		m.mu.Lock()
		auditUser(&ev, m.st.user)
		m.mu.Unlock()
		m.emitAudit(ctx, ev)
	} else if m.perms.NoFirmAssociated() {
		m.metrics.Inc(MetricPermissionNoFirm)
	}
	return snap
}

func (m *Manager) sameGeneration(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// onPermissionsChange mirrors every cache replacement to persistence.
func (m *Manager) onPermissionsChange(*permission.Snapshot) {
	if m.store == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Persistence.Timeout)
	defer cancel()

	if err := m.store.SavePermissions(ctx, m.perms.Snapshot()); err != nil {
		m.persistFailed(ctx, "permissions", err)
	}
}
