package goSession

import (
	"context"
	"time"
)

// Watch runs CheckSession every Session.CheckInterval while a user is held
// and the access-token expiry is unknown or falls within
// Session.RefreshWindow. It blocks until ctx ends and returns ctx.Err().
func (m *Manager) Watch(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	ticker := time.NewTicker(m.cfg.Session.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.ready() != nil {
				return ErrManagerNotReady
			}
			if !m.needsCheck(m.now()) {
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, m.cfg.Session.CheckTimeout)
			if err := m.CheckSession(cctx); err != nil {
				m.logger.Warn().Err(err).Msg("background session check failed")
			}
			cancel()
		}
	}
}

func (m *Manager) needsCheck(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.user == nil {
		return false
	}
	if m.token == nil || m.token.ExpiresAt.IsZero() {
		return true
	}
	return m.token.ExpiresWithin(now, m.cfg.Session.RefreshWindow)
}
