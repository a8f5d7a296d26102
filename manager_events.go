package goSession

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goSession/events"
)

// OnFeatureAccessDenied applies a bridge event to the cached email
// verification status. The patch is applied, and observers notified, only
// when it differs from the cached values; VerificationSentAt is preserved.
func (m *Manager) OnFeatureAccessDenied(ev events.FeatureAccessDenied) {
	if m.ready() != nil {
		return
	}

	s, changed := m.update(func(st *sessionState) bool {
		cur := st.emailVerification
		if cur != nil && cur.IsVerified == ev.IsVerified && cur.RequiresVerification == ev.RequiresVerification {
			return false
		}
		next := &EmailVerification{
			IsVerified:           ev.IsVerified,
			RequiresVerification: ev.RequiresVerification,
		}
		if cur != nil && cur.VerificationSentAt != nil {
			t := *cur.VerificationSentAt
			next.VerificationSentAt = &t
		}
		st.emailVerification = next
		return true
	})
	if !changed {
		m.metrics.Inc(MetricFeatureAccessIgnored)
		return
	}
	m.notify(s)

	m.metrics.Inc(MetricFeatureAccessPatched)
	m.logger.Debug().Bool("is_verified", ev.IsVerified).Bool("requires_verification", ev.RequiresVerification).Msg("email verification patched")
	ae := AuditEvent{
		EventType: AuditFeatureAccessPatch,
		Success:   true,
		Metadata: map[string]string{
			"is_verified":           strconv.FormatBool(ev.IsVerified),
			"requires_verification": strconv.FormatBool(ev.RequiresVerification),
		},
	}
	if ev.Code != "" {
		ae.Metadata["code"] = ev.Code
	}
	auditUser(&ae, s.User)
	m.emitAudit(context.Background(), ae)
}
