package goSession

import (
	"context"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/rs/zerolog"
)

// Audit event types emitted by the Manager.
const (
	AuditLoginSuccess        = "login_success"
	AuditLoginOTPRequired    = "login_otp_required"
	AuditLoginMFARequired    = "login_mfa_required"
	AuditLoginFailure        = "login_failure"
	AuditOTPVerifyFailure    = "otp_verify_failure"
	AuditLogout              = "logout"
	AuditSessionCheck        = "session_check"
	AuditSessionFallback     = "session_check_fallback"
	AuditSessionCleared      = "session_check_cleared"
	AuditPermissionFailure   = "permission_fetch_failure"
	AuditFeatureAccessPatch  = "feature_access_patch"
	AuditPersistenceFailure  = "persistence_failure"
	AuditSessionRestored     = "session_restored"
	AuditUserSet             = "user_set"
	AuditPasswordWarnCleared = "password_warning_cleared"
)

type (
	AuditEvent     = internalaudit.Event
	AuditSink      = internalaudit.Sink
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	LogSink        = internalaudit.LogSink
)

var (
	NewChannelSink    = internalaudit.NewChannelSink
	NewJSONWriterSink = internalaudit.NewJSONWriterSink
)

// NewLogSink returns a sink writing audit events through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

func (m *Manager) emitAudit(ctx context.Context, ev AuditEvent) {
	if m.audit == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	ev.InstanceID = m.instanceID
	m.audit.Emit(ctx, ev)
}

func auditUser(ev *AuditEvent, u *User) {
	if u == nil {
		return
	}
	ev.UserID = u.ID
	ev.FirmID = u.FirmID
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

func auditErr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
