package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to a full buffer.
const AuditDroppedName = "gosession_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Logins that ended authenticated."},
	{ID: goSession.MetricLoginOTPRequired, Name: "gosession_login_otp_required_total", Help: "Logins that opened an email OTP challenge."},
	{ID: goSession.MetricLoginMFARequired, Name: "gosession_login_mfa_required_total", Help: "Logins that ended MFA-pending."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed login and OTP verification calls."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Login failures classified as rate limited."},
	{ID: goSession.MetricLoginGuarded, Name: "gosession_login_guarded_total", Help: "Login calls answered by the in-flight OTP guard."},
	{ID: goSession.MetricOTPVerifySuccess, Name: "gosession_otp_verify_success_total", Help: "Successful OTP verifications."},
	{ID: goSession.MetricOTPVerifyFailure, Name: "gosession_otp_verify_failure_total", Help: "Failed OTP verifications."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout operations."},
	{ID: goSession.MetricLogoutRemoteFailure, Name: "gosession_logout_remote_failure_total", Help: "Remote logout failures swallowed during logout."},
	{ID: goSession.MetricSessionCheck, Name: "gosession_session_check_total", Help: "Session checks against the backend."},
	{ID: goSession.MetricSessionCheckFallback, Name: "gosession_session_check_fallback_total", Help: "Session checks that kept a cached user after an error."},
	{ID: goSession.MetricSessionCheckCleared, Name: "gosession_session_check_cleared_total", Help: "Session checks that ended anonymous."},
	{ID: goSession.MetricPermissionFetch, Name: "gosession_permission_fetch_total", Help: "Permission fetches, including cache hits."},
	{ID: goSession.MetricPermissionFetchFailure, Name: "gosession_permission_fetch_failure_total", Help: "Failed permission fetches."},
	{ID: goSession.MetricPermissionNoFirm, Name: "gosession_permission_no_firm_total", Help: "Permission fetches answered with no firm."},
	{ID: goSession.MetricPermissionDerived, Name: "gosession_permission_derived_total", Help: "Permission snapshots derived from a solo login."},
	{ID: goSession.MetricFeatureAccessPatched, Name: "gosession_feature_access_patched_total", Help: "Feature-access events that changed the email verification status."},
	{ID: goSession.MetricFeatureAccessIgnored, Name: "gosession_feature_access_ignored_total", Help: "Feature-access events that matched the cached status."},
	{ID: goSession.MetricPersistFailure, Name: "gosession_persist_failure_total", Help: "Failed writes of the persisted session projections."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricLoginLatency, Name: "gosession_login_latency_seconds", Help: "Login and OTP verification round-trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed 8-slot array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
